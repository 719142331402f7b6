package searchparams

import (
	"encoding/json"
	"log/slog"
	"slices"
	"sort"
	"strconv"

	"github.com/vango-dev/searchparams/internal/errors"
	"github.com/vango-dev/searchparams/pkg/codec"
	"github.com/vango-dev/searchparams/pkg/query"
)

// NavigateFunc applies a full URL (pathname plus query) to the host.
type NavigateFunc func(url string)

// Adapter supplies the host's current location and its navigation.
// SearchParams must return a fresh store reflecting the current query
// string on every call.
type Adapter interface {
	Pathname() string
	SearchParams() *query.Store
	Navigate(url string)
}

// Params is the parameter engine. It holds an immutable snapshot of the
// query string; writes compute a new store and pass the resulting URL to
// navigate. A Params is safe for concurrent reads; concurrent writes race
// only in the host, through navigate.
type Params struct {
	pathname    string
	store       *query.Store
	navigate    NavigateFunc
	logger      *slog.Logger
	diagnostics func(error)
}

// New creates an engine over a snapshot of store. The store is copied, so
// later changes to it are not observed.
func New(pathname string, store *query.Store, navigate NavigateFunc, opts ...EngineOption) *Params {
	if navigate == nil {
		navigate = func(string) {}
	}
	p := &Params{
		pathname: pathname,
		store:    store.Clone(),
		navigate: navigate,
		logger:   slog.Default().With("component", "searchparams"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// FromAdapter creates an engine from an adapter's current state.
func FromAdapter(a Adapter, opts ...EngineOption) *Params {
	return New(a.Pathname(), a.SearchParams(), a.Navigate, opts...)
}

// Pathname returns the path the engine navigates under.
func (p *Params) Pathname() string {
	return p.pathname
}

// Store returns a copy of the raw snapshot.
func (p *Params) Store() *query.Store {
	return p.store.Clone()
}

// URL returns the URL of the snapshot.
func (p *Params) URL() string {
	return query.CreateURL(p.pathname, p.store)
}

// Get returns the value for key, or nil when the key is absent.
//
// A single stored value is returned as is; several values (or ForceArray)
// come back as []string, or as []any with Parse. With Parse, a value that
// fails to decode makes the whole read return nil and logs a warning.
//
// Example:
//
//	p.Get("view")                                  // "grid"
//	p.Get("tags")                                  // []string{"react", "go"}
//	p.Get("filters", searchparams.Parse)           // map[string]any{...}
func (p *Params) Get(key string, opts ...Option) any {
	return p.get(key, newParamConfig(opts))
}

func (p *Params) get(key string, cfg paramConfig) any {
	values := p.store.GetAll(key)
	if len(values) == 0 {
		return nil
	}
	many := cfg.forceArray || len(values) > 1

	if cfg.parse {
		parsed := make([]any, len(values))
		for i, raw := range values {
			v, ok := codec.Decode(cfg.codec(), raw)
			if !ok {
				p.decodeFailed(key, raw)
				return nil
			}
			parsed[i] = v
		}
		if many {
			return parsed
		}
		return parsed[0]
	}

	if many {
		return values
	}
	return values[0]
}

// GetWithDefault returns Get's result, or def when Get yields nil (absent
// key, decode failure, or a JSON null).
func (p *Params) GetWithDefault(key string, def any, opts ...Option) any {
	if v := p.Get(key, opts...); v != nil {
		return v
	}
	return def
}

// GetAs returns the value for key converted to T. Values that are not
// already a T are converted through their JSON form, so a Parse read can
// land in a struct.
func GetAs[T any](p *Params, key string, opts ...Option) (T, bool) {
	var out T
	v := p.Get(key, opts...)
	if v == nil {
		return out, false
	}
	if t, ok := v.(T); ok {
		return t, true
	}
	data, err := json.Marshal(v)
	if err != nil {
		return out, false
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, false
	}
	return out, true
}

// GetAll returns every key mapped to its value, collapsed like Get.
// With Parse, values that fail to decode become nil.
func (p *Params) GetAll(opts ...Option) map[string]any {
	cfg := newParamConfig(opts)
	out := make(map[string]any, p.store.Len())

	for _, key := range p.store.Keys() {
		values := p.store.GetAll(key)
		many := cfg.forceArray || len(values) > 1

		if !cfg.parse {
			if many {
				out[key] = values
			} else {
				out[key] = values[0]
			}
			continue
		}

		parsed := make([]any, len(values))
		for i, raw := range values {
			v, ok := codec.Decode(cfg.codec(), raw)
			if !ok {
				p.decodeFailed(key, raw)
				continue
			}
			parsed[i] = v
		}
		if many {
			out[key] = parsed
		} else {
			out[key] = parsed[0]
		}
	}
	return out
}

// Set replaces every value of key with values, a single value or a slice.
// Values are stringified, or serialized with the Serialize option.
func (p *Params) Set(key string, values any, opts ...Option) error {
	if err := validateParams("set", key, values); err != nil {
		return err
	}
	cfg := newParamConfig(opts)
	p.replace(key, p.encodeAll(values, cfg))
	return nil
}

// Add appends values to key, skipping any already present. Existing values
// keep their order, new ones follow in input order.
func (p *Params) Add(key string, values any, opts ...Option) error {
	if err := validateParams("add", key, values); err != nil {
		return err
	}
	cfg := newParamConfig(opts)
	merged := append(p.store.GetAll(key), p.encodeAll(values, cfg)...)
	p.replace(key, dedupe(merged))
	return nil
}

// Remove drops every stored value of key that matches one of values.
// Removing the last value removes the key.
func (p *Params) Remove(key string, values any, opts ...Option) error {
	if err := validateParams("remove", key, values); err != nil {
		return err
	}
	cfg := newParamConfig(opts)
	targets := codec.ToArray(values)

	var kept []string
	for _, raw := range p.store.GetAll(key) {
		if !slices.ContainsFunc(targets, func(v any) bool { return p.matchesRaw(raw, v, cfg) }) {
			kept = append(kept, raw)
		}
	}
	p.replace(key, kept)
	return nil
}

// Matches reports whether key holds value. With Parse, stored values are
// decoded and compared to value by JSON text; otherwise the raw string is
// compared to the encoded value.
func (p *Params) Matches(key string, value any, opts ...Option) bool {
	cfg := newParamConfig(opts)
	forced := cfg
	forced.forceArray = true

	switch current := p.get(key, forced).(type) {
	case []any:
		for _, v := range current {
			if codec.Equal(v, value) {
				return true
			}
		}
	case []string:
		want := p.encode(value, cfg)
		return slices.Contains(current, want)
	}
	return false
}

// Toggle removes value from key when present and adds it otherwise.
// A nil value toggles "true".
func (p *Params) Toggle(key string, value any, opts ...Option) error {
	if value == nil {
		value = "true"
	}
	if err := validateParams("toggle", key, value); err != nil {
		return err
	}
	if p.Matches(key, value, opts...) {
		return p.Remove(key, value, opts...)
	}
	return p.Add(key, value, opts...)
}

// Update replaces every stored value of key matching oldValue with
// newValue.
func (p *Params) Update(key string, oldValue, newValue any, opts ...Option) error {
	if err := validateParams("update", key, newValue); err != nil {
		return err
	}
	cfg := newParamConfig(opts)
	replacement := p.encode(newValue, cfg)

	current := p.store.GetAll(key)
	for i, raw := range current {
		if p.matchesRaw(raw, oldValue, cfg) {
			current[i] = replacement
		}
	}
	p.replace(key, current)
	return nil
}

// Clear removes key and all its values.
func (p *Params) Clear(key string) error {
	if err := validateKey("clear", key); err != nil {
		return err
	}
	p.replace(key, nil)
	return nil
}

// ResetAllParams navigates to the bare pathname.
func (p *Params) ResetAllParams() {
	p.navigate(p.pathname)
}

// SetMany replaces the values of several keys with one navigation. Every
// pair is validated before anything is written. Keys are applied in sorted
// order.
func (p *Params) SetMany(params map[string]any, opts ...Option) error {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if err := validateParams("setMany", k, params[k]); err != nil {
			return err
		}
	}

	cfg := newParamConfig(opts)
	next := p.store.Clone()
	for _, k := range keys {
		next.Set(k, p.encodeAll(params[k], cfg))
	}
	p.navigate(query.CreateURL(p.pathname, next))
	return nil
}

// replace writes values for key into a copy of the snapshot and navigates.
func (p *Params) replace(key string, values []string) {
	next := p.store.Clone()
	next.Set(key, values)
	p.navigate(query.CreateURL(p.pathname, next))
}

func (p *Params) encode(v any, cfg paramConfig) string {
	if cfg.serialize {
		return cfg.codec().Serialize(v)
	}
	return codec.Stringify(v)
}

func (p *Params) encodeAll(values any, cfg paramConfig) []string {
	list := codec.ToArray(values)
	out := make([]string, len(list))
	for i, v := range list {
		out[i] = p.encode(v, cfg)
	}
	return out
}

// matchesRaw reports whether a stored string stands for v.
func (p *Params) matchesRaw(raw string, v any, cfg paramConfig) bool {
	if cfg.parse {
		decoded, ok := codec.Decode(cfg.codec(), raw)
		return ok && codec.Equal(decoded, v)
	}
	return raw == p.encode(v, cfg)
}

func (p *Params) decodeFailed(key, raw string) {
	err := errors.New("E010").WithDetail("key " + strconv.Quote(key))
	p.logger.Warn("failed to parse value", "key", key, "value", raw, "error", err)
	if p.diagnostics != nil {
		p.diagnostics(err)
	}
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := values[:0]
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
