// Package urlparam binds typed Go values to query parameters.
//
// A Param reads its value from the host's current URL on every Get and
// writes through the parameter engine, so it never holds stale state.
// It supports:
//   - Push/Replace history modes
//   - Debouncing for search inputs
//   - Multiple encodings (Plain, Flat, JSON, Comma)
//   - Complex types (structs, slices, maps)
//
// A value equal to the default is left out of the URL.
//
// Example:
//
//	// Search input - replaces history, debounced
//	q := urlparam.New(host, "q", "", urlparam.Replace, urlparam.Debounce(300*time.Millisecond))
//
//	// Filter struct - flat encoding
//	filters := urlparam.New(host, "", Filters{}, urlparam.WithEncoding(urlparam.EncodingFlat))
//
//	// Tag list - comma encoding
//	tags := urlparam.New(host, "tags", []string{}, urlparam.WithEncoding(urlparam.EncodingComma))
package urlparam

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/vango-dev/searchparams/internal/errors"
	"github.com/vango-dev/searchparams/pkg/adapter"
	"github.com/vango-dev/searchparams/pkg/codec"
	"github.com/vango-dev/searchparams/pkg/query"
	"github.com/vango-dev/searchparams/pkg/searchparams"
)

// Encoding specifies how a value is laid out in the query string.
type Encoding int

const (
	// EncodingPlain stores scalars as text, slices as repeated keys and
	// anything else as JSON text: ?tags=go&tags=web
	EncodingPlain Encoding = iota

	// EncodingFlat stores struct fields as their own params: ?cat=tech&sort=asc
	EncodingFlat

	// EncodingJSON stores base64-encoded JSON: ?filter=eyJjYXQiOiJ0ZWNoIn0
	EncodingJSON

	// EncodingComma stores slices comma-separated: ?tags=go,web,api
	EncodingComma
)

// Option configures a Param.
type Option interface {
	applyURLParam(*config)
}

type config struct {
	mode        adapter.Mode
	modeSet     bool
	debounce    time.Duration
	encoding    Encoding
	logger      *slog.Logger
	diagnostics func(error)
}

// Mode options as values (not functions) to avoid collision with navigation methods.
var (
	// Push creates a new history entry.
	Push Option = modeOption{mode: adapter.ModePush}

	// Replace updates the URL without a history entry (use for filters, search).
	Replace Option = modeOption{mode: adapter.ModeReplace}
)

type modeOption struct {
	mode adapter.Mode
}

func (o modeOption) applyURLParam(c *config) {
	c.mode = o.mode
	c.modeSet = true
}

type debounceOption struct {
	d time.Duration
}

func (o debounceOption) applyURLParam(c *config) {
	c.debounce = o.d
}

// Debounce delays URL updates by d. Only the last value set within the
// window is written.
func Debounce(d time.Duration) Option {
	return debounceOption{d: d}
}

type encodingOption struct {
	e Encoding
}

func (o encodingOption) applyURLParam(c *config) {
	c.encoding = o.e
}

// WithEncoding sets how the value is laid out in the query string.
func WithEncoding(e Encoding) Option {
	return encodingOption{e: e}
}

type funcOption func(*config)

func (f funcOption) applyURLParam(c *config) { f(c) }

// WithLogger sets the logger for decode warnings and failed writes.
func WithLogger(logger *slog.Logger) Option {
	return funcOption(func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	})
}

// WithDiagnostics registers fn to receive decode failures.
func WithDiagnostics(fn func(error)) Option {
	return funcOption(func(c *config) { c.diagnostics = fn })
}

// Param is a typed value synchronized with one or more query parameters.
type Param[T any] struct {
	key      string
	defaults T
	config   config
	host     searchparams.Adapter

	timerMu sync.Mutex
	timer   *time.Timer
	pending map[string]any
}

// New binds key on host to a value of type T. With EncodingFlat and a
// struct T, the key is unused and each field maps to the key in its url
// tag, or its lowercased name.
//
// Example:
//
//	type Filters struct {
//	    Category string `url:"cat"`
//	    SortBy   string `url:"sort"`
//	}
//	filters := urlparam.New(host, "", Filters{}, urlparam.WithEncoding(urlparam.EncodingFlat))
func New[T any](host searchparams.Adapter, key string, defaultValue T, opts ...Option) *Param[T] {
	cfg := config{logger: slog.Default().With("component", "urlparam")}
	for _, opt := range opts {
		if opt != nil {
			opt.applyURLParam(&cfg)
		}
	}
	return &Param[T]{
		key:      key,
		defaults: defaultValue,
		config:   cfg,
		host:     host,
	}
}

// Key returns the bound key.
func (u *Param[T]) Key() string {
	return u.key
}

// Get returns the value in the host's current URL, or the default when it
// is absent or cannot be decoded.
func (u *Param[T]) Get() T {
	v, ok, err := u.decode(u.host.SearchParams())
	if err != nil {
		u.decodeFailed(err)
		return u.defaults
	}
	if !ok {
		return u.defaults
	}
	return v
}

// Set writes value to the URL. Encoding errors are returned at once; with
// Debounce the navigation itself happens later.
func (u *Param[T]) Set(value T) error {
	params, err := u.encode(value)
	if err != nil {
		return err
	}
	u.schedule(params)
	return nil
}

// Update sets the result of fn applied to the current value.
func (u *Param[T]) Update(fn func(T) T) error {
	return u.Set(fn(u.Get()))
}

// Reset removes the value from the URL.
func (u *Param[T]) Reset() error {
	return u.Set(u.defaults)
}

// Flush writes a pending debounced value now.
func (u *Param[T]) Flush() {
	u.timerMu.Lock()
	params := u.pending
	u.pending = nil
	if u.timer != nil {
		u.timer.Stop()
		u.timer = nil
	}
	u.timerMu.Unlock()

	if params != nil {
		u.apply(params)
	}
}

// Pending reports whether a debounced write is waiting.
func (u *Param[T]) Pending() bool {
	u.timerMu.Lock()
	defer u.timerMu.Unlock()
	return u.pending != nil
}

func (u *Param[T]) schedule(params map[string]any) {
	if u.config.debounce <= 0 {
		u.apply(params)
		return
	}

	u.timerMu.Lock()
	defer u.timerMu.Unlock()
	if u.timer != nil {
		u.timer.Stop()
	}
	u.pending = params
	u.timer = time.AfterFunc(u.config.debounce, u.Flush)
}

// apply writes params over the host's location at call time, so changes
// made since Set are kept.
func (u *Param[T]) apply(params map[string]any) {
	p := searchparams.New(u.host.Pathname(), u.host.SearchParams(), u.navigate,
		searchparams.WithLogger(u.config.logger))
	if err := p.SetMany(params); err != nil {
		u.config.logger.Error("url update failed", "key", u.key, "error", err)
	}
}

func (u *Param[T]) navigate(url string) {
	if mn, ok := u.host.(adapter.ModeNavigator); ok && u.config.modeSet {
		mn.NavigateMode(url, u.config.mode)
		return
	}
	u.host.Navigate(url)
}

func (u *Param[T]) decodeFailed(err error) {
	u.config.logger.Warn("failed to parse value", "key", u.key, "error", err)
	if u.config.diagnostics != nil {
		u.config.diagnostics(err)
	}
}

func decodeError(key string, err error) error {
	return errors.New("E010").WithDetail("key " + strconv.Quote(key)).Wrap(err)
}

// flat reports whether T is laid out as one param per field.
func (u *Param[T]) flat() bool {
	return u.config.encoding == EncodingFlat && structType(reflect.TypeOf((*T)(nil)).Elem())
}

// encode turns value into the params to write. An empty slice removes
// the key.
func (u *Param[T]) encode(value T) (map[string]any, error) {
	isDefault := codec.Equal(value, u.defaults)

	if u.flat() {
		params := make(map[string]any)
		v := reflect.ValueOf(value)
		for v.Kind() == reflect.Pointer {
			if v.IsNil() {
				v = reflect.Zero(v.Type().Elem())
				break
			}
			v = v.Elem()
		}
		for _, f := range fields(v.Type()) {
			fv := v.Field(f.index)
			if isDefault || fv.IsZero() {
				params[f.key] = []string{}
				continue
			}
			params[f.key] = encodeValues(fv)
		}
		return params, nil
	}

	if u.key == "" {
		return nil, errors.New("E001").WithDetail("urlparam with " + u.encodingName() + " encoding")
	}
	if isDefault {
		return map[string]any{u.key: []string{}}, nil
	}

	v := reflect.ValueOf(value)
	switch u.config.encoding {
	case EncodingJSON:
		return map[string]any{u.key: codec.Base64JSON.Serialize(value)}, nil
	case EncodingComma:
		if isList(v) {
			if v.Len() == 0 {
				return map[string]any{u.key: []string{}}, nil
			}
			return map[string]any{u.key: strings.Join(encodeValues(v), ",")}, nil
		}
	}
	return map[string]any{u.key: encodeValues(v)}, nil
}

// decode reads the value from store. ok is false when no param is present.
func (u *Param[T]) decode(store *query.Store) (out T, ok bool, err error) {
	if u.flat() {
		return u.decodeFlat(store)
	}

	values := store.GetAll(u.key)
	if len(values) == 0 {
		return out, false, nil
	}
	target := reflect.ValueOf(&out).Elem()

	switch u.config.encoding {
	case EncodingJSON:
		p := searchparams.New("", store, nil,
			searchparams.WithLogger(u.config.logger), searchparams.WithDiagnostics(u.config.diagnostics))
		v, ok := searchparams.GetAs[T](p, u.key, searchparams.Parse, searchparams.WithParser(codec.Base64JSON))
		if !ok {
			return out, false, nil
		}
		return v, true, nil

	case EncodingComma:
		if !isList(target) {
			return out, false, decodeError(u.key, fmt.Errorf("comma encoding needs a slice, not %v", target.Type()))
		}
		if values[0] == "" {
			return out, true, nil
		}
		values = strings.Split(values[0], ",")
	}

	if err := decodeValues(target, values); err != nil {
		return out, false, decodeError(u.key, err)
	}
	return out, true, nil
}

func (u *Param[T]) decodeFlat(store *query.Store) (out T, ok bool, err error) {
	target := reflect.ValueOf(&out).Elem()
	for target.Kind() == reflect.Pointer {
		target.Set(reflect.New(target.Type().Elem()))
		target = target.Elem()
	}

	for _, f := range fields(target.Type()) {
		values := store.GetAll(f.key)
		if len(values) == 0 {
			continue
		}
		if err := decodeValues(target.Field(f.index), values); err != nil {
			return out, false, decodeError(f.key, err)
		}
		ok = true
	}
	return out, ok, nil
}

func (u *Param[T]) encodingName() string {
	switch u.config.encoding {
	case EncodingFlat:
		return "flat"
	case EncodingJSON:
		return "json"
	case EncodingComma:
		return "comma"
	}
	return "plain"
}

// field is an exported struct field and its query key.
type field struct {
	index int
	key   string
}

func fields(t reflect.Type) []field {
	var out []field
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		key := sf.Tag.Get("url")
		if key == "" {
			key = strings.ToLower(sf.Name)
		}
		if key == "-" {
			continue
		}
		out = append(out, field{index: i, key: key})
	}
	return out
}

func structType(t reflect.Type) bool {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Kind() == reflect.Struct
}

// isList reports whether v is a slice or array other than raw bytes.
func isList(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Slice:
		return v.Type().Elem().Kind() != reflect.Uint8
	case reflect.Array:
		return true
	}
	return false
}

// encodeValues formats v as one value, or one per element for lists.
func encodeValues(v reflect.Value) []string {
	if !isList(v) {
		return []string{formatValue(v)}
	}
	out := make([]string, v.Len())
	for i := range out {
		out[i] = formatValue(v.Index(i))
	}
	return out
}

// formatValue stringifies scalars and serializes everything else as JSON.
func formatValue(v reflect.Value) string {
	if !v.IsValid() {
		return ""
	}
	switch v.Kind() {
	case reflect.Interface:
		if v.IsNil() {
			return ""
		}
		return formatValue(v.Elem())
	case reflect.Struct, reflect.Map, reflect.Slice, reflect.Array, reflect.Pointer:
		return codec.Serialize(v.Interface())
	}
	return codec.Stringify(v.Interface())
}

// decodeValues fills v from raw values: every value for lists, the first
// otherwise.
func decodeValues(v reflect.Value, values []string) error {
	if v.Kind() == reflect.Slice && isList(v) {
		slice := reflect.MakeSlice(v.Type(), len(values), len(values))
		for i, s := range values {
			if err := setValue(slice.Index(i), s); err != nil {
				return err
			}
		}
		v.Set(slice)
		return nil
	}
	if v.Kind() == reflect.Array {
		for i := 0; i < v.Len() && i < len(values); i++ {
			if err := setValue(v.Index(i), values[i]); err != nil {
				return err
			}
		}
		return nil
	}
	return setValue(v, values[0])
}

func setValue(v reflect.Value, s string) error {
	switch v.Kind() {
	case reflect.String:
		v.SetString(s)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, err := strconv.ParseInt(s, 10, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetInt(i)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		i, err := strconv.ParseUint(s, 10, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetUint(i)
	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(s, v.Type().Bits())
		if err != nil {
			return err
		}
		v.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return err
		}
		v.SetBool(b)
	case reflect.Interface:
		if v.NumMethod() != 0 {
			return fmt.Errorf("unsupported type: %v", v.Type())
		}
		v.Set(reflect.ValueOf(s))
	default:
		if !v.CanAddr() {
			return fmt.Errorf("unsupported type: %v", v.Type())
		}
		return json.Unmarshal([]byte(s), v.Addr().Interface())
	}
	return nil
}
