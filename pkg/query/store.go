// Package query implements the parameter store: an ordered multi-map of
// query-string keys to their values, with application/x-www-form-urlencoded
// parsing and encoding.
//
// Unlike url.Values, a Store remembers key order, so a URL survives a
// parse/encode round trip without its parameters being sorted.
package query

import (
	"net/url"
	"strings"
)

// Store is an ordered multi-map from key to values.
// A key present in the store always has at least one value.
//
// The zero value is an empty store ready to use.
type Store struct {
	keys   []string
	values map[string][]string
}

// New returns an empty store.
func New() *Store {
	return &Store{}
}

// Parse parses a query string, with or without a leading "?".
// Malformed percent-escapes are kept verbatim rather than rejected, the way
// browsers treat them.
func Parse(raw string) *Store {
	s := New()
	raw = strings.TrimPrefix(raw, "?")
	for raw != "" {
		var pair string
		pair, raw, _ = strings.Cut(raw, "&")
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		s.Append(unescape(k), unescape(v))
	}
	return s
}

// FromValues builds a store from url.Values. Keys are taken in sorted order
// since url.Values carries none.
func FromValues(v url.Values) *Store {
	return Parse(v.Encode())
}

func unescape(s string) string {
	u, err := url.QueryUnescape(s)
	if err != nil {
		return strings.ReplaceAll(s, "+", " ")
	}
	return u
}

// Get returns the first value for key, or "".
func (s *Store) Get(key string) string {
	if vs := s.GetAll(key); len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// GetAll returns a copy of every value stored for key, in order.
func (s *Store) GetAll(key string) []string {
	if s == nil || s.values == nil {
		return nil
	}
	vs, ok := s.values[key]
	if !ok {
		return nil
	}
	out := make([]string, len(vs))
	copy(out, vs)
	return out
}

// Has reports whether key is present.
func (s *Store) Has(key string) bool {
	if s == nil || s.values == nil {
		return false
	}
	_, ok := s.values[key]
	return ok
}

// Keys returns the keys in store order.
func (s *Store) Keys() []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s.keys))
	copy(out, s.keys)
	return out
}

// Len returns the number of distinct keys.
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return len(s.keys)
}

// Append adds value to the end of key's values.
func (s *Store) Append(key, value string) {
	if s.values == nil {
		s.values = make(map[string][]string)
	}
	if _, ok := s.values[key]; !ok {
		s.keys = append(s.keys, key)
	}
	s.values[key] = append(s.values[key], value)
}

// Set replaces every value for key. The key moves to the end of the store,
// matching delete-then-append. An empty values slice deletes the key.
func (s *Store) Set(key string, values []string) {
	s.Delete(key)
	for _, v := range values {
		s.Append(key, v)
	}
}

// Delete removes key and all its values.
func (s *Store) Delete(key string) {
	if s == nil || s.values == nil {
		return
	}
	if _, ok := s.values[key]; !ok {
		return
	}
	delete(s.values, key)
	for i, k := range s.keys {
		if k == key {
			s.keys = append(s.keys[:i:i], s.keys[i+1:]...)
			break
		}
	}
}

// Clone returns a deep copy of the store.
func (s *Store) Clone() *Store {
	c := New()
	if s == nil {
		return c
	}
	for _, k := range s.keys {
		for _, v := range s.values[k] {
			c.Append(k, v)
		}
	}
	return c
}

// Each calls fn for every key/value pair in store order.
func (s *Store) Each(fn func(key, value string)) {
	if s == nil {
		return
	}
	for _, k := range s.keys {
		for _, v := range s.values[k] {
			fn(k, v)
		}
	}
}

// Values converts the store to url.Values.
func (s *Store) Values() url.Values {
	out := url.Values{}
	s.Each(func(k, v string) {
		out.Add(k, v)
	})
	return out
}

// Encode serializes the store as key=value pairs joined by "&", in store
// order, each side percent-encoded for a query string.
func (s *Store) Encode() string {
	var b strings.Builder
	s.Each(func(k, v string) {
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(v))
	})
	return b.String()
}

// String returns Encode().
func (s *Store) String() string {
	return s.Encode()
}
