// Package parsers provides typed codec.Parser implementations for common
// query value shapes: timestamps, ISO date-times, string enums, numbers and
// booleans.
//
// A parser that cannot decode its input falls back to the default value
// given with WithDefault, or reports failure when there is none:
//
//	page := parsers.NumberRange(1, 100, parsers.WithDefault(1.0))
//	p.Get("page", searchparams.Parse, searchparams.WithParser(page))
package parsers

import (
	"slices"
	"strconv"
	"time"

	"github.com/vango-dev/searchparams/pkg/codec"
)

// Option configures a typed parser.
type Option[T any] func(*Parser[T])

// WithDefault sets the value returned when the input cannot be parsed.
func WithDefault[T any](v T) Option[T] {
	return func(p *Parser[T]) {
		p.def = &v
	}
}

// WithValidate sets a predicate decoded values must satisfy.
func WithValidate[T any](fn func(T) bool) Option[T] {
	return func(p *Parser[T]) {
		p.validate = fn
	}
}

// Parser is a codec.Parser for values of type T.
type Parser[T any] struct {
	parse    func(string) (T, bool)
	format   func(T) string
	def      *T
	validate func(T) bool
}

var (
	_ codec.Parser    = (*Parser[int])(nil)
	_ codec.Validator = (*Parser[int])(nil)
)

// New builds a parser from a parse and a format function.
func New[T any](parse func(string) (T, bool), format func(T) string, opts ...Option[T]) *Parser[T] {
	p := &Parser[T]{parse: parse, format: format}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse implements codec.Parser.
func (p *Parser[T]) Parse(text string) (any, bool) {
	v, ok := p.ParseTyped(text)
	if !ok {
		return nil, false
	}
	return v, true
}

// ParseTyped parses text, falling back to the default.
func (p *Parser[T]) ParseTyped(text string) (T, bool) {
	v, ok := p.parse(text)
	if ok {
		return v, true
	}
	if p.def != nil {
		return *p.def, true
	}
	var zero T
	return zero, false
}

// Serialize implements codec.Parser. Values of another type are
// stringified.
func (p *Parser[T]) Serialize(v any) string {
	t, ok := v.(T)
	if !ok {
		return codec.Stringify(v)
	}
	return p.format(t)
}

// Validate implements codec.Validator.
func (p *Parser[T]) Validate(v any) bool {
	if p.validate == nil {
		return true
	}
	t, ok := v.(T)
	return ok && p.validate(t)
}

// Timestamp parses Unix millisecond timestamps.
func Timestamp(opts ...Option[int64]) *Parser[int64] {
	return New(
		func(s string) (int64, bool) {
			n, err := strconv.ParseInt(s, 10, 64)
			return n, err == nil
		},
		func(n int64) string { return strconv.FormatInt(n, 10) },
		opts...,
	)
}

// isoLayout matches the millisecond UTC form browsers produce.
const isoLayout = "2006-01-02T15:04:05.000Z07:00"

// ISODateTime parses RFC 3339 date-times and formats them in UTC with
// millisecond precision.
func ISODateTime(opts ...Option[time.Time]) *Parser[time.Time] {
	return New(
		func(s string) (time.Time, bool) {
			t, err := time.Parse(time.RFC3339Nano, s)
			return t, err == nil
		},
		func(t time.Time) string { return t.UTC().Format(isoLayout) },
		opts...,
	)
}

// StringEnum accepts only the listed values. Without WithValidate, decoded
// values are validated for membership too.
func StringEnum(values []string, opts ...Option[string]) *Parser[string] {
	allowed := slices.Clone(values)
	member := func(s string) bool { return slices.Contains(allowed, s) }
	p := New(
		func(s string) (string, bool) { return s, member(s) },
		func(s string) string { return s },
	)
	p.validate = member
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Number parses decimal numbers.
func Number(opts ...Option[float64]) *Parser[float64] {
	return New(parseFloat, formatFloat, opts...)
}

// NumberRange parses decimal numbers and clamps them into [lo, hi].
func NumberRange(lo, hi float64, opts ...Option[float64]) *Parser[float64] {
	return New(
		func(s string) (float64, bool) {
			f, ok := parseFloat(s)
			if !ok {
				return 0, false
			}
			return clamp(f, lo, hi), true
		},
		formatFloat,
		opts...,
	)
}

func clamp(f, lo, hi float64) float64 {
	if f < lo {
		return lo
	}
	if f > hi {
		return hi
	}
	return f
}

func parseFloat(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	return f, err == nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// Boolean accepts exactly "true" and "false".
func Boolean(opts ...Option[bool]) *Parser[bool] {
	return New(
		func(s string) (bool, bool) {
			switch s {
			case "true":
				return true, true
			case "false":
				return false, true
			}
			return false, false
		},
		strconv.FormatBool,
		opts...,
	)
}
