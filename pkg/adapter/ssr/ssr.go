// Package ssr adapts an incoming HTTP request to searchparams.Adapter for
// server rendering.
//
// The page URL is taken from a forwarding header (X-URL by default), then
// the Referer, then the request URL itself. A server cannot change the
// client's location, so Navigate only logs and reports E021.
package ssr

import (
	"log/slog"
	"net/http"

	"github.com/vango-dev/searchparams/internal/errors"
	"github.com/vango-dev/searchparams/pkg/query"
)

// DefaultURLHeader carries the page URL when a proxy or renderer forwards it.
const DefaultURLHeader = "X-URL"

type config struct {
	header      string
	pathname    string
	logger      *slog.Logger
	diagnostics func(error)
}

// Option configures an Adapter.
type Option func(*config)

// WithURLHeader sets the header the page URL is read from.
func WithURLHeader(name string) Option {
	return func(c *config) {
		if name != "" {
			c.header = name
		}
	}
}

// WithPathname overrides the pathname derived from the request.
func WithPathname(pathname string) Option {
	return func(c *config) {
		c.pathname = pathname
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithDiagnostics receives the E021 error for every attempted navigation.
func WithDiagnostics(fn func(error)) Option {
	return func(c *config) {
		c.diagnostics = fn
	}
}

// Adapter is a read-only view of the request's URL.
type Adapter struct {
	pathname    string
	rawQuery    string
	source      string
	logger      *slog.Logger
	diagnostics func(error)
}

// New builds an adapter from r. A nil request yields E020.
func New(r *http.Request, opts ...Option) (*Adapter, error) {
	if r == nil {
		return nil, errors.New("E020").WithDetail("server adapter needs an *http.Request")
	}

	cfg := config{
		header: DefaultURLHeader,
		logger: slog.Default().With("component", "ssr"),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	a := &Adapter{
		logger:      cfg.logger,
		diagnostics: cfg.diagnostics,
	}
	a.pathname, a.rawQuery, a.source = pageURL(r, cfg.header)
	if cfg.pathname != "" {
		a.pathname = cfg.pathname
	}
	return a, nil
}

// pageURL picks the first usable URL source and reports which one it used.
func pageURL(r *http.Request, header string) (pathname, rawQuery, source string) {
	if v := r.Header.Get(header); v != "" {
		pathname, rawQuery = split(v)
		return pathname, rawQuery, "header"
	}
	if v := r.Referer(); v != "" {
		pathname, rawQuery = split(v)
		return pathname, rawQuery, "referer"
	}
	if r.URL == nil {
		return "/", "", "request"
	}
	pathname = r.URL.Path
	if pathname == "" {
		pathname = "/"
	}
	return pathname, r.URL.RawQuery, "request"
}

func split(raw string) (pathname, rawQuery string) {
	path, store := query.SplitURL(raw)
	return path, store.Encode()
}

// Pathname implements searchparams.Adapter.
func (a *Adapter) Pathname() string {
	return a.pathname
}

// SearchParams implements searchparams.Adapter.
func (a *Adapter) SearchParams() *query.Store {
	return query.Parse(a.rawQuery)
}

// Source reports where the URL came from: "header", "referer" or "request".
func (a *Adapter) Source() string {
	return a.source
}

// URL returns the page URL the adapter reads.
func (a *Adapter) URL() string {
	return query.CreateURL(a.pathname, a.SearchParams())
}

// Navigate implements searchparams.Adapter. It never changes anything.
func (a *Adapter) Navigate(url string) {
	a.logger.Warn("navigation is not supported during server rendering", "url", url)
	if a.diagnostics != nil {
		a.diagnostics(errors.New("E021").WithDetail(url))
	}
}
