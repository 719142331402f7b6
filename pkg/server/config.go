package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/vango-dev/searchparams/pkg/adapter"
	"github.com/vango-dev/searchparams/pkg/adapter/ssr"
	"github.com/vango-dev/searchparams/pkg/middleware"
)

// Config holds server configuration.
type Config struct {
	// Address is the listen address.
	// Default: "localhost:8080".
	Address string

	// ReadTimeout is the maximum duration for reading a request.
	// Default: 15 seconds.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration for writing a response.
	// Default: 15 seconds.
	WriteTimeout time.Duration

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 10 seconds.
	ShutdownTimeout time.Duration

	// URLHeader carries the page URL for /api/state.
	// Default: "X-URL".
	URLHeader string

	// RouterMode is how router sessions navigate.
	// Default: adapter.ModePush.
	RouterMode adapter.Mode

	// MetricsPath is where Metrics are served.
	// Default: "/metrics".
	MetricsPath string

	// Metrics, when set, records request, navigation and session metrics
	// and is served at MetricsPath.
	Metrics *middleware.Metrics

	// Tracing, when set, opens spans per request and per navigation.
	Tracing *middleware.Tracing

	// CheckOrigin validates WebSocket origins. Nil rejects cross-origin
	// upgrades.
	CheckOrigin func(r *http.Request) bool

	// Logger is the server logger.
	// Default: slog.Default() with component=server.
	Logger *slog.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Address:         "localhost:8080",
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    15 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		URLHeader:       ssr.DefaultURLHeader,
		RouterMode:      adapter.ModePush,
		MetricsPath:     "/metrics",
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Address == "" {
		c.Address = d.Address
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = d.ReadTimeout
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = d.ShutdownTimeout
	}
	if c.URLHeader == "" {
		c.URLHeader = d.URLHeader
	}
	if c.MetricsPath == "" {
		c.MetricsPath = d.MetricsPath
	}
	if c.Logger == nil {
		c.Logger = slog.Default().With("component", "server")
	}
	return c
}
