package middleware

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"

	"github.com/vango-dev/searchparams/pkg/searchparams"
)

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithGateMetrics counts navigations in m.
func WithGateMetrics(m *Metrics) GateOption {
	return func(g *Gate) {
		g.metrics = m
	}
}

// WithGateTracing opens a span per navigation.
func WithGateTracing(t *Tracing) GateOption {
	return func(g *Gate) {
		g.tracing = t
	}
}

// WithGateLogger sets the logger.
func WithGateLogger(logger *slog.Logger) GateOption {
	return func(g *Gate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// Gate serializes navigations for one provider. Every write the engine
// makes reaches the host through exactly one gated navigate call.
type Gate struct {
	mu       sync.Mutex
	provider string
	count    atomic.Uint64
	metrics  *Metrics
	tracing  *Tracing
	logger   *slog.Logger
}

// NewGate creates a gate for provider.
func NewGate(provider string, opts ...GateOption) *Gate {
	g := &Gate{
		provider: provider,
		logger:   slog.Default().With("component", "gate"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Count returns the number of navigations that went through the gate.
func (g *Gate) Count() uint64 {
	return g.count.Load()
}

// Navigate wraps next so each call holds the gate, is counted under op and
// runs inside a searchparams.navigate span.
func (g *Gate) Navigate(ctx context.Context, op string, next searchparams.NavigateFunc) searchparams.NavigateFunc {
	return func(url string) {
		_, span := g.tracing.Start(ctx, "searchparams.navigate",
			attribute.String("url", url),
			attribute.String("provider", g.provider),
			attribute.String("op", op),
		)
		defer span.End()

		g.mu.Lock()
		defer g.mu.Unlock()

		next(url)
		g.count.Add(1)
		g.metrics.RecordNavigation(g.provider, op)
		g.logger.Debug("navigate", "provider", g.provider, "op", op, "url", url)
	}
}

// Wrap returns a so that its Navigate runs through the gate.
func (g *Gate) Wrap(ctx context.Context, a searchparams.Adapter, op string) searchparams.Adapter {
	return gatedAdapter{Adapter: a, navigate: g.Navigate(ctx, op, a.Navigate)}
}

type gatedAdapter struct {
	searchparams.Adapter
	navigate searchparams.NavigateFunc
}

func (a gatedAdapter) Navigate(url string) { a.navigate(url) }
