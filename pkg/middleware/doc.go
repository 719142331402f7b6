// Package middleware provides the observability layer around navigation
// and HTTP handling.
//
// This package includes:
//   - Prometheus metrics (navigations, decode failures, errors, request
//     durations, active router sessions)
//   - OpenTelemetry tracing for HTTP requests and navigations
//   - Gate, the single mutation gate every navigation passes through
//
// # Prometheus Metrics
//
//	m := middleware.NewMetrics(
//	    middleware.WithNamespace("shop"),
//	    middleware.WithRegistry(reg),
//	)
//	r.Use(m.Middleware)
//	r.Handle("/metrics", m.Handler())
//
// Decode failures reach the metrics through the engine's diagnostics hook:
//
//	p := searchparams.FromAdapter(a, searchparams.WithDiagnostics(m.RecordError))
//
// # OpenTelemetry
//
// The tracer comes from the global provider. Configure it in main() before
// starting the server:
//
//	otel.SetTracerProvider(tp)
//	t := middleware.NewTracing(middleware.WithTracerName("shop"))
//	r.Use(t.Middleware)
//
// # Gate
//
// Engine writes end in one navigate call. Wrapping the adapter in a Gate
// serializes those calls and counts and traces each one:
//
//	g := middleware.NewGate("browser", middleware.WithGateMetrics(m))
//	p := searchparams.FromAdapter(g.Wrap(ctx, h, "set"))
//
// Metrics and Tracing methods are safe to call on a nil receiver, so
// disabled observability needs no branches at call sites.
package middleware
