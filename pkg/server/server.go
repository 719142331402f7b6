package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	sperrors "github.com/vango-dev/searchparams/internal/errors"
	"github.com/vango-dev/searchparams/pkg/action"
	"github.com/vango-dev/searchparams/pkg/adapter/history"
	"github.com/vango-dev/searchparams/pkg/adapter/router"
	"github.com/vango-dev/searchparams/pkg/adapter/ssr"
	"github.com/vango-dev/searchparams/pkg/middleware"
	"github.com/vango-dev/searchparams/pkg/provider"
	"github.com/vango-dev/searchparams/pkg/searchparams"
)

// maxBodyBytes bounds /api/apply request bodies.
const maxBodyBytes = 1 << 20

// Server serves the HTTP API and router sessions.
type Server struct {
	config     Config
	router     chi.Router
	hub        *router.Hub
	applyGate  *middleware.Gate
	httpServer *http.Server
}

// New creates a server. A nil config uses DefaultConfig.
func New(config *Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}
	cfg := config.withDefaults()

	s := &Server{
		config: cfg,
		applyGate: middleware.NewGate(string(provider.Browser),
			middleware.WithGateMetrics(cfg.Metrics),
			middleware.WithGateTracing(cfg.Tracing),
			middleware.WithGateLogger(cfg.Logger),
		),
	}

	routerGate := middleware.NewGate(string(provider.Router),
		middleware.WithGateMetrics(cfg.Metrics),
		middleware.WithGateTracing(cfg.Tracing),
		middleware.WithGateLogger(cfg.Logger),
	)
	hubOpts := []router.HubOption{
		router.WithMetrics(cfg.Metrics),
		router.WithHubLogger(cfg.Logger),
		router.WithSessionOptions(
			router.WithMode(cfg.RouterMode),
			router.WithWriteTimeout(cfg.WriteTimeout),
			router.WithGate(routerGate),
			router.WithEngineOptions(s.engineOptions()...),
		),
	}
	if cfg.CheckOrigin != nil {
		hubOpts = append(hubOpts, router.WithCheckOrigin(cfg.CheckOrigin))
	}
	s.hub = router.NewHub(hubOpts...)

	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(s.config.Tracing.Middleware)
	r.Use(s.config.Metrics.Middleware)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/state", s.handleState)
		r.Post("/apply", s.handleApply)
	})
	r.Handle("/ws", s.hub)
	if s.config.Metrics != nil {
		r.Handle(s.config.MetricsPath, s.config.Metrics.Handler())
	}
	return r
}

func (s *Server) engineOptions() []searchparams.EngineOption {
	return []searchparams.EngineOption{
		searchparams.WithLogger(s.config.Logger),
		searchparams.WithDiagnostics(s.config.Metrics.RecordError),
	}
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Hub returns the router session hub.
func (s *Server) Hub() *router.Hub {
	return s.hub
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.config.Address,
		Handler:           s.router,
		ReadHeaderTimeout: s.config.ReadTimeout,
		ReadTimeout:       s.config.ReadTimeout,
		WriteTimeout:      s.config.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.config.Logger.Info("server starting", "address", s.config.Address)
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil

	case <-ctx.Done():
		s.config.Logger.Info("shutting down...")
		return s.Shutdown(context.Background())
	}
}

// Shutdown closes router sessions and stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	s.hub.Close()

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.config.Logger.Error("shutdown error", "error", err)
			return err
		}
	}

	s.config.Logger.Info("server shutdown complete")
	return nil
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.config.Logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", chimw.GetReqID(r.Context()),
		)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// StateResponse is the /api/state response body.
type StateResponse struct {
	URL      string         `json:"url"`
	Pathname string         `json:"pathname"`
	Params   map[string]any `json:"params"`
	Source   string         `json:"source"`
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := r
	if u := q.Get("url"); u != "" {
		req = r.Clone(r.Context())
		req.Header.Set(s.config.URLHeader, u)
	}

	a, err := provider.Select(provider.Server, provider.Host{
		Request: req,
		SSROptions: []ssr.Option{
			ssr.WithURLHeader(s.config.URLHeader),
			ssr.WithLogger(s.config.Logger),
			ssr.WithDiagnostics(s.config.Metrics.RecordError),
		},
	})
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	view := a.(*ssr.Adapter)

	var opts []searchparams.Option
	if q.Get("parse") == "1" || q.Get("parse") == "true" {
		opts = append(opts, searchparams.Parse)
	}
	p := searchparams.FromAdapter(a, s.engineOptions()...)

	writeJSON(w, http.StatusOK, StateResponse{
		URL:      p.URL(),
		Pathname: p.Pathname(),
		Params:   p.GetAll(opts...),
		Source:   view.Source(),
	})
}

// ApplyRequest is the /api/apply request body.
type ApplyRequest struct {
	URL     string         `json:"url"`
	Request action.Request `json:"request"`
}

// ApplyResponse is the /api/apply response body.
type ApplyResponse struct {
	URL       string        `json:"url"`
	Navigated bool          `json:"navigated"`
	Result    action.Result `json:"result"`
}

func (s *Server) handleApply(w http.ResponseWriter, r *http.Request) {
	var body ApplyRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest,
			sperrors.Newf(sperrors.CategoryValidation, "invalid request body: %v", err))
		return
	}
	if body.URL == "" {
		body.URL = "/"
	}

	h := history.New(body.URL, history.WithLogger(s.config.Logger))
	a := s.applyGate.Wrap(r.Context(), h, string(body.Request.Op))

	res, err := action.Apply(searchparams.FromAdapter(a, s.engineOptions()...), body.Request)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}

	writeJSON(w, http.StatusOK, ApplyResponse{
		URL:       h.Location(),
		Navigated: h.Len() > 1,
		Result:    res,
	})
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.config.Metrics.RecordError(err)
	s.config.Logger.Debug("request failed", "status", status, "error", err)

	e := sperrors.FromError(err, "")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(e.FormatJSON()))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
