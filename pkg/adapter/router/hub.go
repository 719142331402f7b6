package router

import (
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/vango-dev/searchparams/pkg/middleware"
)

// HubOption configures a Hub.
type HubOption func(*Hub)

// WithSessionOptions sets the options every new session gets.
func WithSessionOptions(opts ...SessionOption) HubOption {
	return func(h *Hub) {
		h.sessionOpts = append(h.sessionOpts, opts...)
	}
}

// WithMetrics tracks open sessions in m.
func WithMetrics(m *middleware.Metrics) HubOption {
	return func(h *Hub) {
		h.metrics = m
	}
}

// WithCheckOrigin overrides the upgrader's origin check. The default
// rejects cross-origin requests.
func WithCheckOrigin(fn func(r *http.Request) bool) HubOption {
	return func(h *Hub) {
		h.upgrader.CheckOrigin = fn
	}
}

// WithHubLogger sets the logger.
func WithHubLogger(logger *slog.Logger) HubOption {
	return func(h *Hub) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// Hub upgrades HTTP requests to router sessions and tracks them.
type Hub struct {
	mu          sync.RWMutex
	sessions    map[string]*Session
	upgrader    websocket.Upgrader
	sessionOpts []SessionOption
	metrics     *middleware.Metrics
	logger      *slog.Logger
}

// NewHub creates a hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		sessions: make(map[string]*Session),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		logger: slog.Default().With("component", "hub"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ServeHTTP upgrades the request and serves the session until it closes.
// The initial location comes from the url query parameter, then the
// Referer, then "/".
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		h.logger.Warn("upgrade failed", "error", err)
		return
	}

	s := NewSession(conn, initialURL(r), h.sessionOpts...)
	h.add(s)
	defer h.remove(s)

	h.logger.Info("session opened", "session", s.ID, "url", s.Location())
	if err := s.Serve(r.Context()); err != nil {
		h.logger.Warn("session ended with error", "session", s.ID, "error", err)
		return
	}
	h.logger.Info("session closed", "session", s.ID)
}

func initialURL(r *http.Request) string {
	if u := r.URL.Query().Get("url"); u != "" {
		return u
	}
	if ref := r.Referer(); ref != "" {
		return ref
	}
	return "/"
}

func (h *Hub) add(s *Session) {
	h.mu.Lock()
	h.sessions[s.ID] = s
	h.mu.Unlock()
	h.metrics.SessionStarted()
}

func (h *Hub) remove(s *Session) {
	h.mu.Lock()
	_, ok := h.sessions[s.ID]
	delete(h.sessions, s.ID)
	h.mu.Unlock()
	if ok {
		h.metrics.SessionEnded()
	}
}

// Get returns the session with id.
func (h *Hub) Get(id string) (*Session, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	s, ok := h.sessions[id]
	return s, ok
}

// Len returns the number of open sessions.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// Close closes every open session.
func (h *Hub) Close() {
	h.mu.RLock()
	sessions := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.RUnlock()

	for _, s := range sessions {
		s.Close()
	}
}
