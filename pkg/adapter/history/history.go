// Package history adapts an in-memory browser history to
// searchparams.Adapter.
//
// It behaves like window.history for a single tab: Navigate pushes (or, in
// replace mode, replaces) an entry and fires a "urlchange" event; Back and
// Forward move through entries and fire "popstate". Every SearchParams call
// parses the current entry afresh.
package history

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/vango-dev/searchparams/pkg/adapter"
	"github.com/vango-dev/searchparams/pkg/query"
)

// EventType names a location change.
type EventType string

const (
	// EventURLChange fires after PushState, ReplaceState or Navigate.
	EventURLChange EventType = "urlchange"

	// EventPopState fires after Back or Forward.
	EventPopState EventType = "popstate"
)

// Event describes a location change.
type Event struct {
	Type EventType
	URL  string
}

// Option configures a History.
type Option func(*History)

// WithMode sets how Navigate records entries.
func WithMode(m adapter.Mode) Option {
	return func(h *History) {
		h.mode = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *History) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// History is a session history stack. It is safe for concurrent use.
type History struct {
	mu        sync.Mutex
	entries   []string
	index     int
	mode      adapter.Mode
	listeners map[int]func(Event)
	nextID    int
	logger    *slog.Logger
}

// New creates a history whose only entry is initialURL.
func New(initialURL string, opts ...Option) *History {
	h := &History{
		entries:   []string{normalize(initialURL, "/")},
		listeners: make(map[int]func(Event)),
		logger:    slog.Default().With("component", "history"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// normalize resolves url against the current pathname and drops any
// scheme and host.
func normalize(url, currentPath string) string {
	if strings.HasPrefix(url, "?") {
		url = currentPath + url
	}
	path, store := query.SplitURL(url)
	return query.CreateURL(path, store)
}

// Location returns the current entry.
func (h *History) Location() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.entries[h.index]
}

// Len returns the number of entries.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// Pathname implements searchparams.Adapter.
func (h *History) Pathname() string {
	path, _ := query.SplitURL(h.Location())
	return path
}

// SearchParams implements searchparams.Adapter.
func (h *History) SearchParams() *query.Store {
	_, store := query.SplitURL(h.Location())
	return store
}

// Navigate implements searchparams.Adapter.
func (h *History) Navigate(url string) {
	h.NavigateMode(url, h.mode)
}

// NavigateMode pushes or replaces url regardless of the configured mode.
func (h *History) NavigateMode(url string, mode adapter.Mode) {
	if mode == adapter.ModeReplace {
		h.ReplaceState(url)
		return
	}
	h.PushState(url)
}

// PushState adds an entry after the current one, discarding any forward
// entries.
func (h *History) PushState(url string) {
	h.mu.Lock()
	next := normalize(url, h.currentPathLocked())
	h.entries = append(h.entries[:h.index+1], next)
	h.index++
	h.mu.Unlock()

	h.logger.Debug("push state", "url", next)
	h.emit(Event{Type: EventURLChange, URL: next})
}

// ReplaceState overwrites the current entry.
func (h *History) ReplaceState(url string) {
	h.mu.Lock()
	next := normalize(url, h.currentPathLocked())
	h.entries[h.index] = next
	h.mu.Unlock()

	h.logger.Debug("replace state", "url", next)
	h.emit(Event{Type: EventURLChange, URL: next})
}

// Back moves to the previous entry. It returns false at the start.
func (h *History) Back() bool {
	return h.step(-1)
}

// Forward moves to the next entry. It returns false at the end.
func (h *History) Forward() bool {
	return h.step(1)
}

func (h *History) step(delta int) bool {
	h.mu.Lock()
	target := h.index + delta
	if target < 0 || target >= len(h.entries) {
		h.mu.Unlock()
		return false
	}
	h.index = target
	url := h.entries[target]
	h.mu.Unlock()

	h.emit(Event{Type: EventPopState, URL: url})
	return true
}

func (h *History) currentPathLocked() string {
	path, _ := query.SplitURL(h.entries[h.index])
	return path
}

// OnChange registers fn for every location change and returns a function
// that unregisters it.
func (h *History) OnChange(fn func(Event)) (unsubscribe func()) {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.listeners[id] = fn
	h.mu.Unlock()

	return func() {
		h.mu.Lock()
		delete(h.listeners, id)
		h.mu.Unlock()
	}
}

// emit runs listeners outside the lock so they may read the history.
func (h *History) emit(e Event) {
	h.mu.Lock()
	fns := make([]func(Event), 0, len(h.listeners))
	for _, fn := range h.listeners {
		fns = append(fns, fn)
	}
	h.mu.Unlock()

	for _, fn := range fns {
		fn(e)
	}
}
