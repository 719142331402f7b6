// Package router adapts a client-side router, reached over a WebSocket, to
// searchparams.Adapter.
//
// A Session mirrors the client's location. Navigate updates the mirror and
// sends a url_push or url_replace frame; the client router performs the
// navigation and reports later location changes back with location frames.
// Clients may also run engine operations remotely with op frames.
package router

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/vango-dev/searchparams/internal/errors"
	"github.com/vango-dev/searchparams/pkg/action"
	"github.com/vango-dev/searchparams/pkg/adapter"
	"github.com/vango-dev/searchparams/pkg/middleware"
	"github.com/vango-dev/searchparams/pkg/query"
	"github.com/vango-dev/searchparams/pkg/searchparams"
)

// DefaultWriteTimeout bounds each frame write.
const DefaultWriteTimeout = 10 * time.Second

// Conn is the part of *websocket.Conn a Session uses.
type Conn interface {
	ReadJSON(v any) error
	WriteJSON(v any) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

var _ Conn = (*websocket.Conn)(nil)

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithMode sets whether Navigate sends url_push or url_replace.
func WithMode(m adapter.Mode) SessionOption {
	return func(s *Session) {
		s.mode = m
	}
}

// WithWriteTimeout bounds each frame write.
func WithWriteTimeout(d time.Duration) SessionOption {
	return func(s *Session) {
		if d > 0 {
			s.writeTimeout = d
		}
	}
}

// WithGate routes navigations made by op frames through g.
func WithGate(g *middleware.Gate) SessionOption {
	return func(s *Session) {
		s.gate = g
	}
}

// WithEngineOptions sets the options engines built for op frames get.
func WithEngineOptions(opts ...searchparams.EngineOption) SessionOption {
	return func(s *Session) {
		s.engineOpts = append(s.engineOpts, opts...)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) SessionOption {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Session is one connected client router.
type Session struct {
	// ID uniquely identifies the session.
	ID string

	conn Conn

	// mu guards the location.
	mu       sync.Mutex
	pathname string
	rawQuery string

	// writeMu serializes writes; a websocket connection allows one writer.
	writeMu sync.Mutex

	mode         adapter.Mode
	writeTimeout time.Duration
	gate         *middleware.Gate
	engineOpts   []searchparams.EngineOption
	logger       *slog.Logger
	closed       atomic.Bool
}

// NewSession creates a session over conn starting at initialURL.
func NewSession(conn Conn, initialURL string, opts ...SessionOption) *Session {
	s := &Session{
		ID:           uuid.NewString(),
		conn:         conn,
		writeTimeout: DefaultWriteTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default().With("component", "router", "session", s.ID)
	}
	s.setLocation(initialURL)
	return s
}

// Pathname implements searchparams.Adapter.
func (s *Session) Pathname() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pathname
}

// SearchParams implements searchparams.Adapter.
func (s *Session) SearchParams() *query.Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	return query.Parse(s.rawQuery)
}

// Location returns the mirrored URL.
func (s *Session) Location() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.rawQuery == "" {
		return s.pathname
	}
	return s.pathname + "?" + s.rawQuery
}

// Navigate implements searchparams.Adapter.
func (s *Session) Navigate(url string) {
	s.NavigateMode(url, s.mode)
}

// NavigateMode is Navigate with an explicit history mode.
func (s *Session) NavigateMode(url string, mode adapter.Mode) {
	s.setLocation(url)

	typ := FrameURLPush
	if mode == adapter.ModeReplace {
		typ = FrameURLReplace
	}
	if err := s.send(Frame{Type: typ, URL: s.Location()}); err != nil {
		s.logger.Error("navigate send failed", "url", url, "error", err)
	}
}

func (s *Session) setLocation(url string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if strings.HasPrefix(url, "?") && s.pathname != "" {
		url = s.pathname + url
	}
	path, store := query.SplitURL(url)
	s.pathname = path
	s.rawQuery = store.Encode()
}

// Serve sends the initial state and handles frames until the connection
// closes or ctx is done. A normal close returns nil.
func (s *Session) Serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { s.Close() })
	defer stop()
	defer s.Close()

	s.sendState("", nil, searchparams.Options{})

	for {
		var f Frame
		if err := s.conn.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseNormalClosure) && !s.closed.Load() {
				s.logger.Error("read error", "error", err)
				return err
			}
			return nil
		}
		s.handle(ctx, f)
	}
}

func (s *Session) handle(ctx context.Context, f Frame) {
	switch f.Type {
	case FrameLocation:
		s.setLocation(f.URL)
		s.logger.Debug("location", "url", s.Location())
		s.sendState(f.ID, nil, searchparams.Options{})

	case FramePing:
		s.reply(Frame{Type: FramePong, ID: f.ID})

	case FrameOp:
		if f.Request == nil {
			s.sendError(f.ID, errors.New("E003").WithDetail("op frame without request"))
			return
		}
		s.apply(ctx, f.ID, *f.Request)

	default:
		s.logger.Warn("unknown frame type", "type", f.Type)
		s.sendError(f.ID, errors.New("E003").WithDetail("frame type "+string(f.Type)))
	}
}

func (s *Session) apply(ctx context.Context, id string, req action.Request) {
	var a searchparams.Adapter = s
	if s.gate != nil {
		a = s.gate.Wrap(ctx, s, string(req.Op))
	}

	res, err := action.Apply(searchparams.FromAdapter(a, s.engineOpts...), req)
	if err != nil {
		s.logger.Debug("op failed", "op", req.Op, "error", err)
		s.sendError(id, err)
		return
	}
	s.sendState(id, &res, req.Options)
}

func (s *Session) sendState(id string, res *action.Result, opts searchparams.Options) {
	p := searchparams.FromAdapter(s, s.engineOpts...)
	read := searchparams.Options{Parse: opts.Parse, ForceArray: opts.ForceArray}
	s.reply(Frame{
		Type:   FrameState,
		ID:     id,
		URL:    s.Location(),
		Params: p.GetAll(read),
		Result: res,
	})
}

func (s *Session) sendError(id string, err error) {
	e := errors.FromError(err, "E003")
	s.reply(Frame{Type: FrameError, ID: id, Code: e.Code, Message: e.Error()})
}

func (s *Session) reply(f Frame) {
	if err := s.send(f); err != nil {
		s.logger.Error("send failed", "type", f.Type, "error", err)
	}
}

func (s *Session) send(f Frame) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
		return err
	}
	return s.conn.WriteJSON(f)
}

// Close closes the connection. It is safe to call more than once.
func (s *Session) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.conn.Close()
}
