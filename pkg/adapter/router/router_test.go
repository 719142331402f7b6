package router

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vango-dev/searchparams/pkg/action"
	"github.com/vango-dev/searchparams/pkg/adapter"
	"github.com/vango-dev/searchparams/pkg/middleware"
	"github.com/vango-dev/searchparams/pkg/searchparams"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// recordConn is a Conn that records writes and never yields reads.
type recordConn struct {
	mu     sync.Mutex
	frames []Frame
	closed bool
}

func (c *recordConn) ReadJSON(any) error { return io.EOF }

func (c *recordConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, v.(Frame))
	return nil
}

func (c *recordConn) SetWriteDeadline(time.Time) error { return nil }

func (c *recordConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func TestSessionNavigate(t *testing.T) {
	conn := &recordConn{}
	s := NewSession(conn, "https://shop.test/products?view=list", WithLogger(quiet))

	assert.NotEmpty(t, s.ID)
	assert.Equal(t, "/products", s.Pathname())
	assert.Equal(t, "/products?view=list", s.Location())

	require.NoError(t, searchparams.FromAdapter(s).Set("view", "grid"))
	assert.Equal(t, "/products?view=grid", s.Location())
	assert.Equal(t, "grid", s.SearchParams().Get("view"))

	require.Len(t, conn.frames, 1)
	assert.Equal(t, Frame{Type: FrameURLPush, URL: "/products?view=grid"}, conn.frames[0])
}

func TestSessionReplaceMode(t *testing.T) {
	conn := &recordConn{}
	s := NewSession(conn, "/p", WithMode(adapter.ModeReplace), WithLogger(quiet))
	s.Navigate("?a=1")

	require.Len(t, conn.frames, 1)
	assert.Equal(t, FrameURLReplace, conn.frames[0].Type)
	assert.Equal(t, "/p?a=1", conn.frames[0].URL)
}

func TestSessionNavigateMode(t *testing.T) {
	conn := &recordConn{}
	s := NewSession(conn, "/p", WithLogger(quiet))
	var _ adapter.ModeNavigator = s

	s.NavigateMode("/p?q=a", adapter.ModeReplace)
	s.NavigateMode("/p?q=b", adapter.ModePush)

	require.Len(t, conn.frames, 2)
	assert.Equal(t, FrameURLReplace, conn.frames[0].Type)
	assert.Equal(t, FrameURLPush, conn.frames[1].Type)
	assert.Equal(t, "/p?q=b", s.Location())
}

func TestSessionIDsUnique(t *testing.T) {
	a := NewSession(&recordConn{}, "/", WithLogger(quiet))
	b := NewSession(&recordConn{}, "/", WithLogger(quiet))
	assert.NotEqual(t, a.ID, b.ID)
}

func TestSessionClose(t *testing.T) {
	conn := &recordConn{}
	s := NewSession(conn, "/", WithLogger(quiet))
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.True(t, conn.closed)
}

// dial starts a hub server and connects a client at pageURL.
func dial(t *testing.T, hub *Hub, pageURL string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?url=" + url.QueryEscape(pageURL)
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	var f Frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestHubSession(t *testing.T) {
	hub := NewHub(WithHubLogger(quiet), WithSessionOptions(WithLogger(quiet)))
	conn := dial(t, hub, "/products?view=list&tags=a&tags=b")

	initial := read(t, conn)
	assert.Equal(t, FrameState, initial.Type)
	assert.Equal(t, "/products?view=list&tags=a&tags=b", initial.URL)
	assert.Equal(t, "list", initial.Params["view"])
	assert.Equal(t, []any{"a", "b"}, initial.Params["tags"])

	require.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, 10*time.Millisecond)

	t.Run("op", func(t *testing.T) {
		req := &action.Request{Op: action.OpSet, Key: "view", Values: "grid"}
		require.NoError(t, conn.WriteJSON(Frame{Type: FrameOp, ID: "1", Request: req}))

		push := read(t, conn)
		assert.Equal(t, FrameURLPush, push.Type)
		assert.Equal(t, "/products?tags=a&tags=b&view=grid", push.URL)

		state := read(t, conn)
		assert.Equal(t, FrameState, state.Type)
		assert.Equal(t, "1", state.ID)
		assert.Equal(t, push.URL, state.URL)
		require.NotNil(t, state.Result)
		assert.Equal(t, action.OpSet, state.Result.Op)
	})

	t.Run("read op", func(t *testing.T) {
		req := &action.Request{Op: action.OpMatches, Key: "tags", Value: "b"}
		require.NoError(t, conn.WriteJSON(Frame{Type: FrameOp, ID: "2", Request: req}))

		state := read(t, conn)
		assert.Equal(t, FrameState, state.Type)
		assert.Equal(t, true, state.Result.Value)
	})

	t.Run("location", func(t *testing.T) {
		require.NoError(t, conn.WriteJSON(Frame{Type: FrameLocation, URL: "/products?page=3"}))

		state := read(t, conn)
		assert.Equal(t, "/products?page=3", state.URL)
		assert.Equal(t, map[string]any{"page": "3"}, state.Params)
	})

	t.Run("ping", func(t *testing.T) {
		require.NoError(t, conn.WriteJSON(Frame{Type: FramePing, ID: "p"}))
		assert.Equal(t, Frame{Type: FramePong, ID: "p"}, read(t, conn))
	})

	t.Run("errors", func(t *testing.T) {
		require.NoError(t, conn.WriteJSON(Frame{Type: FrameOp, ID: "e1", Request: &action.Request{Op: "nope"}}))
		f := read(t, conn)
		assert.Equal(t, FrameError, f.Type)
		assert.Equal(t, "E003", f.Code)
		assert.Equal(t, "e1", f.ID)

		require.NoError(t, conn.WriteJSON(Frame{Type: FrameOp, ID: "e2", Request: &action.Request{Op: action.OpSet, Values: "x"}}))
		f = read(t, conn)
		assert.Equal(t, "E001", f.Code)

		require.NoError(t, conn.WriteJSON(Frame{Type: FrameOp, ID: "e3"}))
		assert.Equal(t, "E003", read(t, conn).Code)

		require.NoError(t, conn.WriteJSON(Frame{Type: "bogus"}))
		assert.Equal(t, FrameError, read(t, conn).Type)
	})

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	require.Eventually(t, func() bool { return hub.Len() == 0 }, time.Second, 10*time.Millisecond)
}

func TestHubGateAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := middleware.NewMetrics(middleware.WithRegistry(reg))
	gate := middleware.NewGate("router", middleware.WithGateMetrics(m), middleware.WithGateLogger(quiet))
	hub := NewHub(
		WithHubLogger(quiet),
		WithMetrics(m),
		WithSessionOptions(WithLogger(quiet), WithGate(gate), WithMode(adapter.ModeReplace)),
	)
	conn := dial(t, hub, "/p")
	read(t, conn)

	require.Eventually(t, func() bool {
		return gauge(t, reg, "searchparams_active_sessions") == 1
	}, time.Second, 10*time.Millisecond)

	req := &action.Request{Op: action.OpToggle, Key: "open"}
	require.NoError(t, conn.WriteJSON(Frame{Type: FrameOp, Request: req}))
	nav := read(t, conn)
	assert.Equal(t, FrameURLReplace, nav.Type)
	assert.Equal(t, "/p?open=true", nav.URL)
	read(t, conn)

	assert.Equal(t, uint64(1), gate.Count())

	hub.Close()
	require.Eventually(t, func() bool { return hub.Len() == 0 }, time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool {
		return gauge(t, reg, "searchparams_active_sessions") == 0
	}, time.Second, 10*time.Millisecond)
}

func TestServeEndsOnReadError(t *testing.T) {
	conn := &recordConn{}
	s := NewSession(conn, "/p?a=1", WithLogger(quiet))

	require.NoError(t, s.Serve(context.Background()))
	require.Len(t, conn.frames, 1)
	assert.Equal(t, FrameState, conn.frames[0].Type)
	assert.Equal(t, map[string]any{"a": "1"}, conn.frames[0].Params)
	assert.True(t, conn.closed)
}

func TestHubCloseSession(t *testing.T) {
	hub := NewHub(WithHubLogger(quiet), WithSessionOptions(WithLogger(quiet)))
	conn := dial(t, hub, "/")
	read(t, conn)
	require.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, 10*time.Millisecond)

	var id string
	hub.mu.RLock()
	for k := range hub.sessions {
		id = k
	}
	hub.mu.RUnlock()

	s, ok := hub.Get(id)
	require.True(t, ok)
	require.NoError(t, s.Close())
	require.Eventually(t, func() bool { return hub.Len() == 0 }, time.Second, 10*time.Millisecond)

	_, ok = hub.Get(id)
	assert.False(t, ok)
}

// gauge reads a single-series gauge from reg.
func gauge(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name && len(mf.GetMetric()) == 1 {
			return mf.GetMetric()[0].GetGauge().GetValue()
		}
	}
	return -1
}
