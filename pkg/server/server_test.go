package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/vango-dev/searchparams/pkg/action"
	"github.com/vango-dev/searchparams/pkg/adapter"
	"github.com/vango-dev/searchparams/pkg/adapter/router"
	"github.com/vango-dev/searchparams/pkg/middleware"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func newTestServer(t *testing.T, mutate func(*Config)) (*Server, *httptest.Server) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Logger = quiet
	cfg.Metrics = middleware.NewMetrics(middleware.WithRegistry(prometheus.NewRegistry()))
	if mutate != nil {
		mutate(cfg)
	}
	s := New(cfg)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Address != "localhost:8080" {
		t.Errorf("Address = %q", cfg.Address)
	}
	if cfg.URLHeader != "X-URL" {
		t.Errorf("URLHeader = %q", cfg.URLHeader)
	}
	if cfg.RouterMode != adapter.ModePush {
		t.Errorf("RouterMode = %v", cfg.RouterMode)
	}

	filled := Config{}.withDefaults()
	if filled.ReadTimeout != 15*time.Second || filled.MetricsPath != "/metrics" || filled.Logger == nil {
		t.Errorf("withDefaults did not fill zero fields: %+v", filled)
	}
}

func TestHealth(t *testing.T) {
	_, ts := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK || string(body) != "ok" {
		t.Errorf("GET /healthz = %d %q", resp.StatusCode, body)
	}
}

func getState(t *testing.T, target string, header map[string]string) StateResponse {
	t.Helper()
	req, err := http.NewRequest("GET", target, nil)
	if err != nil {
		t.Fatal(err)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var got StateResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	return got
}

func TestState(t *testing.T) {
	_, ts := newTestServer(t, nil)

	t.Run("url parameter", func(t *testing.T) {
		page := `/products?view=grid&tags=a&tags=b&f=%7B%22x%22%3A1%7D`
		got := getState(t, ts.URL+"/api/state?url="+url.QueryEscape(page), nil)

		if got.Pathname != "/products" {
			t.Errorf("Pathname = %q", got.Pathname)
		}
		if got.URL != page {
			t.Errorf("URL = %q, want %q", got.URL, page)
		}
		if got.Params["view"] != "grid" {
			t.Errorf("view = %v", got.Params["view"])
		}
		if tags, ok := got.Params["tags"].([]any); !ok || len(tags) != 2 {
			t.Errorf("tags = %v", got.Params["tags"])
		}
		if got.Params["f"] != `{"x":1}` {
			t.Errorf("f = %v, want raw JSON text", got.Params["f"])
		}
		if got.Source != "header" {
			t.Errorf("Source = %q", got.Source)
		}
	})

	t.Run("parse", func(t *testing.T) {
		page := `/p?f=%7B%22x%22%3A1%7D&n=5&bad=nope`
		got := getState(t, ts.URL+"/api/state?parse=1&url="+url.QueryEscape(page), nil)

		f, ok := got.Params["f"].(map[string]any)
		if !ok || f["x"] != float64(1) {
			t.Errorf("f = %v", got.Params["f"])
		}
		if got.Params["n"] != float64(5) {
			t.Errorf("n = %v", got.Params["n"])
		}
		if v, present := got.Params["bad"]; !present || v != nil {
			t.Errorf("bad = %v (present %v), want null", v, present)
		}
	})

	t.Run("header", func(t *testing.T) {
		got := getState(t, ts.URL+"/api/state", map[string]string{"X-URL": "/h?a=1"})
		if got.URL != "/h?a=1" {
			t.Errorf("URL = %q", got.URL)
		}
	})

	t.Run("referer", func(t *testing.T) {
		got := getState(t, ts.URL+"/api/state", map[string]string{"Referer": "http://shop.test/r?b=2"})
		if got.URL != "/r?b=2" || got.Source != "referer" {
			t.Errorf("URL = %q, Source = %q", got.URL, got.Source)
		}
	})
}

func postApply(t *testing.T, ts *httptest.Server, body string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Post(ts.URL+"/api/apply", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp, data
}

func TestApply(t *testing.T) {
	_, ts := newTestServer(t, nil)

	tests := []struct {
		name      string
		body      string
		wantURL   string
		navigated bool
		value     any
	}{
		{
			name:      "add",
			body:      `{"url":"/products?tags=a","request":{"op":"add","key":"tags","values":["b","a"]}}`,
			wantURL:   "/products?tags=a&tags=b",
			navigated: true,
		},
		{
			name:      "set serialized",
			body:      `{"url":"/p","request":{"op":"set","key":"f","values":{"cat":"tech"},"options":{"serialize":true}}}`,
			wantURL:   "/p?f=%7B%22cat%22%3A%22tech%22%7D",
			navigated: true,
		},
		{
			name:      "reset",
			body:      `{"url":"/p?a=1&b=2","request":{"op":"reset"}}`,
			wantURL:   "/p",
			navigated: true,
		},
		{
			name:    "matches",
			body:    `{"url":"/p?tags=a","request":{"op":"matches","key":"tags","value":"a"}}`,
			wantURL: "/p?tags=a",
			value:   true,
		},
		{
			name:    "get with default",
			body:    `{"url":"/p","request":{"op":"getWithDefault","key":"sort","default":"asc"}}`,
			wantURL: "/p",
			value:   "asc",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, data := postApply(t, ts, tt.body)
			if resp.StatusCode != http.StatusOK {
				t.Fatalf("status = %d: %s", resp.StatusCode, data)
			}
			var got ApplyResponse
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatal(err)
			}
			if got.URL != tt.wantURL {
				t.Errorf("URL = %q, want %q", got.URL, tt.wantURL)
			}
			if got.Navigated != tt.navigated {
				t.Errorf("Navigated = %v, want %v", got.Navigated, tt.navigated)
			}
			if got.Result.Value != tt.value {
				t.Errorf("Value = %v, want %v", got.Result.Value, tt.value)
			}
		})
	}
}

func TestApplyErrors(t *testing.T) {
	_, ts := newTestServer(t, nil)

	tests := []struct {
		name string
		body string
		code string
	}{
		{"empty key", `{"url":"/p","request":{"op":"set","values":"x"}}`, "E001"},
		{"undefined values", `{"url":"/p","request":{"op":"add","key":"a"}}`, "E002"},
		{"unknown op", `{"url":"/p","request":{"op":"explode"}}`, "E003"},
		{"bad body", `{"url":`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, data := postApply(t, ts, tt.body)
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", resp.StatusCode)
			}
			var got struct {
				Code     string `json:"code"`
				Category string `json:"category"`
			}
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("error body is not JSON: %s", data)
			}
			if got.Code != tt.code {
				t.Errorf("code = %q, want %q", got.Code, tt.code)
			}
			if got.Category != "validation" {
				t.Errorf("category = %q", got.Category)
			}
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	_, ts := newTestServer(t, nil)

	postApply(t, ts, `{"url":"/p","request":{"op":"set","key":"a","values":"1"}}`)
	postApply(t, ts, `{"url":"/p","request":{"op":"set","values":"1"}}`)
	getState(t, ts.URL+"/api/state?parse=1&url="+url.QueryEscape("/p?bad=nope"), nil)

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	for _, want := range []string{
		`searchparams_navigations_total{op="set",provider="browser"} 1`,
		`searchparams_errors_total{code="E001"} 1`,
		`searchparams_decode_failures_total{key="bad"} 1`,
		`route="/api/apply"`,
	} {
		if !bytes.Contains(body, []byte(want)) {
			t.Errorf("metrics missing %s", want)
		}
	}
}

func TestMetricsDisabled(t *testing.T) {
	_, ts := newTestServer(t, func(c *Config) { c.Metrics = nil })

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestWebSocket(t *testing.T) {
	s, ts := newTestServer(t, func(c *Config) { c.RouterMode = adapter.ModeReplace })

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?url=" + url.QueryEscape("/p?a=1")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	read := func() router.Frame {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		var f router.Frame
		if err := conn.ReadJSON(&f); err != nil {
			t.Fatal(err)
		}
		return f
	}

	if f := read(); f.Type != router.FrameState || f.URL != "/p?a=1" {
		t.Fatalf("initial frame = %+v", f)
	}
	if s.Hub().Len() != 1 {
		t.Errorf("Hub().Len() = %d, want 1", s.Hub().Len())
	}

	req := &action.Request{Op: action.OpAdd, Key: "a", Values: "2"}
	if err := conn.WriteJSON(router.Frame{Type: router.FrameOp, Request: req}); err != nil {
		t.Fatal(err)
	}
	if f := read(); f.Type != router.FrameURLReplace || f.URL != "/p?a=1&a=2" {
		t.Errorf("navigation frame = %+v", f)
	}
	if f := read(); f.Type != router.FrameState {
		t.Errorf("state frame = %+v", f)
	}
}

func TestListenAndServe(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	ln.Close()

	cfg := DefaultConfig()
	cfg.Address = addr
	cfg.Logger = quiet
	s := New(cfg)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err == nil {
			resp.Body.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("server did not start: %v", err)
		}
		time.Sleep(20 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("ListenAndServe() = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
