// Package provider selects the host adapter for a configured environment.
//
// The host context is passed in explicitly; nothing is looked up from
// globals:
//
//	a, err := provider.Select(provider.Server, provider.Host{Request: r})
package provider

import (
	"net/http"
	"strings"

	"github.com/vango-dev/searchparams/internal/errors"
	"github.com/vango-dev/searchparams/pkg/adapter/history"
	"github.com/vango-dev/searchparams/pkg/adapter/router"
	"github.com/vango-dev/searchparams/pkg/adapter/ssr"
	"github.com/vango-dev/searchparams/pkg/searchparams"
)

// ID identifies a host environment.
type ID string

const (
	// Server is server rendering: read-only, built from the request.
	Server ID = "server"

	// Router is a client-side router reached over a WebSocket session.
	Router ID = "router"

	// Browser is a plain browser history.
	Browser ID = "browser"
)

// IDs lists the known providers.
var IDs = []ID{Server, Router, Browser}

// ParseID parses a provider name, case-insensitively.
func ParseID(s string) (ID, error) {
	id := ID(strings.ToLower(strings.TrimSpace(s)))
	switch id {
	case Server, Router, Browser:
		return id, nil
	}
	return "", errors.New("E030").WithDetail("unknown provider " + s + "; use server, router or browser")
}

// Host carries the host context. Each provider reads only its own field.
type Host struct {
	// Request is the incoming request, for Server.
	Request *http.Request

	// SSROptions configure the server adapter.
	SSROptions []ssr.Option

	// Session is the connected router, for Router.
	Session *router.Session

	// History is the browser history, for Browser.
	History *history.History
}

// Select builds the adapter for id from host. A missing host context
// yields E020.
func Select(id ID, host Host) (searchparams.Adapter, error) {
	switch id {
	case Server:
		a, err := ssr.New(host.Request, host.SSROptions...)
		if err != nil {
			return nil, err
		}
		return a, nil
	case Router:
		if host.Session == nil {
			return nil, unavailable(id, "a router session")
		}
		return host.Session, nil
	case Browser:
		if host.History == nil {
			return nil, unavailable(id, "a history")
		}
		return host.History, nil
	}
	return nil, errors.New("E030").WithDetail("unknown provider " + string(id))
}

func unavailable(id ID, needs string) error {
	return errors.New("E020").WithDetail(string(id) + " provider needs " + needs)
}

// Engine selects the adapter and builds an engine over it.
func Engine(id ID, host Host, opts ...searchparams.EngineOption) (*searchparams.Params, error) {
	a, err := Select(id, host)
	if err != nil {
		return nil, err
	}
	return searchparams.FromAdapter(a, opts...), nil
}
