// Package adapter holds what the host adapters share.
//
// Each subpackage adapts one host environment to searchparams.Adapter:
//
//   - ssr: server rendering; reads the request URL, cannot navigate
//   - history: a plain browser history stack (pushState/replaceState)
//   - router: a client-side router driven over a WebSocket session
package adapter

import "fmt"

// Mode determines how a navigation lands in the host's history.
type Mode int

const (
	// ModePush adds a new history entry (default behavior).
	ModePush Mode = iota

	// ModeReplace replaces the current history entry (no back button spam).
	ModeReplace
)

// String returns "push" or "replace".
func (m Mode) String() string {
	if m == ModeReplace {
		return "replace"
	}
	return "push"
}

// ModeNavigator is implemented by hosts that can pick the mode for a single
// navigation instead of using their configured one.
type ModeNavigator interface {
	NavigateMode(url string, mode Mode)
}

// ParseMode parses "push" or "replace". The empty string is ModePush.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "push":
		return ModePush, nil
	case "replace":
		return ModeReplace, nil
	}
	return ModePush, fmt.Errorf("unknown navigation mode %q", s)
}
