package router

import "github.com/vango-dev/searchparams/pkg/action"

// FrameType identifies a WebSocket frame.
type FrameType string

// Client to server.
const (
	// FrameLocation reports the client's location: on connect and after
	// every popstate.
	FrameLocation FrameType = "location"

	// FrameOp carries an action.Request to run against the session.
	FrameOp FrameType = "op"

	// FramePing asks for a pong.
	FramePing FrameType = "ping"
)

// Server to client.
const (
	// FrameURLPush tells the client router to push URL.
	FrameURLPush FrameType = "url_push"

	// FrameURLReplace tells the client router to replace with URL.
	FrameURLReplace FrameType = "url_replace"

	// FrameState carries the session's URL, every parameter and, after an
	// op, its result.
	FrameState FrameType = "state"

	// FrameError carries an error code and message.
	FrameError FrameType = "error"

	// FramePong answers a ping.
	FramePong FrameType = "pong"
)

// Frame is the JSON message exchanged in both directions. ID, when set by
// the client, is echoed on the reply.
type Frame struct {
	Type    FrameType       `json:"type"`
	ID      string          `json:"id,omitempty"`
	URL     string          `json:"url,omitempty"`
	Request *action.Request `json:"request,omitempty"`
	Params  map[string]any  `json:"params,omitempty"`
	Result  *action.Result  `json:"result,omitempty"`
	Code    string          `json:"code,omitempty"`
	Message string          `json:"message,omitempty"`
}
