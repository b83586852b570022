// Package sockserver provides the socket-facing session server.
package sockserver

// Wire event names. Frames are single-line JSON objects separated by
// '\n'; the "event" field selects the operation.
const (
	// EventRequestToken is sent by the peer to open or resume a
	// session. The "token" field carries the previous token, empty
	// or absent on first contact.
	EventRequestToken = "request-token"

	// EventTokenIssued answers request-token. The "token" field is
	// the session token to present next time; "errors" is empty on
	// a clean resume and holds a diagnostic when the presented
	// token was replaced or the lookup failed.
	EventTokenIssued = "token-issued"

	// EventSessionSet stores a value under "key". No reply.
	EventSessionSet = "session-set"

	// EventSessionGet reads the value under "key".
	EventSessionGet = "session-get"

	// EventSessionValue answers session-get.
	EventSessionValue = "session-value"

	// EventSessionClear empties the session. No reply.
	EventSessionClear = "session-clear"

	// EventError reports a protocol-level failure.
	EventError = "error"
)

// request is an inbound frame.
type request struct {
	Event string `json:"event"`
	Token string `json:"token"`
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// tokenIssued is the reply to request-token. Both fields are always
// present on the wire, mirroring the (token, errors) callback shape
// peers expect.
type tokenIssued struct {
	Event  string `json:"event"`
	Token  string `json:"token"`
	Errors string `json:"errors"`
}

// sessionValue is the reply to session-get. Value is the empty
// string when the key is absent.
type sessionValue struct {
	Event string `json:"event"`
	Key   string `json:"key"`
	Value any    `json:"value"`
}

// errorFrame reports a protocol failure without closing the session.
type errorFrame struct {
	Event  string `json:"event"`
	Errors string `json:"errors"`
}

func newErrorFrame(msg string) errorFrame {
	return errorFrame{Event: EventError, Errors: msg}
}
