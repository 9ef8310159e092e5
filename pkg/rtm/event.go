package rtm

import "github.com/EgorLis/slackrtm/pkg/webapi"

// Kind separates the session's own lifecycle events from frames received on
// the wire, so a wire frame of type "error" never reaches lifecycle handlers.
type Kind int

const (
	KindWire Kind = iota
	KindOpen
	KindClose
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindWire:
		return "wire"
	case KindOpen:
		return "open"
	case KindClose:
		return "close"
	case KindError:
		return "error"
	}
	return "unknown"
}

// Lifecycle event names. On binds these to the matching Kind.
const (
	EventOpen  = "open"
	EventClose = "close"
	EventError = "error"
)

// A few wire event types worth naming.
const (
	EventHello   = "hello"
	EventMessage = "message"
	EventGoodbye = "goodbye"
	EventPong    = "pong"
	// EventUnknown is used for frames that carry no "type".
	EventUnknown = "Unknown"
)

// kindOf maps a registration name to its Kind.
func kindOf(name string) Kind {
	switch name {
	case EventOpen:
		return KindOpen
	case EventClose:
		return KindClose
	case EventError:
		return KindError
	}
	return KindWire
}

// Payload is a decoded JSON object.
type Payload map[string]any

// String returns p[key] if it is a string.
func (p Payload) String(key string) string {
	s, _ := p[key].(string)
	return s
}

// Object returns p[key] if it is a JSON object.
func (p Payload) Object(key string) Payload {
	m, _ := p[key].(map[string]any)
	return m
}

// Event is what a Handler receives.
//
// For wire events Data is the frame with "type" removed; for open it is the
// rtm.connect / rtm.start response; close carries nothing and error carries
// the failure in Err.
type Event struct {
	Kind Kind
	Type string
	Data Payload
	Err  error

	// RTM is the session the event belongs to.
	RTM *Session
	// Web is a fresh Web API client bound to the session's token.
	Web *webapi.Client
}
