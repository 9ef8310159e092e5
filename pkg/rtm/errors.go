package rtm

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrNotConnected is returned by every send operation while no websocket
	// is open: before the first connect, between reconnects and after Stop.
	ErrNotConnected = errors.New("rtm: websocket connection is closed")

	ErrAlreadyRunning = errors.New("rtm: session is already running")

	// ErrInvalidHandler is returned at registration time for nil handlers and
	// empty event names.
	ErrInvalidHandler = errors.New("rtm: invalid handler")
)

// CallbackError wraps whatever a handler returned (or panicked with).
type CallbackError struct {
	Event   string
	Handler string
	Err     error
}

func (e *CallbackError) Error() string {
	return fmt.Sprintf("rtm: when calling %s for %q the following error was raised: %v", e.Handler, e.Event, e.Err)
}

func (e *CallbackError) Unwrap() error { return e.Err }

func isCallbackError(err error) bool {
	var cbErr *CallbackError
	return errors.As(err, &cbErr)
}
