package sessionrelay

import "errors"

var (
	// ErrHandlerFailed wraps an error or panic from a registered handler. It is logged, never returned by Start.
	ErrHandlerFailed = errors.New("session relay handler failed")

	// ErrRelayAlreadyStarted is returned when Start is called on a running relay.
	ErrRelayAlreadyStarted = errors.New("session relay already started")

	// ErrRelayNotStarted is returned when Stop is called on a relay that is not running.
	ErrRelayNotStarted = errors.New("session relay not started")
)
