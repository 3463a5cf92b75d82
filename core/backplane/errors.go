package backplane

import "errors"

var (
	// ErrNotFound is returned when a key is absent or has expired.
	ErrNotFound = errors.New("backplane: key not found")

	// ErrConnectivity is returned when the backplane cannot be reached.
	// Callers must treat it as "unknown", never as "empty".
	ErrConnectivity = errors.New("backplane: connectivity error")

	// ErrClosed is returned when operating on a closed backplane.
	ErrClosed = errors.New("backplane: closed")
)
