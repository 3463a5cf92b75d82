package session

import "errors"

var (
	// ErrNoSession is returned when the request carries no valid session cookie.
	ErrNoSession = errors.New("no session")
	// ErrSessionExpired is returned when a session hit its idle or absolute timeout, or its key expired.
	ErrSessionExpired = errors.New("session has expired")
	// ErrSessionInvalid is returned when strict validation rejected the request fingerprint.
	ErrSessionInvalid = errors.New("session is invalid")
	// ErrSessionNotFound is returned by Get when no session exists for the id.
	ErrSessionNotFound = errors.New("session not found")
	// ErrMissingUser is returned when creating a session without a user id.
	ErrMissingUser = errors.New("user id is required")
	// ErrTokenGeneration is returned when id generation fails.
	ErrTokenGeneration = errors.New("failed to generate session id")
	// ErrSaveSession is returned when saving a session to the backplane fails.
	ErrSaveSession = errors.New("failed to save session")
	// ErrDeleteSession is returned when deleting a session from the backplane fails.
	ErrDeleteSession = errors.New("failed to delete session")
)

// errUndecodable marks a stored value that is not a session.
var errUndecodable = errors.New("undecodable session")
