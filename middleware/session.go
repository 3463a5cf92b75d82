package middleware

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/fleet/core/logger"
	"github.com/dmitrymomot/fleet/core/session"
)

// SessionValidator validates the session bound to a request.
// *session.Coordinator satisfies it.
type SessionValidator interface {
	Validate(w http.ResponseWriter, r *http.Request) (*session.Session, error)
}

// SessionConfig configures the session middleware.
type SessionConfig struct {
	// Skip defines a function to skip middleware execution for specific requests
	Skip func(r *http.Request) bool
	// Logger for structured logging (default: slog with io.Discard)
	Logger *slog.Logger
	// Optional lets requests without a valid session through with no session in context
	Optional bool
	// ErrorHandler writes the response for rejected requests
	// Default: 401 for session errors, 503 for anything else
	ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)
}

// Session creates middleware that requires a valid session and stores it in
// the request context.
func Session(v SessionValidator) func(http.Handler) http.Handler {
	return SessionWithConfig(v, SessionConfig{})
}

// SessionWithConfig creates a session middleware with custom configuration.
//
//	mux.Handle("/api/", middleware.SessionWithConfig(coord, middleware.SessionConfig{
//		Skip: func(r *http.Request) bool { return r.URL.Path == "/api/login" },
//	})(api))
//
//	func me(w http.ResponseWriter, r *http.Request) {
//		s, _ := session.FromContext(r.Context())
//		...
//	}
func SessionWithConfig(v SessionValidator, cfg SessionConfig) func(http.Handler) http.Handler {
	if v == nil {
		panic("session middleware: validator is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = defaultSessionErrorHandler
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.Skip != nil && cfg.Skip(r) {
				next.ServeHTTP(w, r)
				return
			}

			s, err := v.Validate(w, r)
			if err != nil {
				if cfg.Optional && IsSessionError(err) {
					next.ServeHTTP(w, r)
					return
				}
				if !IsSessionError(err) {
					cfg.Logger.ErrorContext(r.Context(), "session validation failed",
						logger.Component("session"),
						logger.Path(r.URL.Path),
						logger.Error(err))
				}
				cfg.ErrorHandler(w, r, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(session.WithSession(r.Context(), s)))
		})
	}
}

// IsSessionError reports whether err means the client has no usable session,
// as opposed to an infrastructure failure.
func IsSessionError(err error) bool {
	return errors.Is(err, session.ErrNoSession) ||
		errors.Is(err, session.ErrSessionExpired) ||
		errors.Is(err, session.ErrSessionInvalid)
}

func defaultSessionErrorHandler(w http.ResponseWriter, _ *http.Request, err error) {
	switch {
	case errors.Is(err, session.ErrSessionExpired):
		http.Error(w, "session expired", http.StatusUnauthorized)
	case errors.Is(err, session.ErrSessionInvalid):
		http.Error(w, "session invalid", http.StatusUnauthorized)
	case errors.Is(err, session.ErrNoSession):
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	default:
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
	}
}
