package middleware

import (
	"net/http"
	"time"

	"github.com/dmitrymomot/fleet/core/notify"
)

// Track emits notify.EventRequestStart before and notify.EventRequestEnd after
// every request. The metrics collector subscribes to these hooks to maintain
// connection counts, request rate and response time.
func Track(n notify.Notifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := wrapWriter(w)

			n.Emit(r.Context(), notify.EventRequestStart, nil)
			defer func() {
				n.Emit(r.Context(), notify.EventRequestEnd, notify.RequestEnd{
					Duration: time.Since(start),
					Status:   wrapped.statusCode,
				})
			}()

			next.ServeHTTP(wrapped, r)
		})
	}
}
