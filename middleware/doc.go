// Package middleware provides net/http middleware for fleet services.
//
// Every constructor returns func(http.Handler) http.Handler and the configurable
// ones follow the same pattern: a default constructor, a WithConfig variant and a
// Skip hook for excluding requests.
//
//	h := middleware.RequestID()(
//		middleware.LoggingWithLogger(log)(
//			middleware.Track(bus)(
//				middleware.Session(coord)(api),
//			),
//		),
//	)
//
// # Request ID
//
// RequestID assigns a UUID to each request, sets it on the X-Request-ID response
// header and stores it in the context (GetRequestID). With UseExisting an
// incoming header value is kept.
//
// # Logging
//
// Logging writes one slog record per request with method, path, status, client
// IP, duration and request ID. 5xx responses log at error level; 4xx and slow
// requests at warning level.
//
// # Request tracking
//
// Track emits request:start and request:end on a notify.Notifier. The metrics
// collector subscribes to these hooks.
//
// # Session
//
// Session validates the request session with the coordinator and stores it in
// the context (session.FromContext). Missing, expired and invalid sessions are
// answered with 401; backplane failures with 503. Optional lets anonymous
// requests through.
package middleware
