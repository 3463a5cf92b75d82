// Package session coordinates user sessions across a fleet of stateless instances.
//
// Sessions live in the backplane under sess:<id> with a TTL equal to their
// effective timeout; the cookie carries only the HMAC-signed id. Any instance
// can therefore validate any request.
//
//	coord := session.New(bp, cookies, cfg,
//		session.WithPublisher(publisher),
//		session.WithLogger(log),
//	)
//
//	// login
//	s, err := coord.Create(w, r, session.User{ID: userID, Role: "admin"},
//		session.CreateOptions{RememberMe: true})
//
//	// every authenticated request
//	s, err := coord.Validate(w, r)
//	switch {
//	case errors.Is(err, session.ErrNoSession):
//	case errors.Is(err, session.ErrSessionExpired):
//	case errors.Is(err, session.ErrSessionInvalid):
//	}
//
//	// logout
//	err := coord.Destroy(w, r)
//
// # Lifecycle
//
// A session is created on login with a freshly generated id; any id already
// bound to the request is deleted first. Validate refreshes LastActivity and
// destroys the session when it exceeds the idle timeout, the absolute
// maximum age, or (in strict mode) no longer matches the request
// fingerprint. Outside strict mode a fingerprint mismatch is logged and the
// stored fingerprint is left as it was. Destroyed sessions are never revived:
// refreshes use Store.Replace, which does not recreate a deleted key.
//
// Remember-me sessions use REMEMBER_ME_DURATION as their effective timeout.
// They are still bound by SESSION_IDLE_TIMEOUT and MAX_SESSION_AGE, so a
// deployment offering long remember-me sessions raises both to match.
//
// # Cross-instance events
//
// Create, Destroy, Invalidate and InvalidateUser publish through the
// EventPublisher (see package sessionrelay). Publishing failures are logged;
// the backplane write is what makes the change effective.
package session
