// Package fingerprint generates device fingerprints for session validation.
//
// A fingerprint is the SHA-256 digest of the User-Agent, Accept-Language and
// client IP joined with "|", truncated to 16 bytes and hex-encoded behind a
// version prefix:
//
//	v1:3f1c0d6e9a2b4c5d6e7f8091a2b3c4d5
//
// It is computed once when a session is created and stored with it. Later
// requests are compared against the stored value; the stored value is never
// rewritten.
//
//	fp := fingerprint.FromRequest(r)
//
//	if err := fingerprint.Validate(r, sess.Fingerprint); errors.Is(err, fingerprint.ErrMismatch) {
//		// client characteristics changed
//	}
//
// # Security Notes
//
// IP addresses change on mobile networks and VPNs, and browser updates change
// the User-Agent. A mismatch is a signal, not proof of hijacking; callers
// decide whether to reject or only log it.
package fingerprint
