// Package cookie provides HMAC-signed HTTP cookies.
//
// The session cookie carries only the session id; everything else lives in
// the backplane. Signing stops clients from guessing or forging ids.
//
//	m, err := cookie.New([]string{os.Getenv("SESSION_SECRET")})
//	if err != nil {
//		return err
//	}
//
//	_ = m.SetSigned(w, "sid", sessionID, cookie.WithMaxAge(3600))
//
//	id, err := m.GetSigned(r, "sid")
//	switch {
//	case errors.Is(err, cookie.ErrCookieNotFound):
//	case errors.Is(err, cookie.ErrInvalidSignature):
//	}
//
//	m.Delete(w, "sid")
//
// # Key Rotation
//
// Pass several secrets (or a comma-separated SESSION_SECRET via NewFromConfig).
// New cookies are signed with the first one; any of them verifies.
//
// # Defaults
//
// Path "/", HttpOnly, SameSite=Lax. Every secret must have at least 32 characters.
package cookie
