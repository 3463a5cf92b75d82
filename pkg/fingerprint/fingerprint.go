package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"

	"github.com/dmitrymomot/fleet/pkg/clientip"
)

const (
	fingerprintVersion = "v1:"
	// 16 of the 32 SHA-256 bytes, hex-encoded.
	fingerprintHashLen = 16
	// "v1:" + 32 hex chars.
	fingerprintTotalLen = 35
)

var (
	// ErrInvalidFingerprint indicates the stored fingerprint has invalid format.
	ErrInvalidFingerprint = errors.New("invalid fingerprint format")

	// ErrMismatch indicates the fingerprint doesn't match the current request.
	ErrMismatch = errors.New("fingerprint mismatch")
)

// Generate digests the client characteristics bound to a session.
// The result has the form "v1:<32 hex chars>". Empty components are kept so
// that a missing header still changes the digest position of the others.
func Generate(userAgent, acceptLanguage, ip string) string {
	combined := strings.Join([]string{userAgent, acceptLanguage, ip}, "|")
	hash := sha256.Sum256([]byte(combined))
	return fingerprintVersion + hex.EncodeToString(hash[:fingerprintHashLen])
}

// FromRequest generates the fingerprint of r using its User-Agent,
// Accept-Language and client IP.
func FromRequest(r *http.Request) string {
	return Generate(r.UserAgent(), r.Header.Get("Accept-Language"), clientip.GetIP(r))
}

// IsValid reports whether fp has the expected version prefix and length.
func IsValid(fp string) bool {
	return strings.HasPrefix(fp, fingerprintVersion) && len(fp) == fingerprintTotalLen
}

// Validate compares the fingerprint of r with a stored one.
// Returns ErrInvalidFingerprint for malformed input and ErrMismatch when they differ.
func Validate(r *http.Request, stored string) error {
	if !IsValid(stored) {
		return ErrInvalidFingerprint
	}
	if FromRequest(r) != stored {
		return ErrMismatch
	}
	return nil
}
