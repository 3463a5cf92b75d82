package fingerprint_test

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/fleet/pkg/fingerprint"
)

func newRequest(ua, lang, remoteAddr string) *http.Request {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("User-Agent", ua)
	if lang != "" {
		r.Header.Set("Accept-Language", lang)
	}
	r.RemoteAddr = remoteAddr
	return r
}

func TestGenerate(t *testing.T) {
	t.Parallel()

	t.Run("matches documented digest", func(t *testing.T) {
		t.Parallel()
		sum := sha256.Sum256([]byte("Mozilla/5.0|en-US|203.0.113.7"))
		want := "v1:" + hex.EncodeToString(sum[:16])
		assert.Equal(t, want, fingerprint.Generate("Mozilla/5.0", "en-US", "203.0.113.7"))
	})

	t.Run("stable", func(t *testing.T) {
		t.Parallel()
		a := fingerprint.Generate("ua", "en", "1.2.3.4")
		b := fingerprint.Generate("ua", "en", "1.2.3.4")
		assert.Equal(t, a, b)
		assert.True(t, fingerprint.IsValid(a))
		assert.Len(t, a, 35)
	})

	t.Run("each component changes the digest", func(t *testing.T) {
		t.Parallel()
		base := fingerprint.Generate("ua", "en", "1.2.3.4")
		assert.NotEqual(t, base, fingerprint.Generate("ua2", "en", "1.2.3.4"))
		assert.NotEqual(t, base, fingerprint.Generate("ua", "de", "1.2.3.4"))
		assert.NotEqual(t, base, fingerprint.Generate("ua", "en", "1.2.3.5"))
	})

	t.Run("delimiter prevents shifting", func(t *testing.T) {
		t.Parallel()
		assert.NotEqual(t,
			fingerprint.Generate("ab", "c", ""),
			fingerprint.Generate("a", "bc", ""))
	})
}

func TestFromRequest(t *testing.T) {
	t.Parallel()
	r := newRequest("Mozilla/5.0", "en-US", "203.0.113.7:5555")
	assert.Equal(t, fingerprint.Generate("Mozilla/5.0", "en-US", "203.0.113.7"), fingerprint.FromRequest(r))

	r.Header.Set("X-Forwarded-For", "198.51.100.1")
	assert.Equal(t, fingerprint.Generate("Mozilla/5.0", "en-US", "198.51.100.1"), fingerprint.FromRequest(r))
}

func TestValidate(t *testing.T) {
	t.Parallel()
	r := newRequest("Mozilla/5.0", "en-US", "203.0.113.7:5555")
	stored := fingerprint.FromRequest(r)

	require.NoError(t, fingerprint.Validate(r, stored))

	moved := newRequest("Mozilla/5.0", "en-US", "198.51.100.9:5555")
	assert.ErrorIs(t, fingerprint.Validate(moved, stored), fingerprint.ErrMismatch)

	assert.ErrorIs(t, fingerprint.Validate(r, "v2:abc"), fingerprint.ErrInvalidFingerprint)
	assert.ErrorIs(t, fingerprint.Validate(r, ""), fingerprint.ErrInvalidFingerprint)
	assert.False(t, fingerprint.IsValid("v1:short"))
}
