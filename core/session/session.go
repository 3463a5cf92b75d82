package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mileusna/useragent"

	"github.com/dmitrymomot/fleet/core/logger"
)

// Session is one authenticated user context, stored as JSON under sess:<id>.
type Session struct {
	ID     string `json:"id"`
	UserID string `json:"userId"`
	Role   string `json:"role,omitempty"`

	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
	LoginTime    time.Time `json:"loginTime"`
	// MaxAge is the effective timeout in seconds: the remember-me duration
	// when RememberMe is set, the session timeout otherwise. Extend rewrites it.
	MaxAge     int  `json:"maxAge"`
	RememberMe bool `json:"rememberMe"`

	// Fingerprint is computed at creation and never rewritten.
	Fingerprint string `json:"fingerprint"`
	IP          string `json:"ip"`
	UserAgent   string `json:"userAgent"`

	MFAVerified bool           `json:"mfaVerified"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// User identifies who a session is created for.
type User struct {
	ID   string
	Role string
}

// CreateOptions tunes a new session.
type CreateOptions struct {
	RememberMe  bool
	MFAVerified bool
	Metadata    map[string]any
}

// Age returns how long ago the session was created.
func (s Session) Age(now time.Time) time.Duration { return now.Sub(s.CreatedAt) }

// Idle returns the time since the last authenticated request.
func (s Session) Idle(now time.Time) time.Duration { return now.Sub(s.LastActivity) }

// Timeout returns MaxAge as a duration.
func (s Session) Timeout() time.Duration { return time.Duration(s.MaxAge) * time.Second }

// Device returns a short human-readable device label parsed from the User-Agent.
// Examples: "Chrome/120.0 (Windows, desktop)", "Safari/17.2 (iOS, mobile)", "Bot: Googlebot".
func (s Session) Device() string {
	if s.UserAgent == "" {
		return "Unknown device"
	}

	ua := useragent.Parse(s.UserAgent)
	if ua.Bot {
		if ua.Name == "" {
			return "Bot"
		}
		return "Bot: " + ua.Name
	}
	if ua.Name == "" {
		return "Unknown device"
	}

	kind := "unknown"
	switch {
	case ua.Tablet:
		kind = "tablet"
	case ua.Mobile:
		kind = "mobile"
	case ua.Desktop:
		kind = "desktop"
	}

	name := ua.Name
	if v := shortVersion(ua.Version); v != "" {
		name += "/" + v
	}
	os := ua.OS
	if os == "" {
		os = "unknown OS"
	}
	return fmt.Sprintf("%s (%s, %s)", name, os, kind)
}

// shortVersion keeps major.minor.
func shortVersion(v string) string {
	parts := strings.SplitN(v, ".", 3)
	if len(parts) > 2 {
		parts = parts[:2]
	}
	return strings.Join(parts, ".")
}

// generateID creates a session id from 32 random bytes (256 bits) encoded as
// base64 URL-safe without padding.
func generateID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

type contextKey struct{}

// WithSession returns a copy of ctx carrying s.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// FromContext returns the session stored by WithSession.
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(contextKey{}).(*Session)
	return s, ok && s != nil
}

// LogAttr is a logger.ContextExtractor that tags records with the id of the
// session carried by ctx.
func LogAttr(ctx context.Context) (slog.Attr, bool) {
	s, ok := FromContext(ctx)
	if !ok {
		return slog.Attr{}, false
	}
	return logger.SessionID(s.ID), true
}
