package session

import (
	"time"

	"github.com/dmitrymomot/fleet/core/config"
)

// Config holds session coordinator settings. Durations are integer seconds in the environment.
type Config struct {
	CookieName  string         `env:"SESSION_COOKIE_NAME" envDefault:"sid"`
	Timeout     config.Seconds `env:"SESSION_TIMEOUT" envDefault:"3600"`
	IdleTimeout config.Seconds `env:"SESSION_IDLE_TIMEOUT" envDefault:"1800"`
	MaxAge      config.Seconds `env:"MAX_SESSION_AGE" envDefault:"86400"`
	RememberMe  config.Seconds `env:"REMEMBER_ME_DURATION" envDefault:"2592000"`
	Strict      bool           `env:"STRICT_SESSION_VALIDATION" envDefault:"false"`
}

// DefaultConfig returns a Config with defaults matching the env tags.
func DefaultConfig() Config {
	return Config{
		CookieName:  "sid",
		Timeout:     config.Seconds(time.Hour),
		IdleTimeout: config.Seconds(30 * time.Minute),
		MaxAge:      config.Seconds(24 * time.Hour),
		RememberMe:  config.Seconds(30 * 24 * time.Hour),
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.CookieName == "" {
		c.CookieName = d.CookieName
	}
	if c.Timeout <= 0 {
		c.Timeout = d.Timeout
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = d.IdleTimeout
	}
	if c.MaxAge <= 0 {
		c.MaxAge = d.MaxAge
	}
	if c.RememberMe <= 0 {
		c.RememberMe = d.RememberMe
	}
	return c
}

// effectiveTimeout is the TTL and cookie max-age of a new session.
func (c Config) effectiveTimeout(rememberMe bool) time.Duration {
	if rememberMe {
		return c.RememberMe.Duration()
	}
	return c.Timeout.Duration()
}
