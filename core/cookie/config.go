package cookie

import (
	"net/http"
	"strings"
)

// Config provides environment-based configuration for the session cookie.
// SESSION_SECRET may hold several comma-separated secrets; the first one signs.
type Config struct {
	Secrets  string `env:"SESSION_SECRET"`
	Path     string `env:"SESSION_COOKIE_PATH" envDefault:"/"`
	Domain   string `env:"SESSION_COOKIE_DOMAIN" envDefault:""`
	Secure   bool   `env:"SESSION_COOKIE_SECURE" envDefault:"false"`
	HttpOnly bool   `env:"SESSION_COOKIE_HTTP_ONLY" envDefault:"true"`
	SameSite string `env:"SESSION_COOKIE_SAME_SITE" envDefault:"lax"`
}

// DefaultConfig returns a Config with secure defaults and no secret.
func DefaultConfig() Config {
	return Config{
		Path:     "/",
		HttpOnly: true,
		SameSite: "lax",
	}
}

func (c Config) parseSecrets() []string {
	if c.Secrets == "" {
		return nil
	}

	parts := strings.Split(c.Secrets, ",")
	secrets := make([]string, 0, len(parts))
	for _, s := range parts {
		if s = strings.TrimSpace(s); s != "" {
			secrets = append(secrets, s)
		}
	}
	return secrets
}

// ParseSameSite maps "lax", "strict", "none" and "default" to http.SameSite.
// Unknown values fall back to Lax.
func ParseSameSite(s string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	case "default":
		return http.SameSiteDefaultMode
	default:
		return http.SameSiteLaxMode
	}
}

// NewFromConfig creates a Manager from configuration.
// Options passed explicitly override the configured values.
func NewFromConfig(cfg Config, opts ...Option) (*Manager, error) {
	configOpts := []Option{
		WithSecure(cfg.Secure),
		WithHTTPOnly(cfg.HttpOnly),
		WithSameSite(ParseSameSite(cfg.SameSite)),
	}
	if cfg.Path != "" {
		configOpts = append(configOpts, WithPath(cfg.Path))
	}
	if cfg.Domain != "" {
		configOpts = append(configOpts, WithDomain(cfg.Domain))
	}

	return New(cfg.parseSecrets(), append(configOpts, opts...)...)
}
