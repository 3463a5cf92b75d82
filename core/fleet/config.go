package fleet

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrymomot/fleet/core/cookie"
	"github.com/dmitrymomot/fleet/core/metrics"
	"github.com/dmitrymomot/fleet/core/scaling"
	"github.com/dmitrymomot/fleet/core/session"
	"github.com/dmitrymomot/fleet/integration/database/redis"
)

// minSecretLength mirrors the cookie manager's requirement so it fails at startup validation.
const minSecretLength = 32

// Config is the complete runtime configuration, loaded from the environment
// with config.Load. Nested configs read their own variables.
type Config struct {
	AppName               string        `env:"APP_NAME" envDefault:"fleet"`
	AppEnv                string        `env:"APP_ENV" envDefault:"development"`
	InstanceID            string        `env:"INSTANCE_ID"`
	BackplanePrefix       string        `env:"BACKPLANE_PREFIX" envDefault:"fleet:"`
	FallbackToMemory      bool          `env:"FALLBACK_TO_MEMORY" envDefault:"false"`
	MemoryCleanupInterval time.Duration `env:"MEMORY_CLEANUP_INTERVAL" envDefault:"1m"`

	Redis   redis.Config
	Cookie  cookie.Config
	Session session.Config
	Metrics metrics.Config
	Scaling scaling.Config
}

// DefaultConfig returns a Config with every default applied. The session
// secret is left empty and must be provided.
func DefaultConfig() Config {
	return Config{
		AppName:               "fleet",
		AppEnv:                "development",
		BackplanePrefix:       "fleet:",
		MemoryCleanupInterval: time.Minute,
		Redis:                 redis.DefaultConfig(),
		Cookie:                cookie.DefaultConfig(),
		Session:               session.DefaultConfig(),
		Metrics:               metrics.DefaultConfig(),
		Scaling:               scaling.DefaultConfig(),
	}
}

// Validate checks settings that would otherwise fail later or silently
// misbehave. All problems are reported together, joined with ErrInvalidConfig.
func (c Config) Validate() error {
	var errs []error

	secrets := strings.Split(c.Cookie.Secrets, ",")
	if strings.TrimSpace(c.Cookie.Secrets) == "" {
		errs = append(errs, errors.New("SESSION_SECRET is required"))
	} else if len(strings.TrimSpace(secrets[0])) < minSecretLength {
		errs = append(errs, fmt.Errorf("SESSION_SECRET must be at least %d characters", minSecretLength))
	}

	if c.Session.Timeout < 0 || c.Session.IdleTimeout < 0 || c.Session.MaxAge < 0 || c.Session.RememberMe < 0 {
		errs = append(errs, errors.New("session durations must not be negative"))
	}
	if c.Metrics.SampleSize < 0 {
		errs = append(errs, fmt.Errorf("METRICS_SAMPLE_SIZE must not be negative, got %d", c.Metrics.SampleSize))
	}
	if c.Metrics.TTL > 0 && c.Metrics.Interval > 0 && c.Metrics.TTL <= c.Metrics.Interval {
		errs = append(errs, errors.New("METRICS_TTL must exceed METRICS_INTERVAL or every snapshot expires between writes"))
	}
	if err := c.Scaling.Validate(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) == 0 {
		return nil
	}
	return errors.Join(append([]error{ErrInvalidConfig}, errs...)...)
}
