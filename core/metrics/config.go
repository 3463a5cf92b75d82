package metrics

import (
	"time"

	"github.com/dmitrymomot/fleet/core/config"
)

// Config holds collector settings. Durations are integer seconds in the environment.
type Config struct {
	Interval   config.Seconds `env:"METRICS_INTERVAL" envDefault:"5"`
	SampleSize int            `env:"METRICS_SAMPLE_SIZE" envDefault:"10"`
	Publisher  bool           `env:"METRICS_PUBLISHER" envDefault:"true"`
	TTL        config.Seconds `env:"METRICS_TTL" envDefault:"60"`
}

// DefaultConfig returns a Config with defaults matching the env tags.
func DefaultConfig() Config {
	return Config{
		Interval:   config.Seconds(5 * time.Second),
		SampleSize: 10,
		Publisher:  true,
		TTL:        config.Seconds(time.Minute),
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	if c.SampleSize <= 0 {
		c.SampleSize = d.SampleSize
	}
	if c.TTL <= 0 {
		c.TTL = d.TTL
	}
	return c
}
