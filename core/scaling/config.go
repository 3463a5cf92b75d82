package scaling

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrymomot/fleet/core/config"
)

// Config holds scaling thresholds, bounds and timing.
// Thresholds are utilization ratios in (0,1]; durations are integer seconds in the environment.
type Config struct {
	MinInstances      int            `env:"MIN_INSTANCES" envDefault:"1"`
	MaxInstances      int            `env:"MAX_INSTANCES" envDefault:"10"`
	CPUHigh           float64        `env:"CPU_HIGH_THRESHOLD" envDefault:"0.7"`
	CPULow            float64        `env:"CPU_LOW_THRESHOLD" envDefault:"0.3"`
	MemoryHigh        float64        `env:"MEMORY_HIGH_THRESHOLD" envDefault:"0.8"`
	MemoryLow         float64        `env:"MEMORY_LOW_THRESHOLD" envDefault:"0.3"`
	ScaleUpCooldown   config.Seconds `env:"SCALE_UP_COOLDOWN" envDefault:"60"`
	ScaleDownCooldown config.Seconds `env:"SCALE_DOWN_COOLDOWN" envDefault:"300"`
	CheckInterval     config.Seconds `env:"SCALING_CHECK_INTERVAL" envDefault:"30"`
	Predictive        bool           `env:"PREDICTIVE_SCALING" envDefault:"false"`
}

// DefaultConfig returns a Config with defaults matching the env tags.
func DefaultConfig() Config {
	return Config{
		MinInstances:      1,
		MaxInstances:      10,
		CPUHigh:           0.7,
		CPULow:            0.3,
		MemoryHigh:        0.8,
		MemoryLow:         0.3,
		ScaleUpCooldown:   config.Seconds(time.Minute),
		ScaleDownCooldown: config.Seconds(5 * time.Minute),
		CheckInterval:     config.Seconds(30 * time.Second),
	}
}

// Clamp bounds a node count to [MinInstances, MaxInstances].
func (c Config) Clamp(n int) int {
	return min(max(n, c.MinInstances), c.MaxInstances)
}

// Validate reports every malformed setting at once, joined with ErrInvalidConfig.
func (c Config) Validate() error {
	var errs []error
	if c.MinInstances < 1 {
		errs = append(errs, fmt.Errorf("MIN_INSTANCES must be at least 1, got %d", c.MinInstances))
	}
	if c.MaxInstances < c.MinInstances {
		errs = append(errs, fmt.Errorf("MAX_INSTANCES (%d) must not be below MIN_INSTANCES (%d)", c.MaxInstances, c.MinInstances))
	}
	errs = append(errs, thresholds("CPU", c.CPULow, c.CPUHigh)...)
	errs = append(errs, thresholds("MEMORY", c.MemoryLow, c.MemoryHigh)...)
	if c.CheckInterval <= 0 {
		errs = append(errs, errors.New("SCALING_CHECK_INTERVAL must be positive"))
	}
	if c.ScaleUpCooldown < 0 || c.ScaleDownCooldown < 0 {
		errs = append(errs, errors.New("scaling cooldowns must not be negative"))
	}
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(append([]error{ErrInvalidConfig}, errs...)...)
}

func thresholds(name string, low, high float64) []error {
	var errs []error
	if high <= 0 || high > 1 {
		errs = append(errs, fmt.Errorf("%s_HIGH_THRESHOLD must be in (0,1], got %v", name, high))
	}
	if low < 0 || low >= high {
		errs = append(errs, fmt.Errorf("%s_LOW_THRESHOLD must be in [0,%s_HIGH_THRESHOLD), got %v", name, name, low))
	}
	return errs
}
