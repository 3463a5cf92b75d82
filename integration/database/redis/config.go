package redis

import "time"

// Config holds Redis backplane connection settings.
type Config struct {
	ConnectionURL        string        `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	RetryAttempts        int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`
	MaxReconnectAttempts int           `env:"REDIS_MAX_RECONNECT_ATTEMPTS" envDefault:"10"`
	ConnectTimeout       time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"30s"`
	ScanBatchSize        int           `env:"REDIS_SCAN_BATCH_SIZE" envDefault:"1000"`
}

// DefaultConfig returns a Config with defaults matching the env tags.
func DefaultConfig() Config {
	return Config{
		ConnectionURL:        "redis://localhost:6379/0",
		RetryAttempts:        3,
		MaxReconnectAttempts: 10,
		ConnectTimeout:       30 * time.Second,
		ScanBatchSize:        1000,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.RetryAttempts <= 0 {
		c.RetryAttempts = d.RetryAttempts
	}
	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = d.MaxReconnectAttempts
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = d.ConnectTimeout
	}
	if c.ScanBatchSize <= 0 {
		c.ScanBatchSize = d.ScanBatchSize
	}
	return c
}
