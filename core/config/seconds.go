package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Seconds is a duration read from the environment as an integer number of
// seconds ("3600"). Go duration strings ("1h") are accepted too.
type Seconds time.Duration

// UnmarshalText implements encoding.TextUnmarshaler, which caarlos0/env uses for custom types.
func (s *Seconds) UnmarshalText(text []byte) error {
	v := strings.TrimSpace(string(text))
	if n, err := strconv.ParseInt(v, 10, 64); err == nil {
		if n < 0 {
			return fmt.Errorf("%w: negative seconds %d", ErrParse, n)
		}
		*s = Seconds(time.Duration(n) * time.Second)
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%w: %q is neither seconds nor a duration", ErrParse, v)
	}
	*s = Seconds(d)
	return nil
}

// MarshalText renders whole seconds.
func (s Seconds) MarshalText() ([]byte, error) {
	return []byte(strconv.FormatInt(int64(s.Int()), 10)), nil
}

// Duration returns s as a time.Duration.
func (s Seconds) Duration() time.Duration { return time.Duration(s) }

// Int returns s in whole seconds.
func (s Seconds) Int() int { return int(time.Duration(s) / time.Second) }
