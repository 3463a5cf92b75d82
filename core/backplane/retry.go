package backplane

import (
	"context"
	"time"
)

const (
	retryStep     = 100 * time.Millisecond
	retryMaxDelay = 3 * time.Second
)

// RetryDelay returns the wait before reconnect attempt n (1-based): min(n*100ms, 3s).
func RetryDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := time.Duration(attempt) * retryStep
	if d > retryMaxDelay {
		return retryMaxDelay
	}
	return d
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
