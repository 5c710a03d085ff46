package webclient

import (
	"context"
	"time"
)

const maxDelay = 30 * time.Second

// Retry calls fn until it succeeds, returns an error retryable rejects, or
// attempts run out. The delay doubles after each failure.
func Retry(ctx context.Context, attempts int, initialDelay time.Duration, retryable func(error) bool, fn func(context.Context) error) error {
	if attempts <= 0 {
		attempts = 1
	}
	if initialDelay <= 0 {
		initialDelay = 2 * time.Second
	}
	delay := initialDelay
	var err error
	for i := 0; i < attempts; i++ {
		if err = fn(ctx); err == nil || !retryable(err) {
			return err
		}
		if i == attempts-1 {
			break
		}
		t := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
		if delay < maxDelay {
			delay *= 2
		}
	}
	return err
}
