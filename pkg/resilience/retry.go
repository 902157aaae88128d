package resilience

import (
	"context"
	"time"
)

// RetryPolicy retries an operation with exponential backoff.
type RetryPolicy struct {
	MaxRetries int
	Backoff    time.Duration
	MaxBackoff time.Duration
}

func NewRetryPolicy(maxRetries int, backoff time.Duration) RetryPolicy {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}
	return RetryPolicy{MaxRetries: maxRetries, Backoff: backoff, MaxBackoff: 5 * time.Second}
}

// Delay returns the wait before retry number attempt (0-based).
func (r RetryPolicy) Delay(attempt int) time.Duration {
	d := r.Backoff
	for i := 0; i < attempt; i++ {
		d *= 2
		if r.MaxBackoff > 0 && d >= r.MaxBackoff {
			return r.MaxBackoff
		}
	}
	return d
}

// Do calls fn until it succeeds, retries are exhausted or ctx is done.
// fn receives the 0-based attempt number. The last error is returned.
func (r RetryPolicy) Do(ctx context.Context, fn func(attempt int) error) error {
	var err error
	for i := 0; i <= r.MaxRetries; i++ {
		if err = fn(i); err == nil {
			return nil
		}
		if i == r.MaxRetries {
			break
		}
		t := time.NewTimer(r.Delay(i))
		select {
		case <-ctx.Done():
			t.Stop()
			return err
		case <-t.C:
		}
	}
	return err
}
