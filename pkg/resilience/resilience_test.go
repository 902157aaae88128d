package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetryPolicyStopsOnSuccess(t *testing.T) {
	r := RetryPolicy{MaxRetries: 3, Backoff: time.Millisecond}
	calls := 0
	err := r.Do(context.Background(), func(attempt int) error {
		calls++
		if attempt < 1 {
			return errors.New("boom")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestRetryPolicyReturnsLastError(t *testing.T) {
	r := RetryPolicy{MaxRetries: 2, Backoff: time.Millisecond}
	calls := 0
	err := r.Do(context.Background(), func(int) error {
		calls++
		return errors.New("boom")
	})
	if err == nil || calls != 3 {
		t.Fatalf("expected 3 failing calls, got %d calls err=%v", calls, err)
	}
}

func TestRetryPolicyHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := RetryPolicy{MaxRetries: 5, Backoff: time.Hour}
	calls := 0
	_ = r.Do(ctx, func(int) error {
		calls++
		return errors.New("boom")
	})
	if calls != 1 {
		t.Fatalf("expected 1 call after cancel, got %d", calls)
	}
}

func TestRetryPolicyDelayCapped(t *testing.T) {
	r := RetryPolicy{Backoff: time.Second, MaxBackoff: 3 * time.Second}
	if got := r.Delay(0); got != time.Second {
		t.Fatalf("expected 1s, got %v", got)
	}
	if got := r.Delay(1); got != 2*time.Second {
		t.Fatalf("expected 2s, got %v", got)
	}
	if got := r.Delay(4); got != 3*time.Second {
		t.Fatalf("expected cap 3s, got %v", got)
	}
}

func TestCircuitBreakerOpensAndRecovers(t *testing.T) {
	now := time.Unix(0, 0)
	cb := NewCircuitBreaker(2, time.Minute)
	cb.now = func() time.Time { return now }

	cb.OnError(errors.New("dial"))
	if !cb.Allow() {
		t.Fatalf("expected breaker closed after one failure")
	}
	cb.OnError(errors.New("dial"))
	if cb.Allow() {
		t.Fatalf("expected breaker open after threshold")
	}
	now = now.Add(2 * time.Minute)
	if !cb.Allow() {
		t.Fatalf("expected breaker to allow after cooldown")
	}
}

func TestCircuitBreakerIgnoresCancel(t *testing.T) {
	cb := NewCircuitBreaker(1, time.Minute)
	cb.OnError(context.Canceled)
	if cb.Open() {
		t.Fatalf("expected cancellation not to open the breaker")
	}
	var nilBreaker *CircuitBreaker
	if !nilBreaker.Allow() {
		t.Fatalf("expected nil breaker to allow")
	}
}
