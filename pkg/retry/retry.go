// Package retry runs an operation with bounded attempts and exponential backoff.
package retry

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// Policy bounds retries of one operation.
type Policy struct {
	MaxAttempts int
	BaseWait    time.Duration
	MaxWait     time.Duration
	// Retryable decides whether an error is worth another attempt.
	// A nil Retryable retries every error.
	Retryable func(error) bool
}

// Func is a retryable operation. attempt starts at 1.
type Func func(ctx context.Context, attempt int) error

// Do runs fn until it succeeds, returns a non-retryable error, exhausts
// MaxAttempts, or ctx is done. The last error is returned.
func Do(ctx context.Context, p Policy, fn Func) error {
	attempts := max(p.MaxAttempts, 1)

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return lastErr
			case <-time.After(p.Backoff(attempt - 1)):
			}
		}

		lastErr = fn(ctx, attempt)
		if lastErr == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(lastErr) {
			return lastErr
		}
	}

	return lastErr
}

// Backoff returns the wait before retry n (n >= 1): BaseWait * 2^(n-1)
// plus up to 10% jitter, capped at MaxWait when set.
func (p Policy) Backoff(n int) time.Duration {
	if p.BaseWait <= 0 {
		return 0
	}

	wait := time.Duration(float64(p.BaseWait) * math.Pow(2, float64(n-1)))
	if p.MaxWait > 0 && wait > p.MaxWait {
		wait = p.MaxWait
	}

	jitter := time.Duration(rand.Float64() * float64(wait) * 0.1)
	return wait + jitter
}
