// Package backoff computes jittered exponential retry delays and runs
// retry loops under context cancellation. The Anthropic and OpenAI chat
// clients schedule their retry waits through it.
package backoff

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// ErrExhausted is returned when every attempt failed.
var ErrExhausted = errors.New("backoff: attempts exhausted")

// Policy parameterizes the delay curve.
type Policy struct {
	Initial time.Duration
	Max     time.Duration
	Factor  float64
	Jitter  float64 // fraction of the base delay randomized on top, 0..1
}

// DefaultPolicy is the curve used for transient network failures:
// 100ms doubling up to 30s with 10% jitter.
func DefaultPolicy() Policy {
	return Policy{Initial: 100 * time.Millisecond, Max: 30 * time.Second, Factor: 2, Jitter: 0.1}
}

// Delay returns the wait before attempt (1-indexed).
func (p Policy) Delay(attempt int) time.Duration {
	return p.delayWithRand(attempt, rand.Float64())
}

// delayWithRand is the deterministic core, split out for tests.
func (p Policy) delayWithRand(attempt int, r float64) time.Duration {
	exp := math.Max(float64(attempt-1), 0)
	base := float64(p.Initial) * math.Pow(p.Factor, exp)
	total := base + base*p.Jitter*r
	if max := float64(p.Max); total > max {
		total = max
	}
	return time.Duration(total)
}

// Sleep waits for d, returning early with ctx.Err() on cancellation.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Retry runs fn up to maxAttempts times, sleeping per the policy between
// failures. retryable decides whether an error is worth another attempt;
// a nil retryable retries everything. The last error is wrapped under
// ErrExhausted when attempts run out.
func Retry[T any](ctx context.Context, p Policy, maxAttempts int, retryable func(error) bool, fn func() (T, error)) (T, error) {
	var zero T
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		v, err := fn()
		if err == nil {
			return v, nil
		}
		lastErr = err
		if retryable != nil && !retryable(err) {
			return zero, err
		}
		if attempt < maxAttempts {
			if err := Sleep(ctx, p.Delay(attempt)); err != nil {
				return zero, err
			}
		}
	}
	return zero, errors.Join(ErrExhausted, lastErr)
}
