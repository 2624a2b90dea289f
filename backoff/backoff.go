// Package backoff provides the retry delay strategies used when a job
// execution fails and is re-attempted in place. All strategies are
// stateless and safe for concurrent use.
package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

// Strategy computes the delay before a retry attempt.
type Strategy interface {
	// Delay returns how long to wait before retry attempt n (1-indexed).
	// Attempt 1 is the first retry after the initial failure.
	Delay(attempt int) time.Duration
}

// None retries immediately with no delay.
type None struct{}

// NewNone creates a strategy with zero delay.
func NewNone() None { return None{} }

// Delay returns zero.
func (None) Delay(_ int) time.Duration { return 0 }

// Fixed always waits the same interval between attempts.
type Fixed struct {
	Interval time.Duration
}

// NewFixed creates a fixed-interval strategy.
func NewFixed(interval time.Duration) Fixed {
	return Fixed{Interval: interval}
}

// Delay returns the fixed interval.
func (f Fixed) Delay(_ int) time.Duration { return f.Interval }

// Exponential doubles the delay each attempt, optionally randomized
// with full jitter to avoid synchronized retry bursts.
// Delay = min(Initial * 2^(attempt-1), Max), or a random value in
// [0, that bound) when Jitter is set.
type Exponential struct {
	Initial time.Duration
	Max     time.Duration
	Jitter  bool
}

// NewExponential creates an exponential strategy without jitter.
func NewExponential(initial, maxDelay time.Duration) Exponential {
	return Exponential{Initial: initial, Max: maxDelay}
}

// NewExponentialWithJitter creates an exponential strategy with full jitter.
func NewExponentialWithJitter(initial, maxDelay time.Duration) Exponential {
	return Exponential{Initial: initial, Max: maxDelay, Jitter: true}
}

// Delay computes the bound for the attempt and applies jitter if enabled.
func (e Exponential) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	bound := float64(e.Initial) * math.Pow(2, float64(attempt-1))
	if e.Max > 0 && bound > float64(e.Max) {
		bound = float64(e.Max)
	}

	if e.Jitter {
		return time.Duration(rand.Float64() * bound) //nolint:gosec // jitter intentionally uses non-crypto rand
	}
	return time.Duration(bound)
}

// Default returns the strategy used when none is configured:
// exponential with 1s initial, 1m cap, and full jitter.
func Default() Strategy {
	return NewExponentialWithJitter(1*time.Second, 1*time.Minute)
}
