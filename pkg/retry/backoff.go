package retry

import (
	"context"
	"math"
	"math/rand"
	"time"

	errs "github.com/danielbelay23/data-pipelines/pkg/errors"
)

// Rand is the randomness source used for jitter and probabilistic pauses.
// *math/rand.Rand satisfies it.
type Rand interface {
	Float64() float64
	Int63n(n int64) int64
}

// NewRand returns a Rand seeded from the current time
func NewRand() Rand {
	return rand.New(rand.NewSource(time.Now().UnixNano()))
}

// Sleeper blocks for d or until ctx is done
type Sleeper func(ctx context.Context, d time.Duration) error

// BackoffStrategy defines the interface for different backoff strategies
type BackoffStrategy interface {
	// NextDelay returns the delay before the given attempt (1-based)
	NextDelay(attempt int) time.Duration
}

// ExponentialBackoff implements exponential backoff with jitter
type ExponentialBackoff struct {
	BaseDelay    time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	JitterFactor float64
	// Rand overrides the jitter source; nil uses math/rand
	Rand Rand
}

// DefaultExponentialBackoff returns a backoff with sensible defaults
func DefaultExponentialBackoff() *ExponentialBackoff {
	return &ExponentialBackoff{
		BaseDelay:    1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		JitterFactor: 0.1,
	}
}

// NextDelay calculates the next delay with exponential backoff and jitter
func (eb *ExponentialBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}

	delay := float64(eb.BaseDelay) * math.Pow(eb.Multiplier, float64(attempt-1))
	if delay > float64(eb.MaxDelay) {
		delay = float64(eb.MaxDelay)
	}

	if eb.JitterFactor > 0 {
		f := rand.Float64
		if eb.Rand != nil {
			f = eb.Rand.Float64
		}
		jitter := delay * eb.JitterFactor
		delay += (f() * 2 * jitter) - jitter
	}

	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// ConstantBackoff implements constant delay backoff
type ConstantBackoff struct {
	Delay time.Duration
}

// NextDelay returns a constant delay
func (cb *ConstantBackoff) NextDelay(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	return cb.Delay
}

// Wait waits for the specified duration or until context is cancelled
func Wait(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Jitter is an inclusive range from which a pause is drawn uniformly
type Jitter struct {
	Min time.Duration
	Max time.Duration
}

// Pick draws a duration in [Min, Max]
func (j Jitter) Pick(r Rand) time.Duration {
	if j.Max <= j.Min {
		return j.Min
	}
	span := int64(j.Max - j.Min)
	return j.Min + time.Duration(r.Int63n(span+1))
}

// Action says what to do after a failed fetch
type Action struct {
	Retry bool
	Delay time.Duration
}

// Cooldowns holds the fixed pause applied before retrying each retryable kind
type Cooldowns struct {
	RateLimited time.Duration
	ServerError time.Duration
	Unexpected  time.Duration
}

// For returns the action for a failure of the given kind. Non-retryable kinds
// never retry; the others retry the same cursor after their cooldown.
func (c Cooldowns) For(kind errs.Kind) Action {
	switch kind {
	case errs.KindRateLimited:
		return Action{Retry: true, Delay: c.RateLimited}
	case errs.KindServerError:
		return Action{Retry: true, Delay: c.ServerError}
	case errs.KindUnexpected:
		return Action{Retry: true, Delay: c.Unexpected}
	case errs.KindBadRequest, errs.KindForbidden, errs.KindAuth:
		return Action{}
	default:
		return Action{}
	}
}
