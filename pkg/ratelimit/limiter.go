package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Limiter paces outgoing requests
type Limiter interface {
	// Allow reports whether a request may proceed right now, consuming a token if so
	Allow() bool
	// Wait blocks until a request may proceed or ctx is done
	Wait(ctx context.Context) error
}

// NewPerMinute returns a token-bucket limiter admitting rpm requests per
// minute with the given burst. A non-positive rpm disables pacing.
func NewPerMinute(rpm, burst int) *rate.Limiter {
	if burst < 1 {
		burst = 1
	}
	if rpm <= 0 {
		return rate.NewLimiter(rate.Inf, burst)
	}
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), burst)
}

// Unlimited never blocks
type Unlimited struct{}

func (Unlimited) Allow() bool                    { return true }
func (Unlimited) Wait(ctx context.Context) error { return ctx.Err() }

var (
	_ Limiter = (*rate.Limiter)(nil)
	_ Limiter = Unlimited{}
)
