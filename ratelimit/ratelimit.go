// Package ratelimit provides the process-local token bucket that gates every
// outbound request the executor makes.
package ratelimit

import (
	"context"
	"math"

	"golang.org/x/time/rate"
)

// Limiter is a token-bucket admission gate. It is safe for concurrent use by
// multiple in-flight operations sharing one client.
type Limiter struct {
	r *rate.Limiter
}

// New builds a Limiter with steady-state rate r (requests/second). Burst
// capacity defaults to ceil(r), minimum 1, so short bursts are absorbed
// while the average stays within the limit.
func New(r float64) *Limiter {
	burst := int(math.Ceil(r))
	if burst < 1 {
		burst = 1
	}
	return &Limiter{r: rate.NewLimiter(rate.Limit(r), burst)}
}

// NewWithBurst builds a Limiter with an explicit burst capacity.
func NewWithBurst(r float64, burst int) *Limiter {
	if burst < 1 {
		burst = 1
	}
	return &Limiter{r: rate.NewLimiter(rate.Limit(r), burst)}
}

// Acquire blocks cooperatively until a token is available, consuming exactly
// one, or returns ctx.Err() if the context is cancelled first.
func (l *Limiter) Acquire(ctx context.Context) error {
	return l.r.Wait(ctx)
}
