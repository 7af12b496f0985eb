package util

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter gates how often watch mode may rebuild the project graph. A
// burst of one keeps rescans strictly sequential under a flood of
// filesystem events.
type Limiter struct {
	inner *rate.Limiter
}

// NewLimiter creates a token bucket allowing r rescans per second.
func NewLimiter(r float64) *Limiter {
	return &Limiter{inner: rate.NewLimiter(rate.Limit(r), 1)}
}

// Wait blocks until the next rescan is permitted.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.inner.WaitN(ctx, 1)
}
