// Package ratelimit provides the shared pacing limiter for provider calls.
//
// A single Limiter instance is passed to every component that talks to an
// external API (log fetcher, price lookups, transaction details) so the total
// outbound call rate stays under the provider's ceiling regardless of which
// component issues the call.
package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// DefaultInterval is the default minimum delay between provider calls.
const DefaultInterval = 200 * time.Millisecond

// Limiter enforces a minimum interval between calls. Safe for concurrent use;
// pacing state is serialized internally.
type Limiter struct {
	l *rate.Limiter
}

// New creates a limiter allowing one call per interval. A non-positive
// interval disables pacing.
func New(interval time.Duration) *Limiter {
	if interval <= 0 {
		return &Limiter{}
	}
	return &Limiter{l: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait blocks until the next call is allowed or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	if l == nil || l.l == nil {
		return ctx.Err()
	}
	return l.l.Wait(ctx)
}
