package spotify

import (
	"context"
	"sync"
	"time"
)

// RateLimiter allows at most maxRequests calls in any sliding window. A nil
// or disabled limiter never blocks.
type RateLimiter struct {
	mu          sync.Mutex
	calls       []time.Time
	maxRequests int
	window      time.Duration
	now         func() time.Time
}

// NewRateLimiter returns nil when limiting is disabled.
func NewRateLimiter(enabled bool, maxRequests int, window time.Duration) *RateLimiter {
	if !enabled || maxRequests <= 0 || window <= 0 {
		return nil
	}
	return &RateLimiter{
		calls:       make([]time.Time, 0, maxRequests),
		maxRequests: maxRequests,
		window:      window,
		now:         time.Now,
	}
}

// Wait blocks until a call is allowed or ctx is done.
func (rl *RateLimiter) Wait(ctx context.Context) error {
	if rl == nil {
		return ctx.Err()
	}

	for {
		wait := rl.reserve()
		if wait <= 0 {
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// reserve records a call and returns 0, or returns how long until the oldest
// call in the window expires.
func (rl *RateLimiter) reserve() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cutoff := now.Add(-rl.window)
	kept := rl.calls[:0]
	for _, t := range rl.calls {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	rl.calls = kept

	if len(rl.calls) < rl.maxRequests {
		rl.calls = append(rl.calls, now)
		return 0
	}
	if d := rl.window - now.Sub(rl.calls[0]); d > 0 {
		return d
	}
	return time.Millisecond
}
