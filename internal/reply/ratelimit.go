package reply

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// rateLimiter is a token bucket refilled lazily from elapsed time.
type rateLimiter struct {
	lastRefill time.Time
	now        func() time.Time
	tokens     float64
	capacity   float64
	perSecond  float64
	mu         sync.Mutex
}

// newRateLimiter allows requestsPerMinute calls per minute with bursts of
// the same size.
func newRateLimiter(requestsPerMinute int, now func() time.Time) *rateLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 60
	}
	if now == nil {
		now = time.Now
	}
	return &rateLimiter{
		tokens:     float64(requestsPerMinute),
		capacity:   float64(requestsPerMinute),
		perSecond:  float64(requestsPerMinute) / 60,
		lastRefill: now(),
		now:        now,
	}
}

// wait blocks until a token is available or the context is canceled.
func (rl *rateLimiter) wait(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if rl.tryAcquire() {
			return nil
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("rate limiter canceled: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// tryAcquire takes a token without blocking.
func (rl *rateLimiter) tryAcquire() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if elapsed := now.Sub(rl.lastRefill).Seconds(); elapsed > 0 {
		rl.tokens += elapsed * rl.perSecond
		if rl.tokens > rl.capacity {
			rl.tokens = rl.capacity
		}
		rl.lastRefill = now
	}

	if rl.tokens >= 1 {
		rl.tokens--
		return true
	}
	return false
}
