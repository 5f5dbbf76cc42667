// Package quota gates every request with per-tenant daily quotas and
// fixed-window rate limits.
package quota

import (
	"sync"
	"time"
)

// bucket tracks one tenant's request count inside the current window.
type bucket struct {
	windowStart time.Time
	count       int
}

// RateLimiter enforces a fixed window per tenant. State is in-process and
// ephemeral: losing a bucket on restart fails open, which is acceptable for
// rate limiting (never for quota).
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

// NewRateLimiter creates an empty limiter.
func NewRateLimiter() *RateLimiter {
	return &RateLimiter{
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

// Allow consumes one slot from the tenant's current window. When the window
// is exhausted it returns false and the duration until the window resets.
func (l *RateLimiter) Allow(tenantID string, limit int, window time.Duration) (bool, time.Duration) {
	if limit <= 0 || window <= 0 {
		return true, 0
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[tenantID]
	if !ok || now.Sub(b.windowStart) >= window {
		l.buckets[tenantID] = &bucket{windowStart: now, count: 1}
		return true, 0
	}
	if b.count >= limit {
		return false, b.windowStart.Add(window).Sub(now)
	}
	b.count++
	return true, 0
}

// Sweep removes buckets whose window has long expired, bounding memory.
// Called on a fixed interval; holds the lock only for the map walk.
func (l *RateLimiter) Sweep(maxWindow time.Duration) int {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for tenantID, b := range l.buckets {
		if now.Sub(b.windowStart) >= maxWindow {
			delete(l.buckets, tenantID)
			removed++
		}
	}
	return removed
}

// Len reports the number of live buckets.
func (l *RateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
