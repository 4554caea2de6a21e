package ratelimiter

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// UserRateLimiter keeps one token bucket per key (ip, email, user id).
// Buckets unused for expirationTime are dropped by the cleanup loop.
type UserRateLimiter struct {
	mu             sync.Mutex
	limiters       map[string]*entry
	limit          rate.Limit
	burst          int
	expirationTime time.Duration
	now            func() time.Time
	stop           context.CancelFunc
}

// New starts a limiter allowing burst requests at once and refilling at
// limit tokens per second.
func New(limit rate.Limit, burst int, expirationTime time.Duration) *UserRateLimiter {
	ctx, cancel := context.WithCancel(context.Background())
	url := &UserRateLimiter{
		limiters:       make(map[string]*entry),
		limit:          limit,
		burst:          burst,
		expirationTime: expirationTime,
		now:            time.Now,
		stop:           cancel,
	}
	go url.cleanupLoop(ctx)
	return url
}

// Every is shorthand for n requests per window.
func Every(n int, window time.Duration) rate.Limit {
	return rate.Every(window / time.Duration(n))
}

func (url *UserRateLimiter) Allow(key string) bool {
	url.mu.Lock()
	now := url.now()
	e, ok := url.limiters[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(url.limit, url.burst)}
		url.limiters[key] = e
	}
	e.lastSeen = now
	url.mu.Unlock()

	return e.limiter.AllowN(now, 1)
}

func (url *UserRateLimiter) cleanupLoop(ctx context.Context) {
	interval := url.expirationTime / 2
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			url.cleanup()
		}
	}
}

func (url *UserRateLimiter) cleanup() {
	url.mu.Lock()
	defer url.mu.Unlock()

	cutoff := url.now().Add(-url.expirationTime)
	for key, e := range url.limiters {
		if e.lastSeen.Before(cutoff) {
			delete(url.limiters, key)
		}
	}
}

func (url *UserRateLimiter) Len() int {
	url.mu.Lock()
	defer url.mu.Unlock()
	return len(url.limiters)
}

// Stop ends the cleanup loop.
func (url *UserRateLimiter) Stop() {
	url.stop()
}
