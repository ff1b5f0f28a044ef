package infrastructure

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// KeyedRateLimiter keeps one token bucket per key (tenant id, client ip).
type KeyedRateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limit   rate.Limit
	burst   int
	idleTTL time.Duration
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewKeyedRateLimiter allows `events` per `window` with a burst of the same size.
func NewKeyedRateLimiter(events int, window time.Duration) *KeyedRateLimiter {
	if events <= 0 {
		events = 1
	}
	return &KeyedRateLimiter{
		buckets: make(map[string]*bucket),
		limit:   rate.Every(window / time.Duration(events)),
		burst:   events,
		idleTTL: 10 * time.Minute,
	}
}

func (rl *KeyedRateLimiter) get(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = time.Now()
	return b.limiter
}

// Allow consumes one token for key if available.
func (rl *KeyedRateLimiter) Allow(key string) bool {
	return rl.get(key).Allow()
}

// WaitTime returns how long key must wait for its next token.
func (rl *KeyedRateLimiter) WaitTime(key string) time.Duration {
	r := rl.get(key).Reserve()
	defer r.Cancel()
	return r.Delay()
}

// Sweep drops buckets idle for longer than the TTL and returns how many went away.
func (rl *KeyedRateLimiter) Sweep() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	removed := 0
	cutoff := time.Now().Add(-rl.idleTTL)
	for key, b := range rl.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(rl.buckets, key)
			removed++
		}
	}
	return removed
}

// RunSweeper sweeps every interval until ctx ends.
func (rl *KeyedRateLimiter) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.Sweep()
		}
	}
}
