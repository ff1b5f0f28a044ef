package infrastructure

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

// AttemptLimiter counts attempts per key inside a fixed window.
type AttemptLimiter struct {
	mu     sync.Mutex
	max    int
	window time.Duration
	hits   *cache.Cache
}

func NewAttemptLimiter(max int, window time.Duration) *AttemptLimiter {
	return &AttemptLimiter{
		max:    max,
		window: window,
		hits:   cache.New(window, 2*window),
	}
}

// Allow records an attempt and reports whether it is within the limit.
func (l *AttemptLimiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, found := l.hits.Get(key); !found {
		l.hits.Set(key, 1, l.window)
		return l.max > 0
	}
	n, err := l.hits.IncrementInt(key, 1)
	if err != nil {
		return false
	}
	return n <= l.max
}

// RetryAfter is the time left until key's window resets.
func (l *AttemptLimiter) RetryAfter(key string) time.Duration {
	_, exp, found := l.hits.GetWithExpiration(key)
	if !found {
		return 0
	}
	if d := time.Until(exp); d > 0 {
		return d
	}
	return 0
}

// Reset clears key's window, e.g. after a successful login.
func (l *AttemptLimiter) Reset(key string) {
	l.hits.Delete(key)
}
