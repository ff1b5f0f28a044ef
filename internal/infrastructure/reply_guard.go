package infrastructure

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

const DefaultReplyCooldown = 2 * time.Second

// ReplyGuard serializes auto replies per conversation. A key is refused while
// a reply is in flight and for the cooldown after it finishes.
type ReplyGuard struct {
	mu       sync.Mutex
	inFlight map[string]struct{}
	recent   *cache.Cache
	cooldown time.Duration
}

func NewReplyGuard(cooldown time.Duration) *ReplyGuard {
	if cooldown <= 0 {
		cooldown = DefaultReplyCooldown
	}
	return &ReplyGuard{
		inFlight: make(map[string]struct{}),
		recent:   cache.New(cooldown, time.Minute),
		cooldown: cooldown,
	}
}

// Begin reports whether the caller may reply now and marks key as busy.
func (g *ReplyGuard) Begin(key string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, busy := g.inFlight[key]; busy {
		return false
	}
	if _, found := g.recent.Get(key); found {
		return false
	}
	g.inFlight[key] = struct{}{}
	return true
}

// Done releases key and starts its cooldown.
func (g *ReplyGuard) Done(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.inFlight, key)
	g.recent.Set(key, time.Now(), g.cooldown)
}

func (g *ReplyGuard) Busy() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.inFlight)
}
