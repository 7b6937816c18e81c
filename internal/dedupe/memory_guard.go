package dedupe

import (
	"context"
	"sync"
	"time"

	"sms-backoffice/internal/dlr"
)

// MemoryGuard is an in-process Guard for tests and local development.
// It mirrors RedisGuard semantics, including TTL-based retention.
// It is not suitable for multi-instance deployments.
type MemoryGuard struct {
	mu    sync.Mutex
	seen  map[string]time.Time // key -> expiry
	ttl   time.Duration
	clock func() time.Time
}

func NewMemoryGuard(ttl time.Duration) *MemoryGuard {
	if ttl <= 0 {
		ttl = 6 * time.Hour
	}
	return &MemoryGuard{seen: map[string]time.Time{}, ttl: ttl, clock: time.Now}
}

func (g *MemoryGuard) Accept(ctx context.Context, r dlr.Report) (bool, error) {
	key := Key(r)
	now := g.clock()

	g.mu.Lock()
	defer g.mu.Unlock()

	if exp, ok := g.seen[key]; ok && now.Before(exp) {
		return false, nil
	}
	g.seen[key] = now.Add(g.ttl)

	// Opportunistic sweep keeps the map bounded without a background goroutine.
	if len(g.seen) > 4096 {
		for k, exp := range g.seen {
			if now.After(exp) {
				delete(g.seen, k)
			}
		}
	}
	return true, nil
}
