package dedupe

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"sms-backoffice/internal/dlr"
)

// RedisGuard is the production Guard. The claim is a single SET NX PX, so it
// is atomic across all service instances sharing the Redis, not just within
// one process.
type RedisGuard struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisGuard(rdb *redis.Client, ttl time.Duration) (*RedisGuard, error) {
	if rdb == nil {
		return nil, fmt.Errorf("dedupe: redis client is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("dedupe: ttl must be > 0")
	}
	return &RedisGuard{rdb: rdb, ttl: ttl}, nil
}

func (g *RedisGuard) Accept(ctx context.Context, r dlr.Report) (bool, error) {
	ok, err := g.rdb.SetNX(ctx, Key(r), "1", g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedupe: claim failed: %w", err)
	}
	return ok, nil
}
