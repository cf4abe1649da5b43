package cache

import (
	"context"
	"time"

	"github.com/EsmailKhaleel/storefront-api/internal/usecase"
	"github.com/redis/go-redis/v9"
)

// RedisCache keeps a best-effort copy of order status for the
// client-facing success page, which polls for order existence while
// the webhook may still be in flight.
type RedisCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCache(rdb *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

func (r *RedisCache) SetStatus(ctx context.Context, orderID, status string) error {
	return r.rdb.Set(ctx, "order:status:"+orderID, status, r.ttl).Err()
}

func (r *RedisCache) GetStatus(ctx context.Context, orderID string) (string, bool, error) {
	val, err := r.rdb.Get(ctx, "order:status:"+orderID).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	return val, err == nil, err
}

var _ usecase.OrderCache = (*RedisCache)(nil)
