package cache

import (
	"context"
	"time"

	"github.com/EsmailKhaleel/storefront-api/internal/usecase"
	"github.com/redis/go-redis/v9"
)

// RedisIdempotencyStore is the fast path for webhook redeliveries: it
// maps an already-materialized payment identifier to its order id. It
// is a cache, not the source of truth; correctness comes from the
// unique index on payment_intent_id.
type RedisIdempotencyStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisIdempotencyStore(rdb *redis.Client, ttl time.Duration) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{rdb: rdb, ttl: ttl}
}

func (s *RedisIdempotencyStore) Remember(ctx context.Context, scope, key, value string) error {
	return s.rdb.Set(ctx, "idemp:map:"+scope+":"+key, value, s.ttl).Err()
}

func (s *RedisIdempotencyStore) Recall(ctx context.Context, scope, key string) (string, bool, error) {
	val, err := s.rdb.Get(ctx, "idemp:map:"+scope+":"+key).Result()
	if err == redis.Nil {
		return "", false, nil
	}
	return val, err == nil, err
}

var _ usecase.IdempotencyStore = (*RedisIdempotencyStore)(nil)
