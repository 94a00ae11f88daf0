package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCounterStore implements CounterStore on Redis. INCR plus a window
// TTL set only on the first attempt gives atomic fixed-window counting
// without round-trips between read and write.
type RedisCounterStore struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *RedisCounterStore {
	return &RedisCounterStore{client: client}
}

func (s *RedisCounterStore) Increment(ctx context.Context, key string, limit int, window time.Duration) (*Decision, error) {
	if key == "" {
		return nil, fmt.Errorf("rate limit key is required")
	}

	redisKey := "ratelimit:" + key

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.ExpireNX(ctx, redisKey, window)
	ttl := pipe.TTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("increment rate limit counter: %w", err)
	}

	count := int(incr.Val())
	remainingTTL := ttl.Val()
	if remainingTTL < 0 {
		remainingTTL = window
	}
	now := time.Now()
	resetAt := now.Add(remainingTTL)

	if count > limit {
		return &Decision{
			Allowed:    false,
			Limit:      limit,
			Remaining:  0,
			ResetAt:    resetAt,
			RetryAfter: retryAfterSeconds(resetAt, now),
		}, nil
	}
	return &Decision{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - count,
		ResetAt:   resetAt,
	}, nil
}
