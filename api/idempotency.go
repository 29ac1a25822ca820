package api

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const dedupeKeyPrefix = "bid"

// RedisDeduper stores bid idempotency keys in Redis so every instance
// rejects a replayed bid request.
type RedisDeduper struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisDeduper creates a deduper using the provided Redis client and TTL.
func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{client: client, ttl: ttl}
}

func (r *RedisDeduper) key(bidderID, key string) string {
	return fmt.Sprintf("%s:%s:%s", bidderID, dedupeKeyPrefix, key)
}

// Add records the key if it does not already exist. It returns true when the
// key was newly added.
func (r *RedisDeduper) Add(ctx context.Context, bidderID, key string) (bool, error) {
	return r.client.SetNX(ctx, r.key(bidderID, key), 1, r.ttl).Result()
}

// Remove deletes a previously recorded key. It is used when the bid is
// rejected so the caller may retry with the same key.
func (r *RedisDeduper) Remove(ctx context.Context, bidderID, key string) error {
	return r.client.Del(ctx, r.key(bidderID, key)).Err()
}
