package ingest

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper claims event ids so webhook retries are processed once.
type Deduper interface {
	// Claim returns false when id was already claimed within the TTL.
	Claim(ctx context.Context, id string) (bool, error)
	// Release forgets id so a failed event can be retried.
	Release(ctx context.Context, id string) error
}

// RedisDeduper claims ids with SET NX and a TTL.
type RedisDeduper struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisDeduper creates a deduper keyed under "sgevent:".
func NewRedisDeduper(client *redis.Client, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{client: client, prefix: "sgevent:", ttl: ttl}
}

func (d *RedisDeduper) Claim(ctx context.Context, id string) (bool, error) {
	return d.client.SetNX(ctx, d.prefix+id, 1, d.ttl).Result()
}

func (d *RedisDeduper) Release(ctx context.Context, id string) error {
	return d.client.Del(ctx, d.prefix+id).Err()
}
