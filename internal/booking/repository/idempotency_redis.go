package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultIdempotencyPrefix = "idem:booking:"

// RedisIdempotencyRepo shares idempotency responses across API instances.
// SET NX makes the first stored response win; the TTL bounds how long a
// client can replay a key.
type RedisIdempotencyRepo struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

func NewRedisIdempotencyRepo(client redis.Cmdable, prefix string, ttl time.Duration) *RedisIdempotencyRepo {
	if prefix == "" {
		prefix = defaultIdempotencyPrefix
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisIdempotencyRepo{client: client, prefix: prefix, ttl: ttl}
}

func (r *RedisIdempotencyRepo) GetResponse(ctx context.Context, key string) ([]byte, bool, error) {
	value, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return value, true, nil
}

func (r *RedisIdempotencyRepo) PutResponse(ctx context.Context, key string, payload []byte) error {
	if err := r.client.SetNX(ctx, r.prefix+key, payload, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis setnx: %w", err)
	}
	return nil
}
