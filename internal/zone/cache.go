package zone

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKey = "zones:active"

// CachedRepository is a Redis read-through cache in front of another
// repository. Zone edits are rare, so entries live until the TTL expires or
// Invalidate is called from the admin tooling.
type CachedRepository struct {
	next Repository
	rdb  *redis.Client
	ttl  time.Duration
}

func NewCachedRepository(next Repository, rdb *redis.Client, ttl time.Duration) *CachedRepository {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &CachedRepository{next: next, rdb: rdb, ttl: ttl}
}

func (r *CachedRepository) Zones(ctx context.Context) ([]Zone, error) {
	raw, err := r.rdb.Get(ctx, cacheKey).Result()
	if err == nil {
		var zones []Zone
		if jsonErr := json.Unmarshal([]byte(raw), &zones); jsonErr == nil {
			return zones, nil
		}
		// Corrupt entry, fall through and rebuild it.
	} else if err != redis.Nil {
		return nil, fmt.Errorf("read zone cache: %w", err)
	}

	zones, err := r.next.Zones(ctx)
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(zones)
	if err != nil {
		return nil, fmt.Errorf("encode zone cache: %w", err)
	}
	if err := r.rdb.Set(ctx, cacheKey, data, r.ttl).Err(); err != nil {
		return nil, fmt.Errorf("write zone cache: %w", err)
	}
	return zones, nil
}

// Invalidate drops the cached entry so the next read hits the backing store.
func (r *CachedRepository) Invalidate(ctx context.Context) error {
	if err := r.rdb.Del(ctx, cacheKey).Err(); err != nil {
		return fmt.Errorf("invalidate zone cache: %w", err)
	}
	return nil
}
