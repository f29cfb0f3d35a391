package zone_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/A1taxi-Hosur/cust-app-sub001/internal/zone"
)

func newRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return redis.NewClient(&redis.Options{Addr: mr.Addr()})
}

type countingRepo struct {
	zones []zone.Zone
	calls int
	err   error
}

func (r *countingRepo) Zones(context.Context) ([]zone.Zone, error) {
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return r.zones, nil
}

func TestCachedRepositoryReadThrough(t *testing.T) {
	backing := &countingRepo{zones: zone.HosurDefaults()}
	cached := zone.NewCachedRepository(backing, newRedisClient(t), time.Minute)

	ctx := context.Background()
	first, err := cached.Zones(ctx)
	require.NoError(t, err)
	require.Len(t, first, 2)
	require.Equal(t, 1, backing.calls)

	second, err := cached.Zones(ctx)
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, backing.calls, "second read must come from cache")
}

func TestCachedRepositoryInvalidate(t *testing.T) {
	backing := &countingRepo{zones: zone.HosurDefaults()}
	cached := zone.NewCachedRepository(backing, newRedisClient(t), time.Minute)

	ctx := context.Background()
	_, err := cached.Zones(ctx)
	require.NoError(t, err)
	require.NoError(t, cached.Invalidate(ctx))

	_, err = cached.Zones(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, backing.calls, "invalidate must force a backing read")
}

func TestCachedRepositoryBackingError(t *testing.T) {
	wantErr := errors.New("db down")
	backing := &countingRepo{err: wantErr}
	cached := zone.NewCachedRepository(backing, newRedisClient(t), time.Minute)

	_, err := cached.Zones(context.Background())
	require.ErrorIs(t, err, wantErr)
}
