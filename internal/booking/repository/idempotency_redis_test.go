package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/A1taxi-Hosur/cust-app-sub001/internal/booking/repository"
)

func newRedisClient(t *testing.T) (*redis.Client, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	cleanup := func() {
		_ = client.Close()
		mr.Close()
	}
	return client, cleanup
}

func TestRedisIdempotencyFirstResponseWins(t *testing.T) {
	client, cleanup := newRedisClient(t)
	defer cleanup()

	repo := repository.NewRedisIdempotencyRepo(client, "", time.Hour)
	ctx := context.Background()

	require.NoError(t, repo.PutResponse(ctx, "booking-create-42", []byte(`{"id":"first"}`)))
	require.NoError(t, repo.PutResponse(ctx, "booking-create-42", []byte(`{"id":"second"}`)))

	payload, found, err := repo.GetResponse(ctx, "booking-create-42")
	require.NoError(t, err)
	require.True(t, found)
	require.JSONEq(t, `{"id":"first"}`, string(payload))
}

func TestRedisIdempotencyMissingKey(t *testing.T) {
	client, cleanup := newRedisClient(t)
	defer cleanup()

	repo := repository.NewRedisIdempotencyRepo(client, "", time.Hour)

	_, found, err := repo.GetResponse(context.Background(), "never-stored")
	require.NoError(t, err)
	require.False(t, found)
}
