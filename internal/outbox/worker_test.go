package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	natscontainer "github.com/testcontainers/testcontainers-go/modules/nats"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/zap"
)

func TestWorkerPublishesOutboxEntries(t *testing.T) {
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()

	pool := startPostgres(t, ctx)
	prepareEventsTable(t, ctx, pool)
	bookingID := uuid.New()
	insertEvent(t, ctx, pool, bookingID, "DriverConfirmed", []byte(`{"driver_id":"d1"}`))

	nc := startNATS(t, ctx)
	msgCh := make(chan *nats.Msg, 1)
	_, err := nc.Subscribe("booking.events", func(msg *nats.Msg) {
		msgCh <- msg
	})
	require.NoError(t, err)

	worker := NewWorker(pool, nc, zap.NewNop(), WorkerConfig{PollInterval: 100 * time.Millisecond, BatchSize: 10, RetryMax: 5})
	ctxWorker, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		_ = worker.Run(ctxWorker)
	}()

	select {
	case <-time.After(10 * time.Second):
		t.Fatal("expected outbox message")
	case msg := <-msgCh:
		require.Equal(t, "DriverConfirmed", msg.Header.Get("x-event-type"))
		var env envelope
		require.NoError(t, json.Unmarshal(msg.Data, &env))
		require.Equal(t, bookingID, env.BookingID)
		require.Equal(t, "DriverConfirmed", env.Type)
		require.JSONEq(t, `{"driver_id":"d1"}`, string(env.Payload))
	}

	assertPublished(t, ctx, pool, 1)
}

func TestWorkerRetriesOnFailure(t *testing.T) {
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()

	pool := startPostgres(t, ctx)
	prepareEventsTable(t, ctx, pool)
	insertEvent(t, ctx, pool, uuid.New(), "BookingCreated", []byte(`{"retry":true}`))

	nc := startNATS(t, ctx)
	msgCh := make(chan *nats.Msg, 1)
	_, err := nc.Subscribe("booking.events", func(msg *nats.Msg) {
		msgCh <- msg
	})
	require.NoError(t, err)

	worker := NewWorker(pool, nc, zap.NewNop(), WorkerConfig{PollInterval: 100 * time.Millisecond, BatchSize: 5, RetryMax: 5})
	worker.publisher = &flakyPublisher{base: nc, failFor: 3}

	ctxWorker, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		_ = worker.Run(ctxWorker)
	}()

	select {
	case <-time.After(15 * time.Second):
		t.Fatal("expected retry publish")
	case msg := <-msgCh:
		var env envelope
		require.NoError(t, json.Unmarshal(msg.Data, &env))
		require.JSONEq(t, `{"retry":true}`, string(env.Payload))
	}

	assertPublished(t, ctx, pool, 1)
}

type flakyPublisher struct {
	base    *nats.Conn
	failFor int32
}

func (f *flakyPublisher) PublishMsg(msg *nats.Msg) error {
	if atomic.LoadInt32(&f.failFor) > 0 {
		atomic.AddInt32(&f.failFor, -1)
		return errors.New("simulated nats outage")
	}
	return f.base.PublishMsg(msg)
}

func startPostgres(t *testing.T, ctx context.Context) *pgxpool.Pool {
	pg, err := postgrescontainer.Run(ctx, "postgres:16",
		postgrescontainer.WithDatabase("a1taxi"),
		postgrescontainer.WithUsername("postgres"),
		postgrescontainer.WithPassword("postgres"),
		postgrescontainer.BasicWaitStrategies())
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, pg.Terminate(ctx))
	})

	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	require.NoError(t, pool.Ping(ctx))
	t.Cleanup(pool.Close)
	return pool
}

func startNATS(t *testing.T, ctx context.Context) *nats.Conn {
	container, err := natscontainer.Run(ctx, "nats:2")
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, container.Terminate(ctx))
	})

	natsURL, err := container.ConnectionString(ctx)
	require.NoError(t, err)
	nc, err := nats.Connect(natsURL)
	require.NoError(t, err)
	t.Cleanup(func() { _ = nc.Drain() })
	return nc
}

func prepareEventsTable(t *testing.T, ctx context.Context, pool *pgxpool.Pool) {
	ddl := `CREATE TABLE IF NOT EXISTS booking_events (
	id BIGSERIAL PRIMARY KEY,
	booking_id UUID NOT NULL,
	type TEXT NOT NULL,
	payload JSONB,
	published BOOLEAN DEFAULT FALSE,
	created_at TIMESTAMPTZ DEFAULT now()
)`
	_, err := pool.Exec(ctx, ddl)
	require.NoError(t, err)
}

func insertEvent(t *testing.T, ctx context.Context, pool *pgxpool.Pool, bookingID uuid.UUID, eventType string, payload []byte) {
	_, err := pool.Exec(ctx, `INSERT INTO booking_events (booking_id, type, payload, published) VALUES ($1, $2, $3, false)`, bookingID, eventType, payload)
	require.NoError(t, err)
}

func assertPublished(t *testing.T, ctx context.Context, pool *pgxpool.Pool, id int64) {
	var published bool
	row := pool.QueryRow(ctx, `SELECT published FROM booking_events WHERE id = $1`, id)
	require.NoError(t, row.Scan(&published))
	require.True(t, published)
}
