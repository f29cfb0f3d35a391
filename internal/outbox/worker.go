// Package outbox relays booking events from Postgres to NATS. Rows are
// claimed with FOR UPDATE SKIP LOCKED so several relay instances can run
// against the same table.
package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var (
	outboxPublishTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outbox_publish_total",
		Help: "Total number of successfully published outbox messages.",
	})
	outboxFailTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "outbox_fail_total",
		Help: "Total number of outbox publish failures after exhausting retries.",
	})
	outboxLagSeconds = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "outbox_lag_seconds",
		Help: "Age of the oldest processed outbox event in seconds.",
	})
)

// WorkerConfig defines tunables for the relay worker.
type WorkerConfig struct {
	Subject      string
	PollInterval time.Duration
	BatchSize    int
	RetryMax     int
}

type natsPublisher interface {
	PublishMsg(msg *nats.Msg) error
}

// Worker loads unpublished booking events and publishes them to NATS.
type Worker struct {
	pool      *pgxpool.Pool
	publisher natsPublisher
	logger    *zap.Logger
	cfg       WorkerConfig
	tracer    trace.Tracer
}

// NewWorker constructs a relay worker.
func NewWorker(pool *pgxpool.Pool, conn *nats.Conn, logger *zap.Logger, cfg WorkerConfig) *Worker {
	if cfg.Subject == "" {
		cfg.Subject = "booking.events"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 200 * time.Millisecond
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.RetryMax <= 0 {
		cfg.RetryMax = 3
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		pool:      pool,
		publisher: conn,
		logger:    logger,
		cfg:       cfg,
		tracer:    otel.Tracer("booking.outbox.worker"),
	}
}

// Run starts the polling loop until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if w.pool == nil || w.publisher == nil {
		return errors.New("outbox worker requires database and NATS connection")
	}
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()
	for {
		if err := w.processOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Error("outbox batch failed", zap.Error(err))
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

type record struct {
	ID        int64
	BookingID uuid.UUID
	Type      string
	Payload   []byte
	CreatedAt time.Time
}

// envelope is the wire shape consumed by downstream services.
type envelope struct {
	BookingID uuid.UUID       `json:"booking_id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

func (w *Worker) processOnce(ctx context.Context) error {
	ctx, span := w.tracer.Start(ctx, "outbox.batch")
	defer span.End()

	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	records, err := loadPending(ctx, tx, w.cfg.BatchSize)
	if err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if len(records) == 0 {
		return tx.Commit(ctx)
	}

	ids := make([]int64, 0, len(records))
	maxLag := 0.0
	for _, rec := range records {
		if err := w.publishWithRetry(ctx, rec); err != nil {
			_ = tx.Rollback(ctx)
			return err
		}
		ids = append(ids, rec.ID)
		outboxPublishTotal.Inc()
		lag := time.Since(rec.CreatedAt).Seconds()
		if lag > maxLag {
			maxLag = lag
		}
	}
	outboxLagSeconds.Set(maxLag)

	if _, err := tx.Exec(ctx, `UPDATE booking_events SET published = true WHERE id = ANY($1)`, ids); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("mark published: %w", err)
	}
	return tx.Commit(ctx)
}

func loadPending(ctx context.Context, tx pgx.Tx, batchSize int) ([]record, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, booking_id, type, payload, created_at
		FROM booking_events
		WHERE published = false
		ORDER BY id
		LIMIT $1
		FOR UPDATE SKIP LOCKED`, batchSize)
	if err != nil {
		return nil, fmt.Errorf("select booking_events: %w", err)
	}
	defer rows.Close()

	var records []record
	for rows.Next() {
		var rec record
		if err := rows.Scan(&rec.ID, &rec.BookingID, &rec.Type, &rec.Payload, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan booking_events: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate booking_events: %w", err)
	}
	return records, nil
}

func (w *Worker) publishWithRetry(ctx context.Context, rec record) error {
	ctx, span := w.tracer.Start(ctx, "outbox.publish")
	defer span.End()

	data, err := json.Marshal(envelope{
		BookingID: rec.BookingID,
		Type:      rec.Type,
		Payload:   rec.Payload,
		CreatedAt: rec.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("encode outbox %d: %w", rec.ID, err)
	}
	msg := nats.NewMsg(w.cfg.Subject)
	msg.Data = data
	msg.Header.Set("x-event-type", rec.Type)
	if sc := span.SpanContext(); sc.IsValid() {
		msg.Header.Set("traceparent", fmt.Sprintf("00-%s-%s-01", sc.TraceID(), sc.SpanID()))
	}

	var attempt int
	for {
		attempt++
		err := w.publisher.PublishMsg(msg)
		if err == nil {
			return nil
		}
		w.logger.Warn("publish failed", zap.Error(err), zap.Int("attempt", attempt), zap.Int64("outbox_id", rec.ID))
		if attempt >= w.cfg.RetryMax {
			outboxFailTotal.Inc()
			return fmt.Errorf("publish outbox %d: %w", rec.ID, err)
		}
		backoff := time.Duration(attempt*attempt) * 100 * time.Millisecond
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
