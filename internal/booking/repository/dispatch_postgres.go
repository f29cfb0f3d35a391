package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/A1taxi-Hosur/cust-app-sub001/internal/booking/domain"
)

// PostgresDispatchStore backs assignment polling with the
// dispatch_assignments table. The booking id is the primary key, so the
// first recorded driver wins at the storage level too.
type PostgresDispatchStore struct {
	pool *pgxpool.Pool
}

func NewPostgresDispatchStore(pool *pgxpool.Pool) *PostgresDispatchStore {
	return &PostgresDispatchStore{pool: pool}
}

// RecordAssignment inserts the accepted driver. It reports whether this call
// won the insert.
func (s *PostgresDispatchStore) RecordAssignment(ctx context.Context, sig domain.AssignmentSignal) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO dispatch_assignments (booking_id, driver_id, assigned_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (booking_id) DO NOTHING`,
		sig.BookingID, sig.DriverID, sig.ObservedAt)
	if err != nil {
		return false, fmt.Errorf("record assignment: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Assignment reads the recorded driver for a booking, if any.
func (s *PostgresDispatchStore) Assignment(ctx context.Context, bookingID uuid.UUID) (domain.AssignmentSignal, bool, error) {
	sig := domain.AssignmentSignal{BookingID: bookingID}
	err := s.pool.QueryRow(ctx, `
		SELECT driver_id, assigned_at
		FROM dispatch_assignments
		WHERE booking_id = $1`, bookingID).
		Scan(&sig.DriverID, &sig.ObservedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.AssignmentSignal{}, false, nil
	}
	if err != nil {
		return domain.AssignmentSignal{}, false, fmt.Errorf("read assignment: %w", err)
	}
	return sig, true, nil
}
