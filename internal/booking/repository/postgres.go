package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/A1taxi-Hosur/cust-app-sub001/internal/booking/domain"
	faredomain "github.com/A1taxi-Hosur/cust-app-sub001/internal/fare/domain"
)

const bookingColumns = `
	id, rider_id, service_type, car_class,
	pickup_lat, pickup_lng, drop_lat, drop_lng,
	fare, status, driver, COALESCE(fail_reason, ''),
	created_at, confirmed_at, cancelled_at, completed_at, version`

// PostgresRepository persists bookings in the bookings and booking_events
// tables. Assignment and status changes are conditional updates, so when
// several callers race, the row decides exactly one winner.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) CreateBooking(ctx context.Context, booking domain.Booking) (domain.Booking, error) {
	fareJSON, err := json.Marshal(booking.Fare)
	if err != nil {
		return domain.Booking{}, fmt.Errorf("encode fare: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO bookings (
			id, rider_id, service_type, car_class,
			pickup_lat, pickup_lng, drop_lat, drop_lng,
			fare, status, created_at, version
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		booking.ID, booking.RiderID, string(booking.ServiceType), string(booking.CarClass),
		booking.Pickup.Lat, booking.Pickup.Lng, booking.Drop.Lat, booking.Drop.Lng,
		fareJSON, string(booking.Status), booking.CreatedAt, booking.Version)
	if err != nil {
		return domain.Booking{}, fmt.Errorf("insert booking: %w", err)
	}
	return booking, nil
}

func (r *PostgresRepository) GetBookingByID(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
	return scanBooking(row)
}

// AssignDriver confirms the booking if and only if the row is still
// SEARCHING. A zero row count means some other outcome got there first, or
// the booking does not exist.
func (r *PostgresRepository) AssignDriver(ctx context.Context, id uuid.UUID, driver domain.DriverSnapshot, at time.Time) (domain.Booking, error) {
	driverJSON, err := json.Marshal(driver)
	if err != nil {
		return domain.Booking{}, fmt.Errorf("encode driver: %w", err)
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE bookings
		SET status = $1, driver = $2, confirmed_at = $3, version = version + 1
		WHERE id = $4 AND status = $5`,
		string(domain.StatusConfirmed), driverJSON, at, id, string(domain.StatusSearching))
	if err != nil {
		return domain.Booking{}, fmt.Errorf("assign driver: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetBookingByID(ctx, id); err != nil {
			return domain.Booking{}, err
		}
		return domain.Booking{}, domain.ErrInvalidTransition
	}
	return r.GetBookingByID(ctx, id)
}

func (r *PostgresRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to domain.Status, reason string, at time.Time) (domain.Booking, error) {
	if !from.CanTransitionTo(to) {
		return domain.Booking{}, domain.ErrInvalidTransition
	}
	var cancelledAt, completedAt *time.Time
	switch to {
	case domain.StatusCancelled:
		cancelledAt = &at
	case domain.StatusCompleted:
		completedAt = &at
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE bookings
		SET status = $1,
		    fail_reason = CASE WHEN $2 <> '' THEN $2 ELSE fail_reason END,
		    cancelled_at = COALESCE($3, cancelled_at),
		    completed_at = COALESCE($4, completed_at),
		    version = version + 1
		WHERE id = $5 AND status = $6`,
		string(to), reason, cancelledAt, completedAt, id, string(from))
	if err != nil {
		return domain.Booking{}, fmt.Errorf("transition booking: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := r.GetBookingByID(ctx, id); err != nil {
			return domain.Booking{}, err
		}
		return domain.Booking{}, domain.ErrInvalidTransition
	}
	return r.GetBookingByID(ctx, id)
}

// CreateBookingEvent appends to the booking_events outbox table; the outbox
// worker relays rows to NATS.
func (r *PostgresRepository) CreateBookingEvent(ctx context.Context, event domain.BookingEvent) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("encode event payload: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO booking_events (booking_id, type, payload, created_at)
		VALUES ($1, $2, $3, $4)`,
		event.BookingID, string(event.Type), payload, event.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert booking event: %w", err)
	}
	return nil
}

func scanBooking(row pgx.Row) (domain.Booking, error) {
	var b domain.Booking
	var serviceType, carClass, status, failReason string
	var fareJSON, driverJSON []byte
	err := row.Scan(
		&b.ID, &b.RiderID, &serviceType, &carClass,
		&b.Pickup.Lat, &b.Pickup.Lng, &b.Drop.Lat, &b.Drop.Lng,
		&fareJSON, &status, &driverJSON, &failReason,
		&b.CreatedAt, &b.ConfirmedAt, &b.CancelledAt, &b.CompletedAt, &b.Version)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Booking{}, ErrNotFound
	}
	if err != nil {
		return domain.Booking{}, fmt.Errorf("scan booking: %w", err)
	}

	b.ServiceType = faredomain.ServiceType(serviceType)
	b.CarClass = faredomain.CarClass(carClass)
	b.Status = domain.Status(status)
	b.FailReason = failReason
	if len(fareJSON) > 0 {
		if err := json.Unmarshal(fareJSON, &b.Fare); err != nil {
			return domain.Booking{}, fmt.Errorf("decode fare: %w", err)
		}
	}
	if len(driverJSON) > 0 {
		var driver domain.DriverSnapshot
		if err := json.Unmarshal(driverJSON, &driver); err != nil {
			return domain.Booking{}, fmt.Errorf("decode driver: %w", err)
		}
		b.Driver = &driver
	}
	return b, nil
}
