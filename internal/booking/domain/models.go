package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	faredomain "github.com/A1taxi-Hosur/cust-app-sub001/internal/fare/domain"
	"github.com/A1taxi-Hosur/cust-app-sub001/internal/geo"
)

type Status string

const (
	StatusSearching Status = "SEARCHING"
	StatusConfirmed Status = "CONFIRMED"
	StatusNoDrivers Status = "NO_DRIVERS"
	StatusCancelled Status = "CANCELLED"
	StatusOngoing   Status = "ONGOING"
	StatusCompleted Status = "COMPLETED"
)

var ErrInvalidTransition = errors.New("invalid booking state transition")
var ErrDriverMismatch = errors.New("driver not assigned to booking")

var allowedTransitions = map[Status][]Status{
	StatusSearching: {StatusConfirmed, StatusNoDrivers, StatusCancelled},
	StatusConfirmed: {StatusOngoing, StatusCancelled},
	StatusOngoing:   {StatusCompleted},
	// A failed search can be reopened by an explicit retry.
	StatusNoDrivers: {StatusSearching},
}

func (s Status) CanTransitionTo(next Status) bool {
	if s == next {
		return true
	}
	for _, candidate := range allowedTransitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Final reports whether the driver search is over for this status. A
// NO_DRIVERS booking stays final until an explicit retry reopens it.
func (s Status) Final() bool {
	switch s {
	case StatusNoDrivers, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

// DriverSnapshot is the driver profile captured at confirmation time, frozen
// on the booking so later profile edits do not rewrite history.
type DriverSnapshot struct {
	DriverID      uuid.UUID      `json:"driver_id"`
	Name          string         `json:"name"`
	Phone         string         `json:"phone"`
	VehicleModel  string         `json:"vehicle_model"`
	VehicleNumber string         `json:"vehicle_number"`
	Rating        float64        `json:"rating"`
	Location      geo.Coordinate `json:"location"`
}

type Booking struct {
	ID          uuid.UUID
	RiderID     uuid.UUID
	ServiceType faredomain.ServiceType
	CarClass    faredomain.CarClass
	Pickup      geo.Coordinate
	Drop        geo.Coordinate
	Fare        faredomain.FareBreakdown

	Status      Status
	Driver      *DriverSnapshot
	FailReason  string
	CreatedAt   time.Time
	ConfirmedAt *time.Time
	CancelledAt *time.Time
	CompletedAt *time.Time
	Version     int64
}

type BookingEventType string

const (
	EventBookingCreated   BookingEventType = "BookingCreated"
	EventDriverConfirmed  BookingEventType = "DriverConfirmed"
	EventSearchTimedOut   BookingEventType = "SearchTimedOut"
	EventSearchRetried    BookingEventType = "SearchRetried"
	EventBookingCancelled BookingEventType = "BookingCancelled"
	EventTripStarted      BookingEventType = "TripStarted"
	EventTripCompleted    BookingEventType = "TripCompleted"
)

type BookingEvent struct {
	ID        int64            `json:"-"`
	BookingID uuid.UUID        `json:"booking_id"`
	Type      BookingEventType `json:"type"`
	Payload   map[string]any   `json:"payload,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
}

// AssignmentSignal is one watcher's report that dispatch recorded a driver
// for a booking. Source names the watcher that saw it first.
type AssignmentSignal struct {
	BookingID  uuid.UUID
	DriverID   uuid.UUID
	Source     string
	ObservedAt time.Time
}

type OutcomeKind string

const (
	OutcomeAssigned  OutcomeKind = "ASSIGNED"
	OutcomeTimedOut  OutcomeKind = "TIMED_OUT"
	OutcomeCancelled OutcomeKind = "CANCELLED"
)

// MatchOutcome is the single decision a driver search settles on. Driver may
// be nil when the directory lookup failed after assignment; DriverID is
// still authoritative.
type MatchOutcome struct {
	BookingID uuid.UUID       `json:"booking_id"`
	Kind      OutcomeKind     `json:"kind"`
	DriverID  uuid.UUID       `json:"driver_id,omitempty"`
	Driver    *DriverSnapshot `json:"driver,omitempty"`
	Source    string          `json:"source,omitempty"`
	Reason    string          `json:"reason,omitempty"`
	DecidedAt time.Time       `json:"decided_at"`
}

type Repository interface {
	CreateBooking(ctx context.Context, booking Booking) (Booking, error)
	GetBookingByID(ctx context.Context, id uuid.UUID) (Booking, error)
	// AssignDriver confirms the booking if and only if it is still
	// SEARCHING. Exactly one caller can succeed per booking.
	AssignDriver(ctx context.Context, id uuid.UUID, driver DriverSnapshot, at time.Time) (Booking, error)
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to Status, reason string, at time.Time) (Booking, error)
	CreateBookingEvent(ctx context.Context, event BookingEvent) error
}

type IdempotencyRepository interface {
	GetResponse(ctx context.Context, key string) ([]byte, bool, error)
	PutResponse(ctx context.Context, key string, payload []byte) error
}

// AssignmentReader reads the assignment the dispatch system wrote for a
// booking, if any. The poll watcher drives it on a fixed cadence.
type AssignmentReader interface {
	Assignment(ctx context.Context, bookingID uuid.UUID) (AssignmentSignal, bool, error)
}

// AssignmentNotifier streams assignment signals as dispatch pushes them. The
// channel closes when the subscription ends.
type AssignmentNotifier interface {
	Subscribe(ctx context.Context, bookingID uuid.UUID) (<-chan AssignmentSignal, error)
}

// DriverDirectory resolves a driver's profile at confirmation time.
type DriverDirectory interface {
	Driver(ctx context.Context, driverID uuid.UUID) (DriverSnapshot, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event BookingEvent) error
}

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().UTC() }
