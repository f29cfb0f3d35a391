package repository

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/A1taxi-Hosur/cust-app-sub001/internal/booking/domain"
)

// ErrNotFound indicates missing bookings.
var ErrNotFound = errors.New("booking not found")

// MemoryRepository provides an in-memory implementation suitable for tests
// and local demos. Status changes use the same compare-and-set discipline as
// the Postgres implementation, so exactly one concurrent assign can win.
type MemoryRepository struct {
	mu       sync.RWMutex
	bookings map[uuid.UUID]domain.Booking
	events   []domain.BookingEvent
}

// NewMemoryRepository constructs an empty memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{bookings: make(map[uuid.UUID]domain.Booking)}
}

// CreateBooking stores the booking and returns it.
func (m *MemoryRepository) CreateBooking(_ context.Context, booking domain.Booking) (domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bookings[booking.ID] = booking
	return booking, nil
}

// GetBookingByID retrieves a booking.
func (m *MemoryRepository) GetBookingByID(_ context.Context, id uuid.UUID) (domain.Booking, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	booking, ok := m.bookings[id]
	if !ok {
		return domain.Booking{}, ErrNotFound
	}
	return booking, nil
}

// AssignDriver confirms the booking if it is still searching. Any later
// caller gets ErrInvalidTransition and the stored booking is untouched.
func (m *MemoryRepository) AssignDriver(_ context.Context, id uuid.UUID, driver domain.DriverSnapshot, at time.Time) (domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	booking, ok := m.bookings[id]
	if !ok {
		return domain.Booking{}, ErrNotFound
	}
	if booking.Status != domain.StatusSearching {
		return domain.Booking{}, domain.ErrInvalidTransition
	}
	confirmedAt := at
	booking.Status = domain.StatusConfirmed
	booking.Driver = &driver
	booking.ConfirmedAt = &confirmedAt
	booking.Version++
	m.bookings[id] = booking
	return booking, nil
}

// TransitionStatus moves the booking from one status to another, failing if
// the stored status has moved on.
func (m *MemoryRepository) TransitionStatus(_ context.Context, id uuid.UUID, from, to domain.Status, reason string, at time.Time) (domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	booking, ok := m.bookings[id]
	if !ok {
		return domain.Booking{}, ErrNotFound
	}
	if booking.Status != from || !from.CanTransitionTo(to) {
		return domain.Booking{}, domain.ErrInvalidTransition
	}
	ts := at
	booking.Status = to
	switch to {
	case domain.StatusCancelled:
		booking.CancelledAt = &ts
		booking.FailReason = reason
	case domain.StatusNoDrivers:
		booking.FailReason = reason
	case domain.StatusCompleted:
		booking.CompletedAt = &ts
	}
	booking.Version++
	m.bookings[id] = booking
	return booking, nil
}

// CreateBookingEvent appends events to an in-memory buffer.
func (m *MemoryRepository) CreateBookingEvent(_ context.Context, event domain.BookingEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

// Events returns stored events (for tests).
func (m *MemoryRepository) Events() []domain.BookingEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.BookingEvent(nil), m.events...)
}
