// Package service coordinates booking creation, driver search and trip
// lifecycle between handlers, repositories and the match package.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/A1taxi-Hosur/cust-app-sub001/internal/booking/domain"
	"github.com/A1taxi-Hosur/cust-app-sub001/internal/booking/match"
	faredomain "github.com/A1taxi-Hosur/cust-app-sub001/internal/fare/domain"
	fareservice "github.com/A1taxi-Hosur/cust-app-sub001/internal/fare/service"
	"github.com/A1taxi-Hosur/cust-app-sub001/internal/geo"
)

// ErrSearchInProgress means the booking is still searching and no outcome
// exists yet.
var ErrSearchInProgress = errors.New("driver search still in progress")

// AssignmentRecorder persists dispatch acceptances so the poll watcher can
// observe them.
type AssignmentRecorder interface {
	RecordAssignment(ctx context.Context, sig domain.AssignmentSignal) (bool, error)
}

// AssignmentPublisher pushes acceptances to live searches.
type AssignmentPublisher interface {
	PublishAssignment(ctx context.Context, sig domain.AssignmentSignal) error
}

// Config wires a booking Service. Repo and Fares are required, plus at least
// one assignment source (Notifier or Reader) so searches can observe
// dispatch.
type Config struct {
	Repo        domain.Repository
	Fares       *fareservice.Service
	Idempotency domain.IdempotencyRepository
	Events      domain.EventPublisher
	Directory   domain.DriverDirectory

	// Assignment plumbing. Notifier/Reader feed searches; Publisher and
	// Recorder are the write sides driven by the internal accept endpoint.
	Notifier  domain.AssignmentNotifier
	Reader    domain.AssignmentReader
	Publisher AssignmentPublisher
	Recorder  AssignmentRecorder

	SearchTimeout   time.Duration
	PollInterval    time.Duration
	SnapshotTimeout time.Duration

	// BaseContext bounds watcher and applier lifetimes; shutdown cancels it
	// to settle in-flight searches. Defaults to context.Background().
	BaseContext context.Context

	Clock  domain.Clock
	Logger *zap.Logger
}

// search tracks one in-flight driver search. applied closes once the outcome
// has been written back to the repository.
type search struct {
	coordinator *match.Coordinator
	applied     chan struct{}
}

// Service owns the booking lifecycle. Searches live in memory per instance;
// the dispatch store and NATS fan-out keep instances consistent.
type Service struct {
	repo        domain.Repository
	fares       *fareservice.Service
	idempotent  domain.IdempotencyRepository
	events      domain.EventPublisher
	directory   domain.DriverDirectory
	notifier    domain.AssignmentNotifier
	reader      domain.AssignmentReader
	publisher   AssignmentPublisher
	recorder    AssignmentRecorder
	timeout     time.Duration
	pollEvery   time.Duration
	snapTimeout time.Duration
	baseCtx     context.Context
	clock       domain.Clock
	logger      *zap.Logger
	tracer      trace.Tracer

	mu       sync.Mutex
	searches map[uuid.UUID]*search
}

func New(cfg Config) (*Service, error) {
	if cfg.Repo == nil {
		return nil, errors.New("booking service: repository is required")
	}
	if cfg.Fares == nil {
		return nil, errors.New("booking service: fare service is required")
	}
	if cfg.Notifier == nil && cfg.Reader == nil {
		return nil, errors.New("booking service: at least one assignment source is required")
	}
	if cfg.SearchTimeout <= 0 {
		cfg.SearchTimeout = match.DefaultSearchTimeout
	}
	if cfg.BaseContext == nil {
		cfg.BaseContext = context.Background()
	}
	if cfg.Clock == nil {
		cfg.Clock = domain.SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Service{
		repo:        cfg.Repo,
		fares:       cfg.Fares,
		idempotent:  cfg.Idempotency,
		events:      cfg.Events,
		directory:   cfg.Directory,
		notifier:    cfg.Notifier,
		reader:      cfg.Reader,
		publisher:   cfg.Publisher,
		recorder:    cfg.Recorder,
		timeout:     cfg.SearchTimeout,
		pollEvery:   cfg.PollInterval,
		snapTimeout: cfg.SnapshotTimeout,
		baseCtx:     cfg.BaseContext,
		clock:       cfg.Clock,
		logger:      cfg.Logger,
		tracer:      otel.Tracer("booking.service"),
		searches:    make(map[uuid.UUID]*search),
	}, nil
}

// CreateBookingRequest contains the payload for creating a booking.
type CreateBookingRequest struct {
	RiderID          uuid.UUID
	ServiceType      faredomain.ServiceType
	CarClass         faredomain.CarClass
	Pickup           geo.Coordinate
	Drop             geo.Coordinate
	TripDays         int
	RoundTrip        bool
	RentalPackage    string
	AirportDirection faredomain.AirportDirection
}

// CreateBookingResponse returns the created booking with its locked fare.
type CreateBookingResponse struct {
	BookingID     uuid.UUID                `json:"booking_id"`
	Status        domain.Status            `json:"status"`
	Fare          faredomain.FareBreakdown `json:"fare"`
	SearchTimeout string                   `json:"search_timeout"`
}

// CreateBooking prices the trip, persists the booking and starts the driver
// search. Replays of the same idempotency key return the original response
// without starting another search.
func (s *Service) CreateBooking(ctx context.Context, key string, req CreateBookingRequest) (CreateBookingResponse, error) {
	ctx, span := s.tracer.Start(ctx, "booking.create")
	defer span.End()

	if key != "" && s.idempotent != nil {
		if cached, ok, err := s.idempotent.GetResponse(ctx, key); err == nil && ok {
			var resp CreateBookingResponse
			if err := json.Unmarshal(cached, &resp); err != nil {
				return CreateBookingResponse{}, fmt.Errorf("decode cached response: %w", err)
			}
			return resp, nil
		}
	}

	if req.RiderID == uuid.Nil {
		return CreateBookingResponse{}, fmt.Errorf("%w: rider id required", faredomain.ErrInvalidRequest)
	}
	if req.CarClass == "" {
		return CreateBookingResponse{}, fmt.Errorf("%w: car class required", faredomain.ErrInvalidRequest)
	}

	fareReq := faredomain.FareRequest{
		ServiceType:      req.ServiceType,
		CarClass:         req.CarClass,
		Pickup:           req.Pickup,
		Drop:             req.Drop,
		TripDays:         req.TripDays,
		RoundTrip:        req.RoundTrip,
		RentalPackage:    req.RentalPackage,
		AirportDirection: req.AirportDirection,
	}
	breakdown, err := s.fares.Price(ctx, fareReq, req.CarClass)
	if err != nil {
		return CreateBookingResponse{}, fmt.Errorf("price booking: %w", err)
	}

	booking := domain.Booking{
		ID:          uuid.New(),
		RiderID:     req.RiderID,
		ServiceType: req.ServiceType,
		CarClass:    req.CarClass,
		Pickup:      req.Pickup,
		Drop:        req.Drop,
		Fare:        *breakdown,
		Status:      domain.StatusSearching,
		CreatedAt:   s.clock.Now(),
		Version:     1,
	}
	created, err := s.repo.CreateBooking(ctx, booking)
	if err != nil {
		return CreateBookingResponse{}, fmt.Errorf("create booking: %w", err)
	}
	s.recordEvent(ctx, domain.BookingEvent{
		BookingID: created.ID,
		Type:      domain.EventBookingCreated,
		Payload: map[string]any{
			"rider_id":     created.RiderID.String(),
			"service_type": string(created.ServiceType),
			"car_class":    string(created.CarClass),
			"total_fare":   created.Fare.TotalFare,
		},
		CreatedAt: s.clock.Now(),
	})

	if err := s.startSearch(created.ID); err != nil {
		return CreateBookingResponse{}, fmt.Errorf("start driver search: %w", err)
	}

	resp := CreateBookingResponse{
		BookingID:     created.ID,
		Status:        created.Status,
		Fare:          created.Fare,
		SearchTimeout: s.timeout.String(),
	}
	if key != "" && s.idempotent != nil {
		if encoded, err := json.Marshal(resp); err == nil {
			_ = s.idempotent.PutResponse(ctx, key, encoded)
		}
	}
	return resp, nil
}

// GetBooking retrieves a booking by identifier.
func (s *Service) GetBooking(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	return s.repo.GetBookingByID(ctx, id)
}

// CancelBooking cancels a search or a confirmed booking that has not
// started. When a search is live, cancellation goes through its coordinator
// so a racing assignment cannot be lost half-applied.
func (s *Service) CancelBooking(ctx context.Context, id uuid.UUID, reason string) (domain.Booking, error) {
	if reason == "" {
		reason = "rider cancelled"
	}
	if h, ok := s.activeSearch(id); ok {
		h.coordinator.Cancel(reason)
		select {
		case <-h.applied:
		case <-ctx.Done():
			return domain.Booking{}, ctx.Err()
		}
		// Either our cancel settled the search or an assignment beat it;
		// the persisted state decides below.
	}

	booking, err := s.repo.GetBookingByID(ctx, id)
	if err != nil {
		return domain.Booking{}, err
	}
	switch booking.Status {
	case domain.StatusCancelled:
		return booking, nil
	case domain.StatusSearching, domain.StatusConfirmed:
		// SEARCHING here means the search lives on another instance or was
		// lost to a restart; the status row is still the source of truth.
		updated, err := s.repo.TransitionStatus(ctx, id, booking.Status, domain.StatusCancelled, reason, s.clock.Now())
		if err != nil {
			return domain.Booking{}, err
		}
		s.recordEvent(ctx, domain.BookingEvent{
			BookingID: id,
			Type:      domain.EventBookingCancelled,
			Payload:   map[string]any{"reason": reason},
			CreatedAt: s.clock.Now(),
		})
		return updated, nil
	default:
		return domain.Booking{}, domain.ErrInvalidTransition
	}
}

// RetrySearch reopens a booking that ran out of drivers and starts a fresh
// search with the original fare.
func (s *Service) RetrySearch(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	updated, err := s.repo.TransitionStatus(ctx, id, domain.StatusNoDrivers, domain.StatusSearching, "", s.clock.Now())
	if err != nil {
		return domain.Booking{}, err
	}
	s.recordEvent(ctx, domain.BookingEvent{
		BookingID: id,
		Type:      domain.EventSearchRetried,
		CreatedAt: s.clock.Now(),
	})
	if err := s.startSearch(id); err != nil {
		return domain.Booking{}, fmt.Errorf("start driver search: %w", err)
	}
	return updated, nil
}

// StartTrip marks the driver as having begun the ride.
func (s *Service) StartTrip(ctx context.Context, id, driverID uuid.UUID) (domain.Booking, error) {
	booking, err := s.repo.GetBookingByID(ctx, id)
	if err != nil {
		return domain.Booking{}, err
	}
	if booking.Driver == nil || booking.Driver.DriverID != driverID {
		return domain.Booking{}, domain.ErrDriverMismatch
	}
	updated, err := s.repo.TransitionStatus(ctx, id, domain.StatusConfirmed, domain.StatusOngoing, "", s.clock.Now())
	if err != nil {
		return domain.Booking{}, err
	}
	s.recordEvent(ctx, domain.BookingEvent{
		BookingID: id,
		Type:      domain.EventTripStarted,
		Payload:   map[string]any{"driver_id": driverID.String()},
		CreatedAt: s.clock.Now(),
	})
	return updated, nil
}

// CompleteTrip marks the ride as finished.
func (s *Service) CompleteTrip(ctx context.Context, id uuid.UUID) (domain.Booking, error) {
	updated, err := s.repo.TransitionStatus(ctx, id, domain.StatusOngoing, domain.StatusCompleted, "", s.clock.Now())
	if err != nil {
		return domain.Booking{}, err
	}
	s.recordEvent(ctx, domain.BookingEvent{
		BookingID: id,
		Type:      domain.EventTripCompleted,
		Payload:   map[string]any{"total_fare": updated.Fare.TotalFare},
		CreatedAt: s.clock.Now(),
	})
	return updated, nil
}

// recordEvent appends to the booking_events outbox and, when a direct
// publisher is wired, pushes the event immediately. Deployments choose one
// delivery path; event loss is tolerable, event duplication is not.
func (s *Service) recordEvent(ctx context.Context, event domain.BookingEvent) {
	if err := s.repo.CreateBookingEvent(ctx, event); err != nil {
		s.logger.Warn("record booking event failed",
			zap.String("booking_id", event.BookingID.String()),
			zap.String("type", string(event.Type)),
			zap.Error(err))
	}
	if s.events != nil {
		if err := s.events.Publish(ctx, event); err != nil {
			s.logger.Warn("publish booking event failed",
				zap.String("booking_id", event.BookingID.String()),
				zap.String("type", string(event.Type)),
				zap.Error(err))
		}
	}
}
