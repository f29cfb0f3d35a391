package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/A1taxi-Hosur/cust-app-sub001/internal/booking/domain"
	"github.com/A1taxi-Hosur/cust-app-sub001/internal/booking/match"
)

// applyTimeout bounds the repository writes that persist a search outcome.
const applyTimeout = 10 * time.Second

// startSearch launches a coordinator for the booking and an applier goroutine
// that writes the outcome back once the search settles.
func (s *Service) startSearch(bookingID uuid.UUID) error {
	watchers := make([]match.Watcher, 0, 2)
	if s.notifier != nil {
		watchers = append(watchers, match.NewPushWatcher(s.notifier, s.logger))
	}
	if s.reader != nil {
		watchers = append(watchers, match.NewPollWatcher(s.reader, s.pollEvery, s.logger))
	}

	coordinator, err := match.New(match.Config{
		BookingID:       bookingID,
		Watchers:        watchers,
		Directory:       s.directory,
		Timeout:         s.timeout,
		SnapshotTimeout: s.snapTimeout,
		Clock:           s.clock,
		Logger:          s.logger,
	})
	if err != nil {
		return err
	}

	h := &search{coordinator: coordinator, applied: make(chan struct{})}
	s.mu.Lock()
	if _, exists := s.searches[bookingID]; exists {
		s.mu.Unlock()
		return ErrSearchInProgress
	}
	s.searches[bookingID] = h
	s.mu.Unlock()

	if err := coordinator.Start(s.baseCtx); err != nil {
		s.mu.Lock()
		delete(s.searches, bookingID)
		s.mu.Unlock()
		return err
	}
	go s.applyOutcome(bookingID, h)
	return nil
}

// applyOutcome blocks until the search settles, persists the resulting status
// transition and releases the search handle.
func (s *Service) applyOutcome(bookingID uuid.UUID, h *search) {
	defer func() {
		close(h.applied)
		s.mu.Lock()
		delete(s.searches, bookingID)
		s.mu.Unlock()
	}()

	<-h.coordinator.Done()
	outcome, ok := h.coordinator.Outcome()
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(s.baseCtx, applyTimeout)
	if s.baseCtx.Err() != nil {
		// Shutdown raced the settle; still try to persist with a fresh
		// deadline so the booking does not stay SEARCHING forever.
		cancel()
		ctx, cancel = context.WithTimeout(context.Background(), applyTimeout)
	}
	defer cancel()

	switch outcome.Kind {
	case domain.OutcomeAssigned:
		snapshot := outcome.Driver
		if snapshot == nil {
			snapshot = &domain.DriverSnapshot{DriverID: outcome.DriverID}
		}
		if _, err := s.repo.AssignDriver(ctx, bookingID, *snapshot, outcome.DecidedAt); err != nil {
			if errors.Is(err, domain.ErrInvalidTransition) {
				s.logger.Warn("assignment lost to concurrent transition",
					zap.String("booking_id", bookingID.String()),
					zap.String("driver_id", outcome.DriverID.String()))
				return
			}
			s.logger.Error("persist assignment failed",
				zap.String("booking_id", bookingID.String()),
				zap.Error(err))
			return
		}
		s.recordEvent(ctx, domain.BookingEvent{
			BookingID: bookingID,
			Type:      domain.EventDriverConfirmed,
			Payload: map[string]any{
				"driver_id": outcome.DriverID.String(),
				"source":    outcome.Source,
			},
			CreatedAt: s.clock.Now(),
		})
	case domain.OutcomeTimedOut:
		if _, err := s.repo.TransitionStatus(ctx, bookingID, domain.StatusSearching, domain.StatusNoDrivers, outcome.Reason, s.clock.Now()); err != nil {
			s.logTransitionSkip(bookingID, domain.StatusNoDrivers, err)
			return
		}
		s.recordEvent(ctx, domain.BookingEvent{
			BookingID: bookingID,
			Type:      domain.EventSearchTimedOut,
			Payload:   map[string]any{"reason": outcome.Reason},
			CreatedAt: s.clock.Now(),
		})
	case domain.OutcomeCancelled:
		if _, err := s.repo.TransitionStatus(ctx, bookingID, domain.StatusSearching, domain.StatusCancelled, outcome.Reason, s.clock.Now()); err != nil {
			s.logTransitionSkip(bookingID, domain.StatusCancelled, err)
			return
		}
		s.recordEvent(ctx, domain.BookingEvent{
			BookingID: bookingID,
			Type:      domain.EventBookingCancelled,
			Payload:   map[string]any{"reason": outcome.Reason},
			CreatedAt: s.clock.Now(),
		})
	}
}

func (s *Service) logTransitionSkip(bookingID uuid.UUID, to domain.Status, err error) {
	if errors.Is(err, domain.ErrInvalidTransition) {
		s.logger.Warn("search outcome superseded by concurrent transition",
			zap.String("booking_id", bookingID.String()),
			zap.String("target_status", string(to)))
		return
	}
	s.logger.Error("persist search outcome failed",
		zap.String("booking_id", bookingID.String()),
		zap.String("target_status", string(to)),
		zap.Error(err))
}

// AcceptAssignment records a driver acceptance coming from the dispatch
// side. The first driver to accept wins; later drivers get
// ErrInvalidTransition. Accepting the same driver twice is a no-op.
func (s *Service) AcceptAssignment(ctx context.Context, bookingID, driverID uuid.UUID) (domain.Booking, error) {
	ctx, span := s.tracer.Start(ctx, "booking.assign")
	defer span.End()

	booking, err := s.repo.GetBookingByID(ctx, bookingID)
	if err != nil {
		return domain.Booking{}, err
	}
	if booking.Status == domain.StatusConfirmed {
		if booking.Driver != nil && booking.Driver.DriverID == driverID {
			return booking, nil
		}
		return domain.Booking{}, domain.ErrInvalidTransition
	}
	if booking.Status.Final() || booking.Status != domain.StatusSearching {
		return domain.Booking{}, domain.ErrInvalidTransition
	}

	sig := domain.AssignmentSignal{
		BookingID:  bookingID,
		DriverID:   driverID,
		Source:     "dispatch",
		ObservedAt: s.clock.Now(),
	}
	if s.recorder != nil {
		won, err := s.recorder.RecordAssignment(ctx, sig)
		if err != nil {
			return domain.Booking{}, fmt.Errorf("record assignment: %w", err)
		}
		if !won {
			if s.reader != nil {
				if existing, ok, err := s.reader.Assignment(ctx, bookingID); err == nil && ok && existing.DriverID == driverID {
					// Same driver retrying the accept call.
					return s.repo.GetBookingByID(ctx, bookingID)
				}
			}
			return domain.Booking{}, domain.ErrInvalidTransition
		}
	}
	if s.publisher != nil {
		if err := s.publisher.PublishAssignment(ctx, sig); err != nil {
			s.logger.Warn("publish assignment failed, poll watcher will pick it up",
				zap.String("booking_id", bookingID.String()),
				zap.Error(err))
		}
	}

	if _, ok := s.activeSearch(bookingID); !ok && s.recorder == nil {
		// No live search on this instance and no dispatch store to relay
		// through; assign directly so the acceptance is not dropped.
		return s.assignDirect(ctx, sig)
	}
	return s.repo.GetBookingByID(ctx, bookingID)
}

// assignDirect applies an acceptance without a coordinator in the path.
func (s *Service) assignDirect(ctx context.Context, sig domain.AssignmentSignal) (domain.Booking, error) {
	snapshot := domain.DriverSnapshot{DriverID: sig.DriverID}
	if s.directory != nil {
		if full, err := s.directory.Driver(ctx, sig.DriverID); err == nil {
			snapshot = full
		}
	}
	updated, err := s.repo.AssignDriver(ctx, sig.BookingID, snapshot, s.clock.Now())
	if err != nil {
		return domain.Booking{}, err
	}
	s.recordEvent(ctx, domain.BookingEvent{
		BookingID: sig.BookingID,
		Type:      domain.EventDriverConfirmed,
		Payload: map[string]any{
			"driver_id": sig.DriverID.String(),
			"source":    sig.Source,
		},
		CreatedAt: s.clock.Now(),
	})
	return updated, nil
}

// SearchOutcome reports the settled outcome without blocking. ok is false
// while the search is still running.
func (s *Service) SearchOutcome(id uuid.UUID) (domain.MatchOutcome, bool) {
	if h, ok := s.activeSearch(id); ok {
		return h.coordinator.Outcome()
	}
	return domain.MatchOutcome{}, false
}

// WaitOutcome blocks until the booking's search settles and its outcome is
// persisted, then returns it. For bookings whose search ran elsewhere the
// outcome is reconstructed from the stored status.
func (s *Service) WaitOutcome(ctx context.Context, id uuid.UUID) (domain.MatchOutcome, error) {
	if h, ok := s.activeSearch(id); ok {
		select {
		case <-h.coordinator.Done():
		case <-ctx.Done():
			return domain.MatchOutcome{}, ctx.Err()
		}
		select {
		case <-h.applied:
		case <-ctx.Done():
			return domain.MatchOutcome{}, ctx.Err()
		}
		if outcome, ok := h.coordinator.Outcome(); ok {
			return outcome, nil
		}
	}
	booking, err := s.repo.GetBookingByID(ctx, id)
	if err != nil {
		return domain.MatchOutcome{}, err
	}
	return outcomeFromBooking(booking)
}

// outcomeFromBooking reconstructs a settled outcome from persisted state.
func outcomeFromBooking(b domain.Booking) (domain.MatchOutcome, error) {
	switch b.Status {
	case domain.StatusConfirmed, domain.StatusOngoing, domain.StatusCompleted:
		outcome := domain.MatchOutcome{BookingID: b.ID, Kind: domain.OutcomeAssigned, Driver: b.Driver}
		if b.Driver != nil {
			outcome.DriverID = b.Driver.DriverID
		}
		if b.ConfirmedAt != nil {
			outcome.DecidedAt = *b.ConfirmedAt
		}
		return outcome, nil
	case domain.StatusNoDrivers:
		return domain.MatchOutcome{BookingID: b.ID, Kind: domain.OutcomeTimedOut, Reason: b.FailReason}, nil
	case domain.StatusCancelled:
		outcome := domain.MatchOutcome{BookingID: b.ID, Kind: domain.OutcomeCancelled, Reason: b.FailReason}
		if b.CancelledAt != nil {
			outcome.DecidedAt = *b.CancelledAt
		}
		return outcome, nil
	default:
		return domain.MatchOutcome{}, ErrSearchInProgress
	}
}

func (s *Service) activeSearch(id uuid.UUID) (*search, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.searches[id]
	return h, ok
}
