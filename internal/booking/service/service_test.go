package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/A1taxi-Hosur/cust-app-sub001/internal/booking/domain"
	"github.com/A1taxi-Hosur/cust-app-sub001/internal/booking/repository"
	"github.com/A1taxi-Hosur/cust-app-sub001/internal/booking/service"
	faredomain "github.com/A1taxi-Hosur/cust-app-sub001/internal/fare/domain"
	farerepo "github.com/A1taxi-Hosur/cust-app-sub001/internal/fare/repository"
	fareservice "github.com/A1taxi-Hosur/cust-app-sub001/internal/fare/service"
	"github.com/A1taxi-Hosur/cust-app-sub001/internal/geo"
	"github.com/A1taxi-Hosur/cust-app-sub001/internal/route"
	"github.com/A1taxi-Hosur/cust-app-sub001/internal/zone"
)

var (
	hosurHub = geo.Coordinate{Lat: 12.7409, Lng: 77.8253}
	nearHub  = geo.Coordinate{Lat: 12.7509, Lng: 77.8253}
)

type fixedRoute struct {
	distanceKm  float64
	durationMin float64
}

func (f fixedRoute) Estimate(context.Context, geo.Coordinate, geo.Coordinate) (route.Estimate, error) {
	return route.Estimate{DistanceKm: f.distanceKm, DurationMin: f.durationMin}, nil
}

type stubDirectory struct{ drivers map[uuid.UUID]domain.DriverSnapshot }

func (d stubDirectory) Driver(_ context.Context, id uuid.UUID) (domain.DriverSnapshot, error) {
	if snap, ok := d.drivers[id]; ok {
		return snap, nil
	}
	return domain.DriverSnapshot{DriverID: id}, nil
}

// localBus delivers published assignments to in-process subscribers, standing
// in for NATS.
type localBus struct {
	mu   sync.Mutex
	subs map[uuid.UUID][]chan domain.AssignmentSignal
}

func newLocalBus() *localBus {
	return &localBus{subs: make(map[uuid.UUID][]chan domain.AssignmentSignal)}
}

func (b *localBus) Subscribe(_ context.Context, bookingID uuid.UUID) (<-chan domain.AssignmentSignal, error) {
	ch := make(chan domain.AssignmentSignal, 4)
	b.mu.Lock()
	b.subs[bookingID] = append(b.subs[bookingID], ch)
	b.mu.Unlock()
	return ch, nil
}

func (b *localBus) PublishAssignment(_ context.Context, sig domain.AssignmentSignal) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs[sig.BookingID] {
		select {
		case ch <- sig:
		default:
		}
	}
	return nil
}

type env struct {
	svc      *service.Service
	repo     *repository.MemoryRepository
	dispatch *repository.MemoryDispatchStore
	driverID uuid.UUID
}

func newEnv(t *testing.T, timeout time.Duration) *env {
	t.Helper()
	fares, err := fareservice.New(fareservice.Config{
		Rates:  farerepo.NewMemoryConfig(),
		Routes: fixedRoute{distanceKm: 12, durationMin: 25},
		Zones:  zone.NewStaticRepository(zone.HosurDefaults()),
		Now:    func() time.Time { return time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC) },
	})
	require.NoError(t, err)

	driverID := uuid.New()
	repo := repository.NewMemoryRepository()
	dispatch := repository.NewMemoryDispatchStore()
	bus := newLocalBus()
	svc, err := service.New(service.Config{
		Repo:        repo,
		Fares:       fares,
		Idempotency: repository.NewMemoryIdempotencyRepo(),
		Directory: stubDirectory{drivers: map[uuid.UUID]domain.DriverSnapshot{
			driverID: {
				DriverID:      driverID,
				Name:          "Murugan S",
				Phone:         "+919876543210",
				VehicleModel:  "Swift Dzire",
				VehicleNumber: "TN70AB1234",
				Rating:        4.7,
			},
		}},
		Notifier:      bus,
		Reader:        dispatch,
		Publisher:     bus,
		Recorder:      dispatch,
		SearchTimeout: timeout,
		PollInterval:  10 * time.Millisecond,
	})
	require.NoError(t, err)
	return &env{svc: svc, repo: repo, dispatch: dispatch, driverID: driverID}
}

func createBooking(t *testing.T, e *env, key string) service.CreateBookingResponse {
	t.Helper()
	resp, err := e.svc.CreateBooking(context.Background(), key, service.CreateBookingRequest{
		RiderID:     uuid.New(),
		ServiceType: faredomain.ServiceStandard,
		CarClass:    faredomain.ClassSedan,
		Pickup:      hosurHub,
		Drop:        nearHub,
	})
	require.NoError(t, err)
	return resp
}

func eventTypes(events []domain.BookingEvent) []domain.BookingEventType {
	types := make([]domain.BookingEventType, 0, len(events))
	for _, e := range events {
		types = append(types, e.Type)
	}
	return types
}

func TestCreateBookingLocksFareAndConfirmsOnAccept(t *testing.T) {
	e := newEnv(t, 2*time.Second)
	resp := createBooking(t, e, "key-1")
	require.Equal(t, domain.StatusSearching, resp.Status)
	// sedan, 12 km: 130 base + 8 chargeable km at 14/km inside the inner ring
	require.Equal(t, 242.0, resp.Fare.TotalFare)

	_, err := e.svc.AcceptAssignment(context.Background(), resp.BookingID, e.driverID)
	require.NoError(t, err)

	outcome, err := e.svc.WaitOutcome(context.Background(), resp.BookingID)
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeAssigned, outcome.Kind)
	require.Equal(t, e.driverID, outcome.DriverID)

	booking, err := e.svc.GetBooking(context.Background(), resp.BookingID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusConfirmed, booking.Status)
	require.NotNil(t, booking.Driver)
	require.Equal(t, "Murugan S", booking.Driver.Name)
	require.Equal(t, "TN70AB1234", booking.Driver.VehicleNumber)

	types := eventTypes(e.repo.Events())
	require.Contains(t, types, domain.EventBookingCreated)
	require.Contains(t, types, domain.EventDriverConfirmed)
}

func TestCreateBookingIdempotentReplay(t *testing.T) {
	e := newEnv(t, 2*time.Second)
	resp := createBooking(t, e, "key-replay")

	// re-call with the same key returns the cached response, even with a
	// partial body
	cached, err := e.svc.CreateBooking(context.Background(), "key-replay", service.CreateBookingRequest{})
	require.NoError(t, err)
	require.Equal(t, resp.BookingID, cached.BookingID)
	require.Equal(t, resp.Fare.TotalFare, cached.Fare.TotalFare)
}

func TestSearchTimeoutMovesBookingToNoDrivers(t *testing.T) {
	e := newEnv(t, 50*time.Millisecond)
	resp := createBooking(t, e, "")

	outcome, err := e.svc.WaitOutcome(context.Background(), resp.BookingID)
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeTimedOut, outcome.Kind)

	booking, err := e.svc.GetBooking(context.Background(), resp.BookingID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusNoDrivers, booking.Status)
	require.Contains(t, booking.FailReason, "no driver accepted")
	require.Contains(t, eventTypes(e.repo.Events()), domain.EventSearchTimedOut)
}

func TestRetryAfterTimeoutRunsFreshSearch(t *testing.T) {
	e := newEnv(t, 50*time.Millisecond)
	resp := createBooking(t, e, "")
	_, err := e.svc.WaitOutcome(context.Background(), resp.BookingID)
	require.NoError(t, err)

	retried, err := e.svc.RetrySearch(context.Background(), resp.BookingID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusSearching, retried.Status)

	_, err = e.svc.AcceptAssignment(context.Background(), resp.BookingID, e.driverID)
	require.NoError(t, err)
	outcome, err := e.svc.WaitOutcome(context.Background(), resp.BookingID)
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeAssigned, outcome.Kind)
	require.Contains(t, eventTypes(e.repo.Events()), domain.EventSearchRetried)
}

func TestRetryRequiresNoDriversStatus(t *testing.T) {
	e := newEnv(t, 2*time.Second)
	resp := createBooking(t, e, "")

	_, err := e.svc.RetrySearch(context.Background(), resp.BookingID)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestCancelDuringSearch(t *testing.T) {
	e := newEnv(t, 2*time.Second)
	resp := createBooking(t, e, "")

	booking, err := e.svc.CancelBooking(context.Background(), resp.BookingID, "changed my mind")
	require.NoError(t, err)
	require.Equal(t, domain.StatusCancelled, booking.Status)
	require.Equal(t, "changed my mind", booking.FailReason)

	outcome, err := e.svc.WaitOutcome(context.Background(), resp.BookingID)
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeCancelled, outcome.Kind)
}

func TestCancelConfirmedBooking(t *testing.T) {
	e := newEnv(t, 2*time.Second)
	resp := createBooking(t, e, "")
	_, err := e.svc.AcceptAssignment(context.Background(), resp.BookingID, e.driverID)
	require.NoError(t, err)
	_, err = e.svc.WaitOutcome(context.Background(), resp.BookingID)
	require.NoError(t, err)

	booking, err := e.svc.CancelBooking(context.Background(), resp.BookingID, "")
	require.NoError(t, err)
	require.Equal(t, domain.StatusCancelled, booking.Status)
	require.Equal(t, "rider cancelled", booking.FailReason)

	// cancelling again is a no-op
	again, err := e.svc.CancelBooking(context.Background(), resp.BookingID, "")
	require.NoError(t, err)
	require.Equal(t, domain.StatusCancelled, again.Status)
}

func TestAcceptAssignmentFirstDriverWins(t *testing.T) {
	e := newEnv(t, 2*time.Second)
	resp := createBooking(t, e, "")

	_, err := e.svc.AcceptAssignment(context.Background(), resp.BookingID, e.driverID)
	require.NoError(t, err)

	rival := uuid.New()
	_, err = e.svc.AcceptAssignment(context.Background(), resp.BookingID, rival)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = e.svc.WaitOutcome(context.Background(), resp.BookingID)
	require.NoError(t, err)

	// the winner retrying the accept call is idempotent
	booking, err := e.svc.AcceptAssignment(context.Background(), resp.BookingID, e.driverID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusConfirmed, booking.Status)
	require.Equal(t, e.driverID, booking.Driver.DriverID)

	_, err = e.svc.AcceptAssignment(context.Background(), resp.BookingID, rival)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestAcceptAssignmentOnFinalBooking(t *testing.T) {
	e := newEnv(t, 2*time.Second)
	resp := createBooking(t, e, "")
	_, err := e.svc.CancelBooking(context.Background(), resp.BookingID, "")
	require.NoError(t, err)

	_, err = e.svc.AcceptAssignment(context.Background(), resp.BookingID, e.driverID)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestStartAndCompleteTrip(t *testing.T) {
	e := newEnv(t, 2*time.Second)
	resp := createBooking(t, e, "")
	_, err := e.svc.AcceptAssignment(context.Background(), resp.BookingID, e.driverID)
	require.NoError(t, err)
	_, err = e.svc.WaitOutcome(context.Background(), resp.BookingID)
	require.NoError(t, err)

	_, err = e.svc.StartTrip(context.Background(), resp.BookingID, uuid.New())
	require.ErrorIs(t, err, domain.ErrDriverMismatch)

	ongoing, err := e.svc.StartTrip(context.Background(), resp.BookingID, e.driverID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusOngoing, ongoing.Status)

	completed, err := e.svc.CompleteTrip(context.Background(), resp.BookingID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusCompleted, completed.Status)
	require.NotNil(t, completed.CompletedAt)

	types := eventTypes(e.repo.Events())
	require.Contains(t, types, domain.EventTripStarted)
	require.Contains(t, types, domain.EventTripCompleted)
}

func TestWaitOutcomeReconstructedFromStore(t *testing.T) {
	// A booking confirmed by another instance has no local search handle;
	// the outcome comes from the stored status.
	e := newEnv(t, 2*time.Second)
	driverID := uuid.New()
	confirmedAt := time.Date(2024, 6, 1, 9, 5, 0, 0, time.UTC)
	booking, err := e.repo.CreateBooking(context.Background(), domain.Booking{
		ID:          uuid.New(),
		RiderID:     uuid.New(),
		ServiceType: faredomain.ServiceStandard,
		CarClass:    faredomain.ClassSedan,
		Status:      domain.StatusConfirmed,
		Driver:      &domain.DriverSnapshot{DriverID: driverID, Name: "Ravi K"},
		ConfirmedAt: &confirmedAt,
		CreatedAt:   confirmedAt.Add(-time.Minute),
	})
	require.NoError(t, err)

	outcome, err := e.svc.WaitOutcome(context.Background(), booking.ID)
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeAssigned, outcome.Kind)
	require.Equal(t, driverID, outcome.DriverID)
	require.Equal(t, confirmedAt, outcome.DecidedAt)

	searching, err := e.repo.CreateBooking(context.Background(), domain.Booking{
		ID:      uuid.New(),
		RiderID: uuid.New(),
		Status:  domain.StatusSearching,
	})
	require.NoError(t, err)
	_, err = e.svc.WaitOutcome(context.Background(), searching.ID)
	require.ErrorIs(t, err, service.ErrSearchInProgress)
}

func TestPollPathAssignsWithoutPush(t *testing.T) {
	// Reader-only wiring: acceptance lands in the dispatch store and the
	// poll watcher finds it.
	fares, err := fareservice.New(fareservice.Config{
		Rates:  farerepo.NewMemoryConfig(),
		Routes: fixedRoute{distanceKm: 12, durationMin: 25},
		Zones:  zone.NewStaticRepository(zone.HosurDefaults()),
	})
	require.NoError(t, err)

	repo := repository.NewMemoryRepository()
	dispatch := repository.NewMemoryDispatchStore()
	svc, err := service.New(service.Config{
		Repo:          repo,
		Fares:         fares,
		Reader:        dispatch,
		Recorder:      dispatch,
		SearchTimeout: 2 * time.Second,
		PollInterval:  10 * time.Millisecond,
	})
	require.NoError(t, err)

	resp, err := svc.CreateBooking(context.Background(), "", service.CreateBookingRequest{
		RiderID:     uuid.New(),
		ServiceType: faredomain.ServiceStandard,
		CarClass:    faredomain.ClassSedan,
		Pickup:      hosurHub,
		Drop:        nearHub,
	})
	require.NoError(t, err)

	driverID := uuid.New()
	_, err = svc.AcceptAssignment(context.Background(), resp.BookingID, driverID)
	require.NoError(t, err)

	outcome, err := svc.WaitOutcome(context.Background(), resp.BookingID)
	require.NoError(t, err)
	require.Equal(t, domain.OutcomeAssigned, outcome.Kind)
	require.Equal(t, "poll", outcome.Source)

	booking, err := svc.GetBooking(context.Background(), resp.BookingID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusConfirmed, booking.Status)
}

func TestCreateBookingRejectsBadRequests(t *testing.T) {
	e := newEnv(t, 2*time.Second)

	_, err := e.svc.CreateBooking(context.Background(), "", service.CreateBookingRequest{
		ServiceType: faredomain.ServiceStandard,
		CarClass:    faredomain.ClassSedan,
		Pickup:      hosurHub,
		Drop:        nearHub,
	})
	require.ErrorIs(t, err, faredomain.ErrInvalidRequest)

	_, err = e.svc.CreateBooking(context.Background(), "", service.CreateBookingRequest{
		RiderID:     uuid.New(),
		ServiceType: faredomain.ServiceStandard,
		Pickup:      hosurHub,
		Drop:        nearHub,
	})
	require.ErrorIs(t, err, faredomain.ErrInvalidRequest)

	_, err = e.svc.CreateBooking(context.Background(), "", service.CreateBookingRequest{
		RiderID:     uuid.New(),
		ServiceType: "boat",
		CarClass:    faredomain.ClassSedan,
		Pickup:      hosurHub,
		Drop:        nearHub,
	})
	require.ErrorIs(t, err, faredomain.ErrUnknownService)
}
