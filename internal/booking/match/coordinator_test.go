package match_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/A1taxi-Hosur/cust-app-sub001/internal/booking/domain"
	"github.com/A1taxi-Hosur/cust-app-sub001/internal/booking/match"
)

type watcherFunc struct {
	name string
	fn   func(ctx context.Context, bookingID uuid.UUID, report func(domain.AssignmentSignal))
}

func (w watcherFunc) Name() string { return w.name }

func (w watcherFunc) Watch(ctx context.Context, bookingID uuid.UUID, report func(domain.AssignmentSignal)) {
	w.fn(ctx, bookingID, report)
}

// reportAfter emits one driver signal after a delay, unless cancelled first.
func reportAfter(name string, delay time.Duration, driverID uuid.UUID) match.Watcher {
	return watcherFunc{name: name, fn: func(ctx context.Context, bookingID uuid.UUID, report func(domain.AssignmentSignal)) {
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		report(domain.AssignmentSignal{BookingID: bookingID, DriverID: driverID, Source: name, ObservedAt: time.Now()})
	}}
}

// silentUntilCancelled never reports and closes stopped once its ctx ends.
func silentUntilCancelled(name string, stopped chan struct{}) match.Watcher {
	return watcherFunc{name: name, fn: func(ctx context.Context, _ uuid.UUID, _ func(domain.AssignmentSignal)) {
		<-ctx.Done()
		close(stopped)
	}}
}

type stubDirectory struct {
	driver domain.DriverSnapshot
	err    error
}

func (d stubDirectory) Driver(context.Context, uuid.UUID) (domain.DriverSnapshot, error) {
	return d.driver, d.err
}

func newCoordinator(t *testing.T, cfg match.Config) *match.Coordinator {
	t.Helper()
	if cfg.BookingID == uuid.Nil {
		cfg.BookingID = uuid.New()
	}
	c, err := match.New(cfg)
	require.NoError(t, err)
	return c
}

func waitSettled(t *testing.T, c *match.Coordinator) domain.MatchOutcome {
	t.Helper()
	select {
	case <-c.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("search did not settle")
	}
	outcome, ok := c.Outcome()
	require.True(t, ok)
	return outcome
}

func TestFirstReportWins(t *testing.T) {
	fast := uuid.New()
	slow := uuid.New()
	c := newCoordinator(t, match.Config{
		Watchers: []match.Watcher{
			reportAfter("push", 10*time.Millisecond, fast),
			reportAfter("poll", 80*time.Millisecond, slow),
		},
		Timeout: time.Second,
	})
	require.NoError(t, c.Start(context.Background()))

	outcome := waitSettled(t, c)
	require.Equal(t, domain.OutcomeAssigned, outcome.Kind)
	require.Equal(t, fast, outcome.DriverID)
	require.Equal(t, "push", outcome.Source)

	// Let the slow watcher fire; the settled outcome must not move.
	time.Sleep(120 * time.Millisecond)
	again, ok := c.Outcome()
	require.True(t, ok)
	require.Equal(t, fast, again.DriverID)
}

func TestConcurrentReportsSettleOnce(t *testing.T) {
	const reporters = 8
	drivers := make(map[uuid.UUID]bool, reporters)
	watchers := make([]match.Watcher, 0, reporters)
	gate := make(chan struct{})
	var wg sync.WaitGroup

	for i := 0; i < reporters; i++ {
		driverID := uuid.New()
		drivers[driverID] = true
		wg.Add(1)
		watchers = append(watchers, watcherFunc{name: "push", fn: func(ctx context.Context, bookingID uuid.UUID, report func(domain.AssignmentSignal)) {
			defer wg.Done()
			<-gate
			report(domain.AssignmentSignal{BookingID: bookingID, DriverID: driverID, Source: "push"})
		}})
	}

	c := newCoordinator(t, match.Config{Watchers: watchers, Timeout: time.Second})
	require.NoError(t, c.Start(context.Background()))
	close(gate)
	wg.Wait()

	outcome := waitSettled(t, c)
	require.Equal(t, domain.OutcomeAssigned, outcome.Kind)
	require.True(t, drivers[outcome.DriverID], "winner must be one of the reported drivers")
}

func TestTimeoutSettlesAndStopsWatchers(t *testing.T) {
	pushStopped := make(chan struct{})
	pollStopped := make(chan struct{})
	c := newCoordinator(t, match.Config{
		Watchers: []match.Watcher{
			silentUntilCancelled("push", pushStopped),
			silentUntilCancelled("poll", pollStopped),
		},
		Timeout: 50 * time.Millisecond,
	})
	require.NoError(t, c.Start(context.Background()))

	outcome := waitSettled(t, c)
	require.Equal(t, domain.OutcomeTimedOut, outcome.Kind)
	require.Contains(t, outcome.Reason, "no driver accepted")

	for name, stopped := range map[string]chan struct{}{"push": pushStopped, "poll": pollStopped} {
		select {
		case <-stopped:
		case <-time.After(time.Second):
			t.Fatalf("%s watcher still running after settle", name)
		}
	}
}

func TestCancelDuringSearch(t *testing.T) {
	stopped := make(chan struct{})
	c := newCoordinator(t, match.Config{
		Watchers: []match.Watcher{silentUntilCancelled("push", stopped)},
		Timeout:  time.Second,
	})
	require.NoError(t, c.Start(context.Background()))

	require.True(t, c.Cancel("rider cancelled"))
	outcome := waitSettled(t, c)
	require.Equal(t, domain.OutcomeCancelled, outcome.Kind)
	require.Equal(t, "rider cancelled", outcome.Reason)

	require.False(t, c.Cancel("rider cancelled again"), "second cancel must not re-settle")
}

func TestCancelAfterAssignmentIsRejected(t *testing.T) {
	driverID := uuid.New()
	c := newCoordinator(t, match.Config{
		Watchers: []match.Watcher{reportAfter("push", time.Millisecond, driverID)},
		Timeout:  time.Second,
	})
	require.NoError(t, c.Start(context.Background()))
	waitSettled(t, c)

	require.False(t, c.Cancel("too late"))
	outcome, ok := c.Outcome()
	require.True(t, ok)
	require.Equal(t, domain.OutcomeAssigned, outcome.Kind)
	require.Equal(t, driverID, outcome.DriverID)
}

func TestContextCancellationSettles(t *testing.T) {
	stopped := make(chan struct{})
	c := newCoordinator(t, match.Config{
		Watchers: []match.Watcher{silentUntilCancelled("push", stopped)},
		Timeout:  time.Second,
	})
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, c.Start(ctx))
	cancel()

	outcome := waitSettled(t, c)
	require.Equal(t, domain.OutcomeCancelled, outcome.Kind)
	require.Equal(t, "search context cancelled", outcome.Reason)
}

func TestStartTwiceRejected(t *testing.T) {
	c := newCoordinator(t, match.Config{
		Watchers: []match.Watcher{reportAfter("push", time.Millisecond, uuid.New())},
		Timeout:  time.Second,
	})
	require.NoError(t, c.Start(context.Background()))
	require.ErrorIs(t, c.Start(context.Background()), match.ErrAlreadyStarted)
}

func TestWinnerCarriesDriverSnapshot(t *testing.T) {
	driverID := uuid.New()
	snapshot := domain.DriverSnapshot{
		DriverID:      driverID,
		Name:          "Murugan S",
		Phone:         "+919876543210",
		VehicleModel:  "Swift Dzire",
		VehicleNumber: "TN70AB1234",
		Rating:        4.8,
	}
	c := newCoordinator(t, match.Config{
		Watchers:  []match.Watcher{reportAfter("push", time.Millisecond, driverID)},
		Directory: stubDirectory{driver: snapshot},
		Timeout:   time.Second,
	})
	require.NoError(t, c.Start(context.Background()))

	outcome := waitSettled(t, c)
	require.Equal(t, domain.OutcomeAssigned, outcome.Kind)
	require.NotNil(t, outcome.Driver)
	require.Equal(t, snapshot, *outcome.Driver)
}

func TestDirectoryFailureKeepsAssignment(t *testing.T) {
	driverID := uuid.New()
	c := newCoordinator(t, match.Config{
		Watchers:  []match.Watcher{reportAfter("push", time.Millisecond, driverID)},
		Directory: stubDirectory{err: errors.New("directory unavailable")},
		Timeout:   time.Second,
	})
	require.NoError(t, c.Start(context.Background()))

	outcome := waitSettled(t, c)
	require.Equal(t, domain.OutcomeAssigned, outcome.Kind)
	require.Equal(t, driverID, outcome.DriverID)
	require.Nil(t, outcome.Driver, "assignment stands even when the profile fetch fails")
}

type scriptedReader struct {
	mu      sync.Mutex
	calls   int
	failFor int
	sig     domain.AssignmentSignal
}

func (r *scriptedReader) Assignment(context.Context, uuid.UUID) (domain.AssignmentSignal, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.calls <= r.failFor {
		return domain.AssignmentSignal{}, false, errors.New("dispatch store flaking")
	}
	return r.sig, true, nil
}

func (r *scriptedReader) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func TestPollWatcherRetriesTransientErrors(t *testing.T) {
	driverID := uuid.New()
	reader := &scriptedReader{failFor: 2, sig: domain.AssignmentSignal{DriverID: driverID}}
	c := newCoordinator(t, match.Config{
		Watchers: []match.Watcher{match.NewPollWatcher(reader, 10*time.Millisecond, nil)},
		Timeout:  2 * time.Second,
	})
	require.NoError(t, c.Start(context.Background()))

	outcome := waitSettled(t, c)
	require.Equal(t, domain.OutcomeAssigned, outcome.Kind)
	require.Equal(t, driverID, outcome.DriverID)
	require.Equal(t, "poll", outcome.Source)
	require.GreaterOrEqual(t, reader.callCount(), 3, "the failing polls must be retried")
}

func TestPollWatcherStopsBeforeFirstTickOnCancel(t *testing.T) {
	reader := &scriptedReader{sig: domain.AssignmentSignal{DriverID: uuid.New()}}
	w := match.NewPollWatcher(reader, 80*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Watch(ctx, uuid.New(), func(domain.AssignmentSignal) {})
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("poll watcher did not stop on cancel")
	}
	require.Zero(t, reader.callCount(), "cancelled before the first tick, so no reads")
}

type scriptedNotifier struct {
	mu    sync.Mutex
	calls int
	chans []chan domain.AssignmentSignal
}

func (n *scriptedNotifier) Subscribe(context.Context, uuid.UUID) (<-chan domain.AssignmentSignal, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	ch := n.chans[n.calls]
	if n.calls < len(n.chans)-1 {
		n.calls++
	}
	return ch, nil
}

func TestPushWatcherResubscribesAfterStreamClose(t *testing.T) {
	driverID := uuid.New()
	dropped := make(chan domain.AssignmentSignal)
	close(dropped)
	live := make(chan domain.AssignmentSignal, 1)
	live <- domain.AssignmentSignal{DriverID: driverID}

	notifier := &scriptedNotifier{chans: []chan domain.AssignmentSignal{dropped, live}}
	c := newCoordinator(t, match.Config{
		Watchers: []match.Watcher{match.NewPushWatcher(notifier, nil)},
		Timeout:  2 * time.Second,
	})
	require.NoError(t, c.Start(context.Background()))

	outcome := waitSettled(t, c)
	require.Equal(t, domain.OutcomeAssigned, outcome.Kind)
	require.Equal(t, driverID, outcome.DriverID)
	require.Equal(t, "push", outcome.Source)
}
