// Package match races independent assignment watchers against a search
// deadline and settles each booking on exactly one outcome.
package match

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/A1taxi-Hosur/cust-app-sub001/internal/booking/domain"
)

// DefaultSearchTimeout bounds how long a booking stays in driver search.
const DefaultSearchTimeout = 120 * time.Second

const defaultSnapshotTimeout = 5 * time.Second

var ErrAlreadyStarted = errors.New("match: coordinator already started")

// Watcher observes one signal source for a booking's assignment and calls
// report for every signal it sees. Watch returns when ctx is cancelled.
type Watcher interface {
	Name() string
	Watch(ctx context.Context, bookingID uuid.UUID, report func(domain.AssignmentSignal))
}

// Config wires a Coordinator for one booking's search.
type Config struct {
	BookingID uuid.UUID
	Watchers  []Watcher
	// Directory resolves the winning driver's profile. Optional; without it
	// the outcome carries only the driver ID.
	Directory domain.DriverDirectory
	Timeout   time.Duration
	// SnapshotTimeout bounds the post-assignment driver lookup.
	SnapshotTimeout time.Duration
	Clock           domain.Clock
	Logger          *zap.Logger
}

// Coordinator runs one driver search. Watchers, the deadline timer and
// cancellation all funnel into a single claim guarded by one mutex, so no
// matter how many sources report, the booking settles exactly once. A
// Coordinator is single use; retries build a fresh one.
type Coordinator struct {
	bookingID       uuid.UUID
	watchers        []Watcher
	directory       domain.DriverDirectory
	timeout         time.Duration
	snapshotTimeout time.Duration
	clock           domain.Clock
	logger          *zap.Logger

	mu          sync.Mutex
	started     bool
	claimed     bool
	startedAt   time.Time
	outcome     *domain.MatchOutcome
	done        chan struct{}
	cancelWatch context.CancelFunc
	timer       *time.Timer
}

func New(cfg Config) (*Coordinator, error) {
	if cfg.BookingID == uuid.Nil {
		return nil, errors.New("match: booking id is required")
	}
	if len(cfg.Watchers) == 0 {
		return nil, errors.New("match: at least one watcher is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultSearchTimeout
	}
	if cfg.SnapshotTimeout <= 0 {
		cfg.SnapshotTimeout = defaultSnapshotTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = domain.SystemClock{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Coordinator{
		bookingID:       cfg.BookingID,
		watchers:        cfg.Watchers,
		directory:       cfg.Directory,
		timeout:         cfg.Timeout,
		snapshotTimeout: cfg.SnapshotTimeout,
		clock:           cfg.Clock,
		logger:          cfg.Logger,
		done:            make(chan struct{}),
	}, nil
}

// Start launches the watchers and the deadline timer. Cancelling ctx settles
// the search as CANCELLED if no outcome has been claimed yet.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.started = true
	if c.claimed {
		// Cancelled before Start; the settled outcome stands.
		c.mu.Unlock()
		return nil
	}
	c.startedAt = c.clock.Now()
	watchCtx, cancel := context.WithCancel(ctx)
	c.cancelWatch = cancel
	c.timer = time.AfterFunc(c.timeout, c.onTimeout)
	c.mu.Unlock()

	activeSearches.Inc()
	for _, w := range c.watchers {
		go w.Watch(watchCtx, c.bookingID, c.report)
	}
	go func() {
		select {
		case <-ctx.Done():
			c.settle(domain.OutcomeCancelled, "search context cancelled")
		case <-c.done:
		}
	}()
	return nil
}

// Done is closed once the search has settled.
func (c *Coordinator) Done() <-chan struct{} { return c.done }

// Outcome returns the settled outcome, if any.
func (c *Coordinator) Outcome() (domain.MatchOutcome, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.outcome == nil {
		return domain.MatchOutcome{}, false
	}
	return *c.outcome, true
}

// Cancel settles the search as CANCELLED. It reports false when some outcome
// was already claimed, in which case that outcome stands.
func (c *Coordinator) Cancel(reason string) bool {
	return c.settle(domain.OutcomeCancelled, reason)
}

// report is the single decision point shared by every watcher. The first
// signal claims the outcome; everything after it is counted and dropped. The
// driver profile fetch happens outside the lock so a slow directory cannot
// stall the claim.
func (c *Coordinator) report(sig domain.AssignmentSignal) {
	if sig.DriverID == uuid.Nil {
		watcherReports.WithLabelValues(sig.Source, "invalid").Inc()
		return
	}

	c.mu.Lock()
	if c.claimed {
		c.mu.Unlock()
		watcherReports.WithLabelValues(sig.Source, "ignored").Inc()
		return
	}
	c.claimed = true
	c.stopLocked()
	c.mu.Unlock()
	watcherReports.WithLabelValues(sig.Source, "accepted").Inc()

	outcome := domain.MatchOutcome{
		BookingID: c.bookingID,
		Kind:      domain.OutcomeAssigned,
		DriverID:  sig.DriverID,
		Source:    sig.Source,
		DecidedAt: c.clock.Now(),
	}
	if c.directory != nil {
		snapCtx, cancel := context.WithTimeout(context.Background(), c.snapshotTimeout)
		driver, err := c.directory.Driver(snapCtx, sig.DriverID)
		cancel()
		if err != nil {
			c.logger.Warn("driver lookup failed after assignment",
				zap.String("booking_id", c.bookingID.String()),
				zap.String("driver_id", sig.DriverID.String()),
				zap.Error(err))
		} else {
			outcome.Driver = &driver
		}
	}

	c.mu.Lock()
	c.outcome = &outcome
	close(c.done)
	c.mu.Unlock()
	c.finish(outcome)
}

// settle claims a driverless outcome. It does no I/O and closes done under
// the lock, so timeout and cancel settle atomically.
func (c *Coordinator) settle(kind domain.OutcomeKind, reason string) bool {
	c.mu.Lock()
	if c.claimed {
		c.mu.Unlock()
		return false
	}
	c.claimed = true
	c.stopLocked()
	outcome := domain.MatchOutcome{
		BookingID: c.bookingID,
		Kind:      kind,
		Reason:    reason,
		DecidedAt: c.clock.Now(),
	}
	c.outcome = &outcome
	close(c.done)
	wasStarted := c.started
	c.mu.Unlock()

	if wasStarted {
		c.finish(outcome)
	}
	return true
}

func (c *Coordinator) onTimeout() {
	c.settle(domain.OutcomeTimedOut, fmt.Sprintf("no driver accepted within %s", c.timeout))
}

func (c *Coordinator) stopLocked() {
	if c.timer != nil {
		c.timer.Stop()
	}
	if c.cancelWatch != nil {
		c.cancelWatch()
	}
}

func (c *Coordinator) finish(outcome domain.MatchOutcome) {
	activeSearches.Dec()
	outcomesTotal.WithLabelValues(string(outcome.Kind)).Inc()
	if outcome.Kind == domain.OutcomeAssigned {
		timeToAssign.Observe(outcome.DecidedAt.Sub(c.startedAt).Seconds())
	}
	c.logger.Info("driver search settled",
		zap.String("booking_id", c.bookingID.String()),
		zap.String("outcome", string(outcome.Kind)),
		zap.String("source", outcome.Source))
}
