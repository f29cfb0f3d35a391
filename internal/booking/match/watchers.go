package match

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/A1taxi-Hosur/cust-app-sub001/internal/booking/domain"
)

const (
	defaultResubscribeBackoff = time.Second
	maxBackoffShift           = 5

	defaultPollInterval = 2 * time.Second
)

// PushWatcher reports signals streamed by an assignment notifier. A dropped
// stream is resubscribed with shifted backoff; the poll watcher covers the
// gap in the meantime.
type PushWatcher struct {
	notifier domain.AssignmentNotifier
	backoff  time.Duration
	logger   *zap.Logger
}

func NewPushWatcher(notifier domain.AssignmentNotifier, logger *zap.Logger) *PushWatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PushWatcher{notifier: notifier, backoff: defaultResubscribeBackoff, logger: logger}
}

func (w *PushWatcher) Name() string { return "push" }

func (w *PushWatcher) Watch(ctx context.Context, bookingID uuid.UUID, report func(domain.AssignmentSignal)) {
	attempt := 0
	for ctx.Err() == nil {
		ch, err := w.notifier.Subscribe(ctx, bookingID)
		if err != nil {
			w.logger.Warn("assignment subscribe failed",
				zap.String("booking_id", bookingID.String()),
				zap.Int("attempt", attempt),
				zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.backoff << attempt):
			}
			if attempt < maxBackoffShift {
				attempt++
			}
			continue
		}
		attempt = 0
		if !w.consume(ctx, ch, report) {
			return
		}
	}
}

// consume drains one subscription. It returns true when the stream closed
// and a resubscribe is wanted, false when ctx ended.
func (w *PushWatcher) consume(ctx context.Context, ch <-chan domain.AssignmentSignal, report func(domain.AssignmentSignal)) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case sig, ok := <-ch:
			if !ok {
				return true
			}
			if sig.DriverID == uuid.Nil {
				continue
			}
			sig.Source = w.Name()
			report(sig)
		}
	}
}

// PollWatcher reads the dispatch store on a fixed cadence. Read errors are
// logged and retried on the next tick; the deadline timer bounds how long
// that can go on.
type PollWatcher struct {
	reader   domain.AssignmentReader
	interval time.Duration
	logger   *zap.Logger
}

func NewPollWatcher(reader domain.AssignmentReader, interval time.Duration, logger *zap.Logger) *PollWatcher {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PollWatcher{reader: reader, interval: interval, logger: logger}
}

func (w *PollWatcher) Name() string { return "poll" }

func (w *PollWatcher) Watch(ctx context.Context, bookingID uuid.UUID, report func(domain.AssignmentSignal)) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sig, found, err := w.reader.Assignment(ctx, bookingID)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				w.logger.Debug("assignment poll failed",
					zap.String("booking_id", bookingID.String()),
					zap.Error(err))
				continue
			}
			if !found || sig.DriverID == uuid.Nil {
				continue
			}
			sig.Source = w.Name()
			report(sig)
		}
	}
}
