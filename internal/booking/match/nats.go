package match

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/A1taxi-Hosur/cust-app-sub001/internal/booking/domain"
)

const assignmentSubjectPrefix = "booking.assignments."

// AssignmentSubject is the per-booking subject dispatch publishes to when a
// driver accepts.
func AssignmentSubject(bookingID uuid.UUID) string {
	return assignmentSubjectPrefix + bookingID.String()
}

type assignmentMessage struct {
	BookingID  string    `json:"booking_id"`
	DriverID   string    `json:"driver_id"`
	AssignedAt time.Time `json:"assigned_at"`
}

// NATSNotifier bridges assignment subjects to watcher channels. The same
// connection serves the publishing side used by the internal assign
// endpoint.
type NATSNotifier struct {
	conn   *nats.Conn
	logger *zap.Logger
}

func NewNATSNotifier(conn *nats.Conn, logger *zap.Logger) *NATSNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NATSNotifier{conn: conn, logger: logger}
}

// Subscribe delivers assignment signals for one booking until ctx ends.
// Malformed messages are dropped with a warning; the poll watcher remains as
// the safety net.
func (n *NATSNotifier) Subscribe(ctx context.Context, bookingID uuid.UUID) (<-chan domain.AssignmentSignal, error) {
	ch := make(chan domain.AssignmentSignal, 8)
	sub, err := n.conn.Subscribe(AssignmentSubject(bookingID), func(msg *nats.Msg) {
		var payload assignmentMessage
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			n.logger.Warn("malformed assignment message",
				zap.String("booking_id", bookingID.String()),
				zap.Error(err))
			return
		}
		driverID, err := uuid.Parse(payload.DriverID)
		if err != nil {
			n.logger.Warn("malformed driver id in assignment message",
				zap.String("booking_id", bookingID.String()),
				zap.String("driver_id", payload.DriverID))
			return
		}
		sig := domain.AssignmentSignal{
			BookingID:  bookingID,
			DriverID:   driverID,
			ObservedAt: payload.AssignedAt,
		}
		select {
		case ch <- sig:
		default:
			// Buffer full; an earlier signal is already pending and the
			// first one decides.
		}
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", AssignmentSubject(bookingID), err)
	}

	go func() {
		<-ctx.Done()
		if err := sub.Unsubscribe(); err != nil {
			n.logger.Debug("assignment unsubscribe failed",
				zap.String("booking_id", bookingID.String()),
				zap.Error(err))
		}
		// ch stays open: the subscription callback may still be running,
		// and receivers exit on ctx anyway.
	}()
	return ch, nil
}

// PublishAssignment fans an accepted assignment out to the subscribed
// search, if any. Nil-safe so callers can wire it optionally.
func (n *NATSNotifier) PublishAssignment(_ context.Context, sig domain.AssignmentSignal) error {
	if n == nil || n.conn == nil {
		return nil
	}
	payload, err := json.Marshal(assignmentMessage{
		BookingID:  sig.BookingID.String(),
		DriverID:   sig.DriverID.String(),
		AssignedAt: sig.ObservedAt,
	})
	if err != nil {
		return fmt.Errorf("marshal assignment: %w", err)
	}
	return n.conn.Publish(AssignmentSubject(sig.BookingID), payload)
}
