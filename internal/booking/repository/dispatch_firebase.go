package repository

import (
	"context"
	"fmt"
	"time"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/db"
	"github.com/google/uuid"
	"google.golang.org/api/option"

	"github.com/A1taxi-Hosur/cust-app-sub001/internal/booking/domain"
)

// FirebaseDispatchReader polls the Realtime Database node the driver app
// writes on acceptance. Used when the fleet still runs on the legacy
// Firebase dispatch path instead of Postgres.
type FirebaseDispatchReader struct {
	db *db.Client
}

// NewFirebaseDispatchReader dials the Realtime Database with a service
// account credentials file.
func NewFirebaseDispatchReader(ctx context.Context, databaseURL, credentialsFile string) (*FirebaseDispatchReader, error) {
	app, err := firebase.NewApp(ctx, &firebase.Config{DatabaseURL: databaseURL}, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	client, err := app.Database(ctx)
	if err != nil {
		return nil, fmt.Errorf("init realtime database client: %w", err)
	}
	return &FirebaseDispatchReader{db: client}, nil
}

// firebaseAssignment mirrors dispatch/assignments/<bookingID> as the driver
// app writes it.
type firebaseAssignment struct {
	DriverID   string `json:"driver_id"`
	AssignedAt int64  `json:"assigned_at"`
}

// Assignment reads the node once. An absent node is not an error; the poll
// watcher just tries again on the next tick.
func (r *FirebaseDispatchReader) Assignment(ctx context.Context, bookingID uuid.UUID) (domain.AssignmentSignal, bool, error) {
	ref := r.db.NewRef("dispatch/assignments/" + bookingID.String())
	var node firebaseAssignment
	if err := ref.Get(ctx, &node); err != nil {
		return domain.AssignmentSignal{}, false, fmt.Errorf("read assignment node: %w", err)
	}
	if node.DriverID == "" {
		return domain.AssignmentSignal{}, false, nil
	}
	driverID, err := uuid.Parse(node.DriverID)
	if err != nil {
		return domain.AssignmentSignal{}, false, fmt.Errorf("parse driver id %q: %w", node.DriverID, err)
	}
	return domain.AssignmentSignal{
		BookingID:  bookingID,
		DriverID:   driverID,
		ObservedAt: time.UnixMilli(node.AssignedAt).UTC(),
	}, true, nil
}
