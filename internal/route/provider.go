// Package route estimates driving distance and duration between two points,
// via Google Maps when available and a haversine heuristic otherwise.
package route

import (
	"context"
	"errors"

	"github.com/A1taxi-Hosur/cust-app-sub001/internal/geo"
)

var ErrNoRoute = errors.New("route: no drivable route found")

// Estimate is a one-leg driving estimate.
type Estimate struct {
	DistanceKm  float64 `json:"distance_km"`
	DurationMin float64 `json:"duration_min"`
}

// Provider resolves a driving estimate between two points.
type Provider interface {
	Estimate(ctx context.Context, from, to geo.Coordinate) (Estimate, error)
}
