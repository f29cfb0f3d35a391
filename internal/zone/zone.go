// Package zone models the concentric service-area rings around the Hosur hub
// and classifies drop-off points against them.
package zone

import (
	"context"

	"github.com/A1taxi-Hosur/cust-app-sub001/internal/geo"
)

// Ring names as stored in the zones table.
const (
	NameInner = "inner"
	NameOuter = "outer"
)

// Zone is one circular ring of the service area.
type Zone struct {
	ID       string         `json:"id"`
	Name     string         `json:"name"`
	Center   geo.Coordinate `json:"center"`
	RadiusKm float64        `json:"radius_km"`
	Active   bool           `json:"active"`
}

// Classification places a point relative to the configured rings.
type Classification string

const (
	// WithinInner means the point falls inside the inner ring. No deadhead
	// surcharge applies.
	WithinInner Classification = "WITHIN_INNER"
	// BetweenInnerAndOuter means the point falls between the two rings.
	// Drivers return empty to the hub, so a deadhead surcharge applies.
	BetweenInnerAndOuter Classification = "BETWEEN_INNER_AND_OUTER"
	// OutsideOuter means the point falls beyond the outer ring. Trips are
	// still priced but flagged for dispatcher review.
	OutsideOuter Classification = "OUTSIDE_OUTER"
	// Unclassified means the rings could not be loaded or are not
	// configured. Trips price without a deadhead surcharge and are flagged
	// for dispatcher review.
	Unclassified Classification = "UNCLASSIFIED"
)

// Repository loads the active service-area rings.
type Repository interface {
	Zones(ctx context.Context) ([]Zone, error)
}
