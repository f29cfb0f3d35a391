package zone

import (
	"context"

	"github.com/A1taxi-Hosur/cust-app-sub001/internal/geo"
)

// StaticRepository serves a fixed set of zones. Used in tests and when no
// database is configured.
type StaticRepository struct {
	zones []Zone
}

func NewStaticRepository(zones []Zone) *StaticRepository {
	return &StaticRepository{zones: zones}
}

func (r *StaticRepository) Zones(context.Context) ([]Zone, error) {
	out := make([]Zone, len(r.zones))
	copy(out, r.zones)
	return out, nil
}

// HosurDefaults returns the production ring layout around Hosur bus stand.
func HosurDefaults() []Zone {
	hub := geo.Coordinate{Lat: 12.7409, Lng: 77.8253}
	return []Zone{
		{ID: "zone-hosur-inner", Name: NameInner, Center: hub, RadiusKm: 8, Active: true},
		{ID: "zone-hosur-outer", Name: NameOuter, Center: hub, RadiusKm: 30, Active: true},
	}
}
