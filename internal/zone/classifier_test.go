package zone_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/A1taxi-Hosur/cust-app-sub001/internal/geo"
	"github.com/A1taxi-Hosur/cust-app-sub001/internal/zone"
)

func TestClassify(t *testing.T) {
	zones := zone.HosurDefaults()

	cases := []struct {
		name string
		p    geo.Coordinate
		want zone.Classification
	}{
		{"hub itself", geo.Coordinate{Lat: 12.7409, Lng: 77.8253}, zone.WithinInner},
		// ~0.05 deg latitude is ~5.5 km.
		{"edge of town", geo.Coordinate{Lat: 12.7909, Lng: 77.8253}, zone.WithinInner},
		// ~0.18 deg is ~20 km, between the 8 km and 30 km rings.
		{"outskirts", geo.Coordinate{Lat: 12.9209, Lng: 77.8253}, zone.BetweenInnerAndOuter},
		// Bengaluru city center is ~35 km from the hub.
		{"bengaluru", geo.Coordinate{Lat: 12.9716, Lng: 77.5946}, zone.OutsideOuter},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, zone.Classify(tc.p, zones))
		})
	}
}

func TestClassifyIgnoresInactiveZones(t *testing.T) {
	zones := zone.HosurDefaults()
	// A huge inactive ring must not swallow everything.
	zones = append(zones, zone.Zone{
		ID: "zone-test-wide", Name: zone.NameOuter,
		Center: geo.Coordinate{Lat: 12.7409, Lng: 77.8253}, RadiusKm: 500, Active: false,
	})

	require.Equal(t, zone.OutsideOuter, zone.Classify(geo.Coordinate{Lat: 12.9716, Lng: 77.5946}, zones))
}

func TestClassifyMissingRings(t *testing.T) {
	hub := geo.Coordinate{Lat: 12.7409, Lng: 77.8253}
	require.Equal(t, zone.Unclassified, zone.Classify(hub, nil))

	onlyInner := []zone.Zone{zone.HosurDefaults()[0]}
	require.Equal(t, zone.Unclassified, zone.Classify(hub, onlyInner))

	_, ok := zone.Hub(onlyInner)
	require.False(t, ok)
}

func TestHub(t *testing.T) {
	hub, ok := zone.Hub(zone.HosurDefaults())
	require.True(t, ok)
	require.Equal(t, geo.Coordinate{Lat: 12.7409, Lng: 77.8253}, hub)
}
