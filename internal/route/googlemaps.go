package route

import (
	"context"
	"fmt"

	"googlemaps.github.io/maps"

	"github.com/A1taxi-Hosur/cust-app-sub001/internal/geo"
)

// GoogleProvider resolves driving estimates through the Google Directions API.
type GoogleProvider struct {
	client *maps.Client
}

func NewGoogleProvider(apiKey string) (*GoogleProvider, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create maps client: %w", err)
	}
	return &GoogleProvider{client: client}, nil
}

func (p *GoogleProvider) Estimate(ctx context.Context, from, to geo.Coordinate) (Estimate, error) {
	req := &maps.DirectionsRequest{
		Origin:      fmt.Sprintf("%f,%f", from.Lat, from.Lng),
		Destination: fmt.Sprintf("%f,%f", to.Lat, to.Lng),
		Mode:        maps.TravelModeDriving,
	}
	routes, _, err := p.client.Directions(ctx, req)
	if err != nil {
		return Estimate{}, fmt.Errorf("google directions: %w", err)
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return Estimate{}, ErrNoRoute
	}

	var meters int
	var duration float64
	for _, leg := range routes[0].Legs {
		meters += leg.Distance.Meters
		duration += leg.Duration.Minutes()
	}
	return Estimate{
		DistanceKm:  float64(meters) / 1000.0,
		DurationMin: duration,
	}, nil
}
