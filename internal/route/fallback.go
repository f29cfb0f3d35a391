package route

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/A1taxi-Hosur/cust-app-sub001/internal/geo"
)

const (
	// Straight-line to road-network correction observed on Hosur-area trips.
	defaultRoadFactor = 1.3
	// Mixed town and highway driving.
	defaultAvgSpeedKmh = 30.0
)

// FallbackProvider estimates trips from straight-line distance when the
// routing API is unavailable or unconfigured.
type FallbackProvider struct {
	roadFactor  float64
	avgSpeedKmh float64
}

func NewFallbackProvider() *FallbackProvider {
	return &FallbackProvider{roadFactor: defaultRoadFactor, avgSpeedKmh: defaultAvgSpeedKmh}
}

func (p *FallbackProvider) Estimate(_ context.Context, from, to geo.Coordinate) (Estimate, error) {
	distKm := geo.HaversineKm(from, to) * p.roadFactor
	return Estimate{
		DistanceKm:  distKm,
		DurationMin: math.Ceil(distKm / p.avgSpeedKmh * 60),
	}, nil
}

// ChainProvider tries each provider in order and returns the first success.
// Typical wiring is Google first with the haversine fallback last.
type ChainProvider struct {
	providers []Provider
	logger    *zap.Logger
}

func NewChainProvider(logger *zap.Logger, providers ...Provider) *ChainProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChainProvider{providers: providers, logger: logger}
}

func (p *ChainProvider) Estimate(ctx context.Context, from, to geo.Coordinate) (Estimate, error) {
	var lastErr error = ErrNoRoute
	for i, provider := range p.providers {
		est, err := provider.Estimate(ctx, from, to)
		if err == nil {
			return est, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		if i < len(p.providers)-1 {
			p.logger.Warn("route provider failed, trying next", zap.Error(err))
		}
	}
	return Estimate{}, lastErr
}
