package service

import (
	"context"
	"math"

	"github.com/A1taxi-Hosur/cust-app-sub001/internal/fare/domain"
	"github.com/A1taxi-Hosur/cust-app-sub001/internal/route"
)

// Single-day trips within this distance get the flat slab price.
const outstationSlabKm = 300.0

// priceOutstation prices an intercity trip. One-day trips within the slab
// distance cost the flat slab fare. Longer or multi-day trips are billed per
// km per day plus a daily driver allowance on top of the base fare. Round
// trips arrive with the distance already doubled by the route layer, so the
// slab check sees the full out-and-back distance.
func (s *Service) priceOutstation(ctx context.Context, req domain.FareRequest, class domain.CarClass, est route.Estimate) (*domain.FareBreakdown, error) {
	rate, err := s.rates.OutstationRate(ctx, class)
	if err != nil {
		return nil, err
	}

	days := req.TripDays

	breakdown := &domain.FareBreakdown{
		ServiceType:     domain.ServiceOutstation,
		CarClass:        class,
		Currency:        currencyINR,
		SurgeMultiplier: 1,
		DistanceKm:      est.DistanceKm,
		DurationMin:     est.DurationMin,
	}

	if days == 1 && est.DistanceKm <= outstationSlabKm {
		breakdown.BaseFare = rate.SlabFare
		breakdown.TotalFare = math.Round(rate.SlabFare)
		return breakdown, nil
	}

	breakdown.BaseFare = rate.BaseFare
	breakdown.DistanceFare = rate.PerKm * est.DistanceKm * float64(days)
	breakdown.Extras = rate.DriverAllowance * float64(days)
	breakdown.TotalFare = math.Round(breakdown.BaseFare + breakdown.DistanceFare + breakdown.Extras)
	return breakdown, nil
}
