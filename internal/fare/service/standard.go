package service

import (
	"context"
	"math"

	"github.com/A1taxi-Hosur/cust-app-sub001/internal/fare/domain"
	"github.com/A1taxi-Hosur/cust-app-sub001/internal/route"
	"github.com/A1taxi-Hosur/cust-app-sub001/internal/zone"
)

// priceStandard prices an in-town trip:
//
//	base + per-km beyond the included allowance
//	+ surge on (base + distance), expressed as the amount above 1x
//	+ deadhead for drops past the inner ring, billed at half the empty
//	  return distance to the hub
//
// floored at the class minimum fare, with the top-up recorded in Extras.
// Intermediate amounts stay unrounded; only the total is rounded, to the
// nearest rupee.
func (s *Service) priceStandard(ctx context.Context, class domain.CarClass, est route.Estimate, zc domain.ZoneContext, mult float64) (*domain.FareBreakdown, error) {
	rate, err := s.rates.StandardRate(ctx, class)
	if err != nil {
		return nil, err
	}

	chargeableKm := est.DistanceKm - rate.IncludedKm
	if chargeableKm < 0 {
		chargeableKm = 0
	}
	distanceFare := chargeableKm * rate.PerKm
	surgeAmount := (rate.BaseFare + distanceFare) * (mult - 1)

	var deadhead float64
	if zc.Classification == zone.BetweenInnerAndOuter {
		deadhead = zc.HubDistanceKm / 2 * rate.PerKm
	}

	subtotal := rate.BaseFare + distanceFare + surgeAmount + deadhead
	var extras float64
	if subtotal < rate.MinFare {
		extras = rate.MinFare - subtotal
		subtotal = rate.MinFare
	}

	return &domain.FareBreakdown{
		ServiceType:     domain.ServiceStandard,
		CarClass:        class,
		Currency:        currencyINR,
		BaseFare:        rate.BaseFare,
		DistanceFare:    distanceFare,
		SurgeAmount:     surgeAmount,
		DeadheadCharge:  deadhead,
		Extras:          extras,
		TotalFare:       math.Round(subtotal),
		SurgeMultiplier: mult,
		DistanceKm:      est.DistanceKm,
		DurationMin:     est.DurationMin,
	}, nil
}
