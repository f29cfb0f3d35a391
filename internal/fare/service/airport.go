package service

import (
	"context"
	"math"

	"github.com/A1taxi-Hosur/cust-app-sub001/internal/fare/domain"
	"github.com/A1taxi-Hosur/cust-app-sub001/internal/route"
)

// priceAirport quotes the flat Kempegowda airport transfer for the requested
// direction. The route estimate only informs the ETA shown to the rider; the
// price is the card's flat rate.
func (s *Service) priceAirport(ctx context.Context, req domain.FareRequest, class domain.CarClass, est route.Estimate) (*domain.FareBreakdown, error) {
	rate, err := s.rates.AirportRate(ctx, class, req.AirportDirection)
	if err != nil {
		return nil, err
	}

	return &domain.FareBreakdown{
		ServiceType:     domain.ServiceAirport,
		CarClass:        class,
		Currency:        currencyINR,
		BaseFare:        rate.Fare,
		TotalFare:       math.Round(rate.Fare),
		SurgeMultiplier: 1,
		DistanceKm:      est.DistanceKm,
		DurationMin:     est.DurationMin,
	}, nil
}
