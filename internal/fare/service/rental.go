package service

import (
	"context"
	"math"

	"github.com/A1taxi-Hosur/cust-app-sub001/internal/fare/domain"
)

// priceRental quotes a fixed hourly package. The quote is the package price;
// distance or time beyond the package is settled after the trip at the row's
// extra rate, so it never appears here.
func (s *Service) priceRental(ctx context.Context, req domain.FareRequest, class domain.CarClass) (*domain.FareBreakdown, error) {
	pkg, err := s.rates.RentalPackage(ctx, class, req.RentalPackage)
	if err != nil {
		return nil, err
	}

	return &domain.FareBreakdown{
		ServiceType:     domain.ServiceRental,
		CarClass:        class,
		Currency:        currencyINR,
		BaseFare:        pkg.Fare,
		TotalFare:       math.Round(pkg.Fare),
		SurgeMultiplier: 1,
		DistanceKm:      pkg.IncludedKm,
		DurationMin:     float64(pkg.Hours * 60),
	}, nil
}
