// Package service implements fare estimation for all A1 Taxi service types.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/A1taxi-Hosur/cust-app-sub001/internal/fare/domain"
	"github.com/A1taxi-Hosur/cust-app-sub001/internal/geo"
	"github.com/A1taxi-Hosur/cust-app-sub001/internal/route"
	"github.com/A1taxi-Hosur/cust-app-sub001/internal/zone"
)

// QuoteResponse is a priced quote for one request, covering every car class
// offered for the service type unless the request pinned one.
type QuoteResponse struct {
	ServiceType domain.ServiceType    `json:"service_type"`
	Estimate    route.Estimate        `json:"estimate"`
	Zone        domain.ZoneContext    `json:"zone"`
	Quotes      []domain.VehicleQuote `json:"quotes"`
	QuotedAt    time.Time             `json:"quoted_at"`
}

// Config wires a fare Service. Rates, Routes and Zones are required; the
// rest default to no-ops.
type Config struct {
	Rates  domain.ConfigRepository
	Routes route.Provider
	Zones  zone.Repository
	Surge  domain.SurgeProvider
	Logger *zap.Logger

	// Now is overridable in tests.
	Now func() time.Time
}

// Service prices trips against the rate card.
type Service struct {
	rates  domain.ConfigRepository
	routes route.Provider
	zones  zone.Repository
	surge  domain.SurgeProvider
	logger *zap.Logger
	tracer trace.Tracer
	now    func() time.Time
}

func New(cfg Config) (*Service, error) {
	if cfg.Rates == nil {
		return nil, errors.New("fare service: rates repository is required")
	}
	if cfg.Routes == nil {
		return nil, errors.New("fare service: route provider is required")
	}
	if cfg.Zones == nil {
		return nil, errors.New("fare service: zone repository is required")
	}
	if cfg.Surge == nil {
		cfg.Surge = StaticSurge{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		rates:  cfg.Rates,
		routes: cfg.Routes,
		zones:  cfg.Zones,
		surge:  cfg.Surge,
		logger: cfg.Logger,
		tracer: otel.Tracer("fare.service"),
		now:    cfg.Now,
	}, nil
}

// Quote prices the request for every offered car class, or for the single
// class the request pinned. The route and zone lookups happen once per
// request and are shared across classes. A class whose rate card row is
// missing is reported unavailable instead of failing the batch.
func (s *Service) Quote(ctx context.Context, req domain.FareRequest) (*QuoteResponse, error) {
	ctx, span := s.tracer.Start(ctx, "fare.quote")
	defer span.End()

	start := s.now()
	req = req.Normalized(start)
	if err := req.Validate(); err != nil {
		quotesTotal.WithLabelValues(string(req.ServiceType), "invalid").Inc()
		return nil, err
	}

	est, zc, err := s.tripContext(ctx, req)
	if err != nil {
		quotesTotal.WithLabelValues(string(req.ServiceType), "error").Inc()
		return nil, err
	}
	mult := s.multiplier(ctx, req)

	classes, err := s.classesFor(ctx, req)
	if err != nil {
		quotesTotal.WithLabelValues(string(req.ServiceType), "error").Inc()
		return nil, err
	}

	quotes := make([]domain.VehicleQuote, 0, len(classes))
	for _, class := range classes {
		breakdown, err := s.price(ctx, req, class, est, zc, mult)
		switch {
		case err == nil:
			quotes = append(quotes, domain.VehicleQuote{CarClass: class, Breakdown: breakdown})
		case errors.Is(err, domain.ErrNoFareConfig):
			s.logger.Warn("car class missing from rate card",
				zap.String("service_type", string(req.ServiceType)),
				zap.String("car_class", string(class)))
			quotes = append(quotes, domain.VehicleQuote{CarClass: class, Unavailable: "no fare configured"})
		default:
			quotesTotal.WithLabelValues(string(req.ServiceType), "error").Inc()
			return nil, fmt.Errorf("price %s %s: %w", req.ServiceType, class, err)
		}
	}

	quotesTotal.WithLabelValues(string(req.ServiceType), "ok").Inc()
	quoteDuration.Observe(s.now().Sub(start).Seconds())
	return &QuoteResponse{
		ServiceType: req.ServiceType,
		Estimate:    est,
		Zone:        zc,
		Quotes:      quotes,
		QuotedAt:    req.RequestedAt,
	}, nil
}

// Price computes a single class's fare with the trip context resolved by the
// caller. Booking confirmation re-prices through here so the fare locked in
// matches the quote shown.
func (s *Service) Price(ctx context.Context, req domain.FareRequest, class domain.CarClass) (*domain.FareBreakdown, error) {
	ctx, span := s.tracer.Start(ctx, "fare.price")
	defer span.End()

	req = req.Normalized(s.now())
	if err := req.Validate(); err != nil {
		return nil, err
	}
	est, zc, err := s.tripContext(ctx, req)
	if err != nil {
		return nil, err
	}
	return s.price(ctx, req, class, est, zc, s.multiplier(ctx, req))
}

func (s *Service) price(ctx context.Context, req domain.FareRequest, class domain.CarClass, est route.Estimate, zc domain.ZoneContext, mult float64) (*domain.FareBreakdown, error) {
	switch req.ServiceType {
	case domain.ServiceStandard:
		return s.priceStandard(ctx, class, est, zc, mult)
	case domain.ServiceOutstation:
		return s.priceOutstation(ctx, req, class, est)
	case domain.ServiceRental:
		return s.priceRental(ctx, req, class)
	case domain.ServiceAirport:
		return s.priceAirport(ctx, req, class, est)
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownService, req.ServiceType)
	}
}

// tripContext resolves the driving estimate and the drop-off zone once per
// request. Rental packages carry no drop-off, so they classify the pickup
// instead and skip routing.
func (s *Service) tripContext(ctx context.Context, req domain.FareRequest) (route.Estimate, domain.ZoneContext, error) {
	var est route.Estimate
	zonePoint := req.Pickup
	if req.Drop.Valid() {
		zonePoint = req.Drop
		var err error
		est, err = s.routes.Estimate(ctx, req.Pickup, req.Drop)
		if err != nil {
			return route.Estimate{}, domain.ZoneContext{}, fmt.Errorf("estimate route: %w", err)
		}
		// Round trips are measured as the full out-and-back distance here;
		// pricing never re-derives it.
		if req.RoundTrip {
			est.DistanceKm *= 2
			est.DurationMin *= 2
		}
	}
	return est, s.zoneContext(ctx, zonePoint), nil
}

// zoneContext classifies the trip's zone point. An unreachable or
// unconfigured service area never blocks a quote: the trip prices without a
// deadhead surcharge and carries the Unclassified flag for dispatch.
func (s *Service) zoneContext(ctx context.Context, p geo.Coordinate) domain.ZoneContext {
	unclassified := domain.ZoneContext{Classification: zone.Unclassified, NeedsReview: true}
	zones, err := s.zones.Zones(ctx)
	if err != nil {
		s.logger.Warn("zone lookup failed, quoting without deadhead", zap.Error(err))
		return unclassified
	}
	classification := zone.Classify(p, zones)
	if classification == zone.Unclassified {
		s.logger.Warn("service area not configured, quoting without deadhead")
		return unclassified
	}
	hub, ok := zone.Hub(zones)
	if !ok {
		return unclassified
	}
	return domain.ZoneContext{
		Classification: classification,
		HubDistanceKm:  geo.HaversineKm(p, hub),
		NeedsReview:    classification == zone.OutsideOuter,
	}
}

// multiplier asks the surge provider, falling back to 1.0 on failure so a
// surge outage never blocks quoting.
func (s *Service) multiplier(ctx context.Context, req domain.FareRequest) float64 {
	if req.ServiceType != domain.ServiceStandard {
		return 1
	}
	mult, err := s.surge.Multiplier(ctx, req.Pickup, req.RequestedAt)
	if err != nil {
		s.logger.Warn("surge lookup failed, quoting without surge", zap.Error(err))
		return 1
	}
	if mult < 1 {
		return 1
	}
	return mult
}

func (s *Service) classesFor(ctx context.Context, req domain.FareRequest) ([]domain.CarClass, error) {
	if req.CarClass != "" {
		return []domain.CarClass{req.CarClass}, nil
	}
	classes, err := s.rates.Classes(ctx, req.ServiceType)
	if err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	return classes, nil
}

// Classes lists the car classes offered for a service type, for the booking
// screens.
func (s *Service) Classes(ctx context.Context, serviceType domain.ServiceType) ([]domain.CarClass, error) {
	if !serviceType.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownService, serviceType)
	}
	return s.rates.Classes(ctx, serviceType)
}
