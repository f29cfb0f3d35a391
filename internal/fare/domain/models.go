// Package domain defines fare estimation types shared by the pricing service,
// its repositories and its HTTP handlers.
package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/A1taxi-Hosur/cust-app-sub001/internal/geo"
	"github.com/A1taxi-Hosur/cust-app-sub001/internal/zone"
)

// ServiceType selects the pricing scheme for a trip.
type ServiceType string

const (
	ServiceStandard   ServiceType = "standard"
	ServiceOutstation ServiceType = "outstation"
	ServiceRental     ServiceType = "rental"
	ServiceAirport    ServiceType = "airport"
)

func (s ServiceType) Valid() bool {
	switch s {
	case ServiceStandard, ServiceOutstation, ServiceRental, ServiceAirport:
		return true
	}
	return false
}

// CarClass identifies a vehicle category on the rate card.
type CarClass string

const (
	ClassHatchback   CarClass = "hatchback"
	ClassHatchbackAC CarClass = "hatchback_ac"
	ClassSedan       CarClass = "sedan"
	ClassSedanAC     CarClass = "sedan_ac"
	ClassSUV         CarClass = "suv"
	ClassSUVAC       CarClass = "suv_ac"
	ClassAuto        CarClass = "auto"
	ClassBike        CarClass = "bike"
)

// AirportDirection distinguishes the two flat-rate airport runs.
type AirportDirection string

const (
	ToAirport   AirportDirection = "to_airport"
	FromAirport AirportDirection = "from_airport"
)

func (d AirportDirection) Valid() bool {
	return d == ToAirport || d == FromAirport
}

var (
	ErrNoFareConfig   = errors.New("no fare configured")
	ErrUnknownService = errors.New("unknown service type")
	ErrInvalidRequest = errors.New("invalid fare request")
)

// FareRequest is a quote request after transport-level decoding.
type FareRequest struct {
	ServiceType ServiceType    `json:"service_type"`
	CarClass    CarClass       `json:"car_class,omitempty"`
	Pickup      geo.Coordinate `json:"pickup"`
	Drop        geo.Coordinate `json:"drop"`

	// Outstation only.
	TripDays  int  `json:"trip_days,omitempty"`
	RoundTrip bool `json:"round_trip,omitempty"`

	// Rental only, e.g. "8h_80km".
	RentalPackage string `json:"rental_package,omitempty"`

	// Airport only.
	AirportDirection AirportDirection `json:"airport_direction,omitempty"`

	RequestedAt time.Time `json:"-"`
}

// Normalized fills defaults the clients are allowed to omit.
func (r FareRequest) Normalized(now time.Time) FareRequest {
	if r.TripDays < 1 {
		r.TripDays = 1
	}
	if r.RequestedAt.IsZero() {
		r.RequestedAt = now
	}
	return r
}

// Validate checks the request is complete for its service type. Run it on the
// normalized form.
func (r FareRequest) Validate() error {
	if !r.ServiceType.Valid() {
		return fmt.Errorf("%w: service type %q", ErrUnknownService, r.ServiceType)
	}
	if !r.Pickup.Valid() {
		return fmt.Errorf("%w: pickup coordinate", ErrInvalidRequest)
	}
	switch r.ServiceType {
	case ServiceRental:
		if r.RentalPackage == "" {
			return fmt.Errorf("%w: rental package required", ErrInvalidRequest)
		}
	case ServiceAirport:
		if !r.AirportDirection.Valid() {
			return fmt.Errorf("%w: airport direction required", ErrInvalidRequest)
		}
		if !r.Drop.Valid() {
			return fmt.Errorf("%w: drop coordinate", ErrInvalidRequest)
		}
	default:
		if !r.Drop.Valid() {
			return fmt.Errorf("%w: drop coordinate", ErrInvalidRequest)
		}
	}
	return nil
}

// FareBreakdown itemizes one quoted fare. All amounts are rupees; only
// TotalFare is rounded, to the nearest rupee.
type FareBreakdown struct {
	ServiceType     ServiceType `json:"service_type"`
	CarClass        CarClass    `json:"car_class"`
	Currency        string      `json:"currency"`
	BaseFare        float64     `json:"base_fare"`
	DistanceFare    float64     `json:"distance_fare"`
	SurgeAmount     float64     `json:"surge_amount"`
	DeadheadCharge  float64     `json:"deadhead_charge"`
	Extras          float64     `json:"extras"`
	TotalFare       float64     `json:"total_fare"`
	SurgeMultiplier float64     `json:"surge_multiplier"`
	DistanceKm      float64     `json:"distance_km"`
	DurationMin     float64     `json:"duration_min"`
}

// VehicleQuote is one car class's entry in a multi-class quote. Classes whose
// rate card row is missing are reported as unavailable rather than failing
// the whole batch.
type VehicleQuote struct {
	CarClass    CarClass       `json:"car_class"`
	Breakdown   *FareBreakdown `json:"breakdown,omitempty"`
	Unavailable string         `json:"unavailable,omitempty"`
}

// ZoneContext carries the drop-off classification shared by every quote in a
// response.
type ZoneContext struct {
	Classification zone.Classification `json:"classification"`
	HubDistanceKm  float64             `json:"hub_distance_km"`
	// NeedsReview is set for drops beyond the outer ring. Such trips are
	// priced but held for dispatcher confirmation.
	NeedsReview bool `json:"needs_review"`
}

// StandardRate is one row of the in-town rate card.
type StandardRate struct {
	CarClass   CarClass `json:"car_class"`
	BaseFare   float64  `json:"base_fare"`
	PerKm      float64  `json:"per_km"`
	MinFare    float64  `json:"min_fare"`
	IncludedKm float64  `json:"included_km"`
}

// OutstationRate is one row of the outstation rate card. SlabFare is the
// flat one-day price for trips within the slab distance.
type OutstationRate struct {
	CarClass        CarClass `json:"car_class"`
	BaseFare        float64  `json:"base_fare"`
	PerKm           float64  `json:"per_km"`
	DriverAllowance float64  `json:"driver_allowance"`
	SlabFare        float64  `json:"slab_fare"`
}

// RentalPackage is one fixed-price hourly package.
type RentalPackage struct {
	CarClass   CarClass `json:"car_class"`
	Name       string   `json:"name"`
	Hours      int      `json:"hours"`
	IncludedKm float64  `json:"included_km"`
	Fare       float64  `json:"fare"`
	ExtraPerKm float64  `json:"extra_per_km"`
}

// AirportRate is one flat airport-transfer price.
type AirportRate struct {
	CarClass  CarClass         `json:"car_class"`
	Direction AirportDirection `json:"direction"`
	Fare      float64          `json:"fare"`
}

// ConfigRepository serves the rate card.
type ConfigRepository interface {
	StandardRate(ctx context.Context, class CarClass) (StandardRate, error)
	OutstationRate(ctx context.Context, class CarClass) (OutstationRate, error)
	RentalPackage(ctx context.Context, class CarClass, name string) (RentalPackage, error)
	AirportRate(ctx context.Context, class CarClass, direction AirportDirection) (AirportRate, error)
	// Classes lists the car classes offered for a service type, in display
	// order.
	Classes(ctx context.Context, service ServiceType) ([]CarClass, error)
}

// SurgeProvider resolves the demand multiplier in effect for a pickup point.
// A multiplier of 1 means no surge.
type SurgeProvider interface {
	Multiplier(ctx context.Context, at geo.Coordinate, when time.Time) (float64, error)
}
