// Package repository provides rate card storage for fare estimation.
package repository

import (
	"context"
	"fmt"

	"github.com/A1taxi-Hosur/cust-app-sub001/internal/fare/domain"
)

// MemoryConfig serves the rate card from process memory. The card is fixed at
// construction, so reads need no locking. Production loads the same shape
// from Postgres; this one seeds the Hosur launch card for development and
// tests.
type MemoryConfig struct {
	standard   map[domain.CarClass]domain.StandardRate
	outstation map[domain.CarClass]domain.OutstationRate
	rental     map[string]domain.RentalPackage
	airport    map[string]domain.AirportRate
	classes    map[domain.ServiceType][]domain.CarClass
}

func NewMemoryConfig() *MemoryConfig {
	c := &MemoryConfig{
		standard:   make(map[domain.CarClass]domain.StandardRate),
		outstation: make(map[domain.CarClass]domain.OutstationRate),
		rental:     make(map[string]domain.RentalPackage),
		airport:    make(map[string]domain.AirportRate),
		classes:    make(map[domain.ServiceType][]domain.CarClass),
	}
	c.seed()
	return c
}

func (c *MemoryConfig) StandardRate(_ context.Context, class domain.CarClass) (domain.StandardRate, error) {
	rate, ok := c.standard[class]
	if !ok {
		return domain.StandardRate{}, fmt.Errorf("standard rate for %q: %w", class, domain.ErrNoFareConfig)
	}
	return rate, nil
}

func (c *MemoryConfig) OutstationRate(_ context.Context, class domain.CarClass) (domain.OutstationRate, error) {
	rate, ok := c.outstation[class]
	if !ok {
		return domain.OutstationRate{}, fmt.Errorf("outstation rate for %q: %w", class, domain.ErrNoFareConfig)
	}
	return rate, nil
}

func (c *MemoryConfig) RentalPackage(_ context.Context, class domain.CarClass, name string) (domain.RentalPackage, error) {
	pkg, ok := c.rental[rentalKey(class, name)]
	if !ok {
		return domain.RentalPackage{}, fmt.Errorf("rental package %q for %q: %w", name, class, domain.ErrNoFareConfig)
	}
	return pkg, nil
}

func (c *MemoryConfig) AirportRate(_ context.Context, class domain.CarClass, direction domain.AirportDirection) (domain.AirportRate, error) {
	rate, ok := c.airport[airportKey(class, direction)]
	if !ok {
		return domain.AirportRate{}, fmt.Errorf("airport rate for %q %s: %w", class, direction, domain.ErrNoFareConfig)
	}
	return rate, nil
}

func (c *MemoryConfig) Classes(_ context.Context, service domain.ServiceType) ([]domain.CarClass, error) {
	classes, ok := c.classes[service]
	if !ok {
		return nil, fmt.Errorf("classes for %q: %w", service, domain.ErrNoFareConfig)
	}
	out := make([]domain.CarClass, len(classes))
	copy(out, classes)
	return out, nil
}

func rentalKey(class domain.CarClass, name string) string {
	return string(class) + "/" + name
}

func airportKey(class domain.CarClass, direction domain.AirportDirection) string {
	return string(class) + "/" + string(direction)
}

// seed loads the launch rate card. Amounts are rupees.
func (c *MemoryConfig) seed() {
	standard := []domain.StandardRate{
		{CarClass: domain.ClassHatchback, BaseFare: 100, PerKm: 12, MinFare: 120, IncludedKm: 4},
		{CarClass: domain.ClassHatchbackAC, BaseFare: 120, PerKm: 13, MinFare: 140, IncludedKm: 4},
		{CarClass: domain.ClassSedan, BaseFare: 130, PerKm: 14, MinFare: 150, IncludedKm: 4},
		{CarClass: domain.ClassSedanAC, BaseFare: 150, PerKm: 15, MinFare: 170, IncludedKm: 4},
		{CarClass: domain.ClassSUV, BaseFare: 180, PerKm: 18, MinFare: 200, IncludedKm: 4},
		{CarClass: domain.ClassSUVAC, BaseFare: 200, PerKm: 19, MinFare: 220, IncludedKm: 4},
		{CarClass: domain.ClassAuto, BaseFare: 50, PerKm: 10, MinFare: 60, IncludedKm: 4},
		{CarClass: domain.ClassBike, BaseFare: 30, PerKm: 7, MinFare: 40, IncludedKm: 4},
	}
	for _, r := range standard {
		c.standard[r.CarClass] = r
	}

	outstation := []domain.OutstationRate{
		{CarClass: domain.ClassHatchback, BaseFare: 200, PerKm: 12, DriverAllowance: 300, SlabFare: 3200},
		{CarClass: domain.ClassHatchbackAC, BaseFare: 200, PerKm: 13, DriverAllowance: 300, SlabFare: 3400},
		{CarClass: domain.ClassSedan, BaseFare: 250, PerKm: 13, DriverAllowance: 400, SlabFare: 3500},
		{CarClass: domain.ClassSedanAC, BaseFare: 250, PerKm: 14, DriverAllowance: 400, SlabFare: 3800},
		{CarClass: domain.ClassSUV, BaseFare: 300, PerKm: 17, DriverAllowance: 500, SlabFare: 4800},
		{CarClass: domain.ClassSUVAC, BaseFare: 300, PerKm: 18, DriverAllowance: 500, SlabFare: 5200},
	}
	for _, r := range outstation {
		c.outstation[r.CarClass] = r
	}

	rentalFares := map[domain.CarClass][3]float64{
		domain.ClassHatchback:   {950, 1800, 2600},
		domain.ClassHatchbackAC: {1050, 2000, 2900},
		domain.ClassSedan:       {1150, 2200, 3200},
		domain.ClassSedanAC:     {1300, 2500, 3600},
		domain.ClassSUV:         {1600, 3000, 4400},
		domain.ClassSUVAC:       {1800, 3400, 4900},
	}
	rentalShapes := []struct {
		name  string
		hours int
		km    float64
	}{
		{"4h_40km", 4, 40},
		{"8h_80km", 8, 80},
		{"12h_120km", 12, 120},
	}
	for class, fares := range rentalFares {
		extraPerKm := c.standard[class].PerKm
		for i, shape := range rentalShapes {
			pkg := domain.RentalPackage{
				CarClass:   class,
				Name:       shape.name,
				Hours:      shape.hours,
				IncludedKm: shape.km,
				Fare:       fares[i],
				ExtraPerKm: extraPerKm,
			}
			c.rental[rentalKey(class, shape.name)] = pkg
		}
	}

	airport := map[domain.CarClass][2]float64{
		domain.ClassHatchback:   {1900, 2000},
		domain.ClassHatchbackAC: {2050, 2150},
		domain.ClassSedan:       {2200, 2300},
		domain.ClassSedanAC:     {2400, 2500},
		domain.ClassSUV:         {2900, 3000},
		domain.ClassSUVAC:       {3100, 3200},
	}
	for class, fares := range airport {
		c.airport[airportKey(class, domain.ToAirport)] = domain.AirportRate{
			CarClass: class, Direction: domain.ToAirport, Fare: fares[0],
		}
		c.airport[airportKey(class, domain.FromAirport)] = domain.AirportRate{
			CarClass: class, Direction: domain.FromAirport, Fare: fares[1],
		}
	}

	carClasses := []domain.CarClass{
		domain.ClassHatchback, domain.ClassHatchbackAC,
		domain.ClassSedan, domain.ClassSedanAC,
		domain.ClassSUV, domain.ClassSUVAC,
	}
	c.classes[domain.ServiceStandard] = append(append([]domain.CarClass{}, carClasses...), domain.ClassAuto, domain.ClassBike)
	c.classes[domain.ServiceOutstation] = carClasses
	c.classes[domain.ServiceRental] = carClasses
	c.classes[domain.ServiceAirport] = carClasses
}
