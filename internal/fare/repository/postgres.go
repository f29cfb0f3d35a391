package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/A1taxi-Hosur/cust-app-sub001/internal/fare/domain"
)

// PostgresConfig reads the rate card from the fare_* tables. Rows are edited
// by the admin panel, so every lookup goes to the database; put a cache in
// front if quote volume ever warrants it.
type PostgresConfig struct {
	pool *pgxpool.Pool
}

func NewPostgresConfig(pool *pgxpool.Pool) *PostgresConfig {
	return &PostgresConfig{pool: pool}
}

func (c *PostgresConfig) StandardRate(ctx context.Context, class domain.CarClass) (domain.StandardRate, error) {
	var rate domain.StandardRate
	err := c.pool.QueryRow(ctx, `
		SELECT car_class, base_fare, per_km, min_fare, included_km
		FROM fare_standard_rates
		WHERE car_class = $1 AND active = TRUE`, string(class)).
		Scan(&rate.CarClass, &rate.BaseFare, &rate.PerKm, &rate.MinFare, &rate.IncludedKm)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.StandardRate{}, fmt.Errorf("standard rate for %q: %w", class, domain.ErrNoFareConfig)
	}
	if err != nil {
		return domain.StandardRate{}, fmt.Errorf("query standard rate: %w", err)
	}
	return rate, nil
}

func (c *PostgresConfig) OutstationRate(ctx context.Context, class domain.CarClass) (domain.OutstationRate, error) {
	var rate domain.OutstationRate
	err := c.pool.QueryRow(ctx, `
		SELECT car_class, base_fare, per_km, driver_allowance, slab_fare
		FROM fare_outstation_rates
		WHERE car_class = $1 AND active = TRUE`, string(class)).
		Scan(&rate.CarClass, &rate.BaseFare, &rate.PerKm, &rate.DriverAllowance, &rate.SlabFare)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.OutstationRate{}, fmt.Errorf("outstation rate for %q: %w", class, domain.ErrNoFareConfig)
	}
	if err != nil {
		return domain.OutstationRate{}, fmt.Errorf("query outstation rate: %w", err)
	}
	return rate, nil
}

func (c *PostgresConfig) RentalPackage(ctx context.Context, class domain.CarClass, name string) (domain.RentalPackage, error) {
	var pkg domain.RentalPackage
	err := c.pool.QueryRow(ctx, `
		SELECT car_class, name, hours, included_km, fare, extra_per_km
		FROM fare_rental_packages
		WHERE car_class = $1 AND name = $2 AND active = TRUE`, string(class), name).
		Scan(&pkg.CarClass, &pkg.Name, &pkg.Hours, &pkg.IncludedKm, &pkg.Fare, &pkg.ExtraPerKm)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.RentalPackage{}, fmt.Errorf("rental package %q for %q: %w", name, class, domain.ErrNoFareConfig)
	}
	if err != nil {
		return domain.RentalPackage{}, fmt.Errorf("query rental package: %w", err)
	}
	return pkg, nil
}

func (c *PostgresConfig) AirportRate(ctx context.Context, class domain.CarClass, direction domain.AirportDirection) (domain.AirportRate, error) {
	var rate domain.AirportRate
	err := c.pool.QueryRow(ctx, `
		SELECT car_class, direction, fare
		FROM fare_airport_rates
		WHERE car_class = $1 AND direction = $2 AND active = TRUE`, string(class), string(direction)).
		Scan(&rate.CarClass, &rate.Direction, &rate.Fare)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.AirportRate{}, fmt.Errorf("airport rate for %q %s: %w", class, direction, domain.ErrNoFareConfig)
	}
	if err != nil {
		return domain.AirportRate{}, fmt.Errorf("query airport rate: %w", err)
	}
	return rate, nil
}

func (c *PostgresConfig) Classes(ctx context.Context, service domain.ServiceType) ([]domain.CarClass, error) {
	rows, err := c.pool.Query(ctx, `
		SELECT car_class
		FROM fare_service_classes
		WHERE service_type = $1 AND active = TRUE
		ORDER BY display_order`, string(service))
	if err != nil {
		return nil, fmt.Errorf("query service classes: %w", err)
	}
	defer rows.Close()

	var classes []domain.CarClass
	for rows.Next() {
		var class string
		if err := rows.Scan(&class); err != nil {
			return nil, fmt.Errorf("scan service class: %w", err)
		}
		classes = append(classes, domain.CarClass(class))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate service classes: %w", err)
	}
	if len(classes) == 0 {
		return nil, fmt.Errorf("classes for %q: %w", service, domain.ErrNoFareConfig)
	}
	return classes, nil
}
