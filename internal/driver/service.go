// Package driver hosts the fleet directory: driver profiles, availability
// and the gRPC surface other services resolve snapshots through.
package driver

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/A1taxi-Hosur/cust-app-sub001/internal/booking/domain"
	faredomain "github.com/A1taxi-Hosur/cust-app-sub001/internal/fare/domain"
	"github.com/A1taxi-Hosur/cust-app-sub001/internal/geo"
)

// ErrDriverNotFound indicates an unknown driver ID.
var ErrDriverNotFound = errors.New("driver not found")

// Entry couples a driver snapshot with fleet metadata.
type Entry struct {
	Snapshot  domain.DriverSnapshot
	CarClass  faredomain.CarClass
	Available bool
}

// Registry stores the fleet in memory. It backs the directory RPC server
// and implements the directory interface for in-process wiring.
type Registry struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]Entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[uuid.UUID]Entry)}
}

// Driver returns the snapshot for one driver.
func (r *Registry) Driver(_ context.Context, driverID uuid.UUID) (domain.DriverSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.entries[driverID]
	if !ok {
		return domain.DriverSnapshot{}, ErrDriverNotFound
	}
	return entry.Snapshot, nil
}

// Upsert stores or replaces a fleet entry.
func (r *Registry) Upsert(entry Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[entry.Snapshot.DriverID] = entry
}

// SetAvailability flips a driver's availability flag.
func (r *Registry) SetAvailability(driverID uuid.UUID, available bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.entries[driverID]
	if !ok {
		return ErrDriverNotFound
	}
	entry.Available = available
	r.entries[driverID] = entry
	return nil
}

// Available lists available drivers, optionally filtered by car class.
func (r *Registry) Available(class faredomain.CarClass) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Entry, 0, len(r.entries))
	for _, entry := range r.entries {
		if !entry.Available {
			continue
		}
		if class != "" && entry.CarClass != class {
			continue
		}
		out = append(out, entry)
	}
	return out
}

// SeedDemoFleet loads a small Hosur fleet for local runs.
func (r *Registry) SeedDemoFleet() {
	fleet := []Entry{
		{
			Snapshot: domain.DriverSnapshot{
				DriverID:      uuid.MustParse("6f1c8a52-1df1-4a4c-9e0a-3c3f4f9a1b01"),
				Name:          "Murugan S",
				Phone:         "+919876543210",
				VehicleModel:  "Swift Dzire",
				VehicleNumber: "TN70AB1234",
				Rating:        4.7,
				Location:      geo.Coordinate{Lat: 12.7421, Lng: 77.8301},
			},
			CarClass:  faredomain.ClassSedan,
			Available: true,
		},
		{
			Snapshot: domain.DriverSnapshot{
				DriverID:      uuid.MustParse("6f1c8a52-1df1-4a4c-9e0a-3c3f4f9a1b02"),
				Name:          "Ravi Kumar",
				Phone:         "+919876543211",
				VehicleModel:  "Wagon R",
				VehicleNumber: "TN70CD5678",
				Rating:        4.5,
				Location:      geo.Coordinate{Lat: 12.7355, Lng: 77.8198},
			},
			CarClass:  faredomain.ClassHatchback,
			Available: true,
		},
		{
			Snapshot: domain.DriverSnapshot{
				DriverID:      uuid.MustParse("6f1c8a52-1df1-4a4c-9e0a-3c3f4f9a1b03"),
				Name:          "Senthil V",
				Phone:         "+919876543212",
				VehicleModel:  "Ertiga",
				VehicleNumber: "TN70EF9012",
				Rating:        4.8,
				Location:      geo.Coordinate{Lat: 12.7512, Lng: 77.8340},
			},
			CarClass:  faredomain.ClassSUV,
			Available: true,
		},
		{
			Snapshot: domain.DriverSnapshot{
				DriverID:      uuid.MustParse("6f1c8a52-1df1-4a4c-9e0a-3c3f4f9a1b04"),
				Name:          "Lakshmi N",
				Phone:         "+919876543213",
				VehicleModel:  "Honda City",
				VehicleNumber: "KA51GH3456",
				Rating:        4.9,
				Location:      geo.Coordinate{Lat: 12.7288, Lng: 77.8122},
			},
			CarClass:  faredomain.ClassSedanAC,
			Available: true,
		},
		{
			Snapshot: domain.DriverSnapshot{
				DriverID:      uuid.MustParse("6f1c8a52-1df1-4a4c-9e0a-3c3f4f9a1b05"),
				Name:          "Anand R",
				Phone:         "+919876543214",
				VehicleModel:  "Bajaj RE",
				VehicleNumber: "TN70IJ7890",
				Rating:        4.3,
				Location:      geo.Coordinate{Lat: 12.7460, Lng: 77.8270},
			},
			CarClass:  faredomain.ClassAuto,
			Available: false,
		},
	}
	for _, entry := range fleet {
		r.Upsert(entry)
	}
}
