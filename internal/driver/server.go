package driver

import (
	"context"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/A1taxi-Hosur/cust-app-sub001/internal/booking/domain"
	faredomain "github.com/A1taxi-Hosur/cust-app-sub001/internal/fare/domain"
	"github.com/A1taxi-Hosur/cust-app-sub001/internal/geo"
)

// Server implements the DriverDirectoryServer interface over a Registry.
type Server struct {
	registry *Registry
}

func NewServer(registry *Registry) *Server {
	return &Server{registry: registry}
}

func (s *Server) GetDriver(ctx context.Context, req *GetDriverRequest) (*DriverProfile, error) {
	driverID, err := uuid.Parse(req.DriverId)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid driver_id")
	}
	s.registry.mu.RLock()
	entry, ok := s.registry.entries[driverID]
	s.registry.mu.RUnlock()
	if !ok {
		return nil, status.Error(codes.NotFound, "driver not found")
	}
	return profileFromEntry(entry), nil
}

func (s *Server) RegisterDriver(ctx context.Context, req *RegisterDriverRequest) (*DriverProfile, error) {
	if req.Driver == nil {
		return nil, status.Error(codes.InvalidArgument, "driver profile required")
	}
	driverID, err := uuid.Parse(req.Driver.DriverId)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, "invalid driver_id")
	}
	entry := Entry{
		Snapshot: domain.DriverSnapshot{
			DriverID:      driverID,
			Name:          req.Driver.Name,
			Phone:         req.Driver.Phone,
			VehicleModel:  req.Driver.VehicleModel,
			VehicleNumber: req.Driver.VehicleNumber,
			Rating:        req.Driver.Rating,
			Location:      geo.Coordinate{Lat: req.Driver.Lat, Lng: req.Driver.Lng},
		},
		CarClass:  faredomain.CarClass(req.Driver.CarClass),
		Available: req.Driver.Available,
	}
	s.registry.Upsert(entry)
	return profileFromEntry(entry), nil
}

func (s *Server) ListAvailable(ctx context.Context, req *ListAvailableRequest) (*DriverList, error) {
	entries := s.registry.Available(faredomain.CarClass(req.CarClass))
	list := &DriverList{Drivers: make([]*DriverProfile, 0, len(entries))}
	for _, entry := range entries {
		list.Drivers = append(list.Drivers, profileFromEntry(entry))
	}
	return list, nil
}

func profileFromEntry(entry Entry) *DriverProfile {
	return &DriverProfile{
		DriverId:      entry.Snapshot.DriverID.String(),
		Name:          entry.Snapshot.Name,
		Phone:         entry.Snapshot.Phone,
		VehicleModel:  entry.Snapshot.VehicleModel,
		VehicleNumber: entry.Snapshot.VehicleNumber,
		CarClass:      string(entry.CarClass),
		Rating:        entry.Snapshot.Rating,
		Lat:           entry.Snapshot.Location.Lat,
		Lng:           entry.Snapshot.Location.Lng,
		Available:     entry.Available,
	}
}
