package driver

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/A1taxi-Hosur/cust-app-sub001/internal/booking/domain"
	"github.com/A1taxi-Hosur/cust-app-sub001/internal/geo"
)

// Client resolves driver snapshots over the directory RPC. It satisfies the
// booking domain's directory interface.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to a directory server. The directory runs on the private
// network, so the connection is plaintext.
func Dial(addr string) (*Client, error) {
	conn, err := grpc.Dial(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(CodecName)),
	)
	if err != nil {
		return nil, fmt.Errorf("dial driver directory: %w", err)
	}
	return &Client{conn: conn}, nil
}

func (c *Client) Driver(ctx context.Context, driverID uuid.UUID) (domain.DriverSnapshot, error) {
	out := new(DriverProfile)
	if err := c.conn.Invoke(ctx, getDriverFullMethod, &GetDriverRequest{DriverId: driverID.String()}, out); err != nil {
		return domain.DriverSnapshot{}, err
	}
	return out.toSnapshot()
}

// Register upserts a driver profile in the directory.
func (c *Client) Register(ctx context.Context, profile *DriverProfile) (*DriverProfile, error) {
	out := new(DriverProfile)
	if err := c.conn.Invoke(ctx, registerDriverFullMethod, &RegisterDriverRequest{Driver: profile}, out); err != nil {
		return nil, err
	}
	return out, nil
}

// Available lists available drivers for a car class.
func (c *Client) Available(ctx context.Context, carClass string) ([]domain.DriverSnapshot, error) {
	out := new(DriverList)
	if err := c.conn.Invoke(ctx, listAvailableFullMethod, &ListAvailableRequest{CarClass: carClass}, out); err != nil {
		return nil, err
	}
	snapshots := make([]domain.DriverSnapshot, 0, len(out.Drivers))
	for _, profile := range out.Drivers {
		snap, err := profile.toSnapshot()
		if err != nil {
			continue
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, nil
}

func (c *Client) Close() error { return c.conn.Close() }

func (p *DriverProfile) toSnapshot() (domain.DriverSnapshot, error) {
	driverID, err := uuid.Parse(p.DriverId)
	if err != nil {
		return domain.DriverSnapshot{}, fmt.Errorf("parse driver id: %w", err)
	}
	return domain.DriverSnapshot{
		DriverID:      driverID,
		Name:          p.Name,
		Phone:         p.Phone,
		VehicleModel:  p.VehicleModel,
		VehicleNumber: p.VehicleNumber,
		Rating:        p.Rating,
		Location:      geo.Coordinate{Lat: p.Lat, Lng: p.Lng},
	}, nil
}
