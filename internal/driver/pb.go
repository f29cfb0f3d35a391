package driver

import (
	"context"
	"encoding/json"

	"google.golang.org/grpc"
	"google.golang.org/grpc/encoding"
)

// CodecName is the content subtype both ends of the directory RPC use. The
// messages are plain structs, so they travel as JSON instead of protobuf.
const CodecName = "json"

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

type jsonCodec struct{}

func (jsonCodec) Marshal(v any) ([]byte, error)      { return json.Marshal(v) }
func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }
func (jsonCodec) Name() string                       { return CodecName }

// GetDriverRequest asks for one driver's profile.
type GetDriverRequest struct {
	DriverId string `json:"driver_id"`
}

// DriverProfile is the wire form of a directory entry.
type DriverProfile struct {
	DriverId      string  `json:"driver_id"`
	Name          string  `json:"name"`
	Phone         string  `json:"phone"`
	VehicleModel  string  `json:"vehicle_model"`
	VehicleNumber string  `json:"vehicle_number"`
	CarClass      string  `json:"car_class"`
	Rating        float64 `json:"rating"`
	Lat           float64 `json:"lat"`
	Lng           float64 `json:"lng"`
	Available     bool    `json:"available"`
}

// RegisterDriverRequest upserts a directory entry.
type RegisterDriverRequest struct {
	Driver *DriverProfile `json:"driver"`
}

// ListAvailableRequest filters the fleet by car class.
type ListAvailableRequest struct {
	CarClass string `json:"car_class"`
}

// DriverList is returned by ListAvailable.
type DriverList struct {
	Drivers []*DriverProfile `json:"drivers"`
}

// DriverDirectoryServer defines the gRPC contract.
type DriverDirectoryServer interface {
	GetDriver(context.Context, *GetDriverRequest) (*DriverProfile, error)
	RegisterDriver(context.Context, *RegisterDriverRequest) (*DriverProfile, error)
	ListAvailable(context.Context, *ListAvailableRequest) (*DriverList, error)
}

// RegisterDriverDirectoryServer registers a service implementation.
func RegisterDriverDirectoryServer(s *grpc.Server, srv DriverDirectoryServer) {
	s.RegisterService(&directoryServiceDesc, srv)
}

const (
	getDriverFullMethod      = "/driver.DriverDirectory/GetDriver"
	registerDriverFullMethod = "/driver.DriverDirectory/RegisterDriver"
	listAvailableFullMethod  = "/driver.DriverDirectory/ListAvailable"
)

var directoryServiceDesc = grpc.ServiceDesc{
	ServiceName: "driver.DriverDirectory",
	HandlerType: (*DriverDirectoryServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetDriver", Handler: _DriverDirectory_GetDriver_Handler},
		{MethodName: "RegisterDriver", Handler: _DriverDirectory_RegisterDriver_Handler},
		{MethodName: "ListAvailable", Handler: _DriverDirectory_ListAvailable_Handler},
	},
	Streams: []grpc.StreamDesc{},
}

func _DriverDirectory_GetDriver_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(GetDriverRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DriverDirectoryServer).GetDriver(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getDriverFullMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(DriverDirectoryServer).GetDriver(ctx, req.(*GetDriverRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _DriverDirectory_RegisterDriver_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(RegisterDriverRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DriverDirectoryServer).RegisterDriver(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: registerDriverFullMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(DriverDirectoryServer).RegisterDriver(ctx, req.(*RegisterDriverRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func _DriverDirectory_ListAvailable_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(ListAvailableRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(DriverDirectoryServer).ListAvailable(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: listAvailableFullMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(DriverDirectoryServer).ListAvailable(ctx, req.(*ListAvailableRequest))
	}
	return interceptor(ctx, in, info, handler)
}
