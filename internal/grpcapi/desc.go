package grpcapi

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	ServiceName = "offleash.scheduling.v1.SchedulingService"

	listSlotsMethod    = "/" + ServiceName + "/ListSlots"
	createSeriesMethod = "/" + ServiceName + "/CreateRecurringSeries"
)

// SchedulingServer is the server side of SchedulingService. Messages are
// google.protobuf.Struct so clients in any language can call it with the
// well-known types only.
type SchedulingServer interface {
	ListSlots(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	CreateRecurringSeries(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

func RegisterSchedulingServer(s grpc.ServiceRegistrar, srv SchedulingServer) {
	s.RegisterService(&schedulingServiceDesc, srv)
}

var schedulingServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SchedulingServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ListSlots", Handler: unaryHandler(listSlotsMethod, SchedulingServer.ListSlots)},
		{MethodName: "CreateRecurringSeries", Handler: unaryHandler(createSeriesMethod, SchedulingServer.CreateRecurringSeries)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "offleash/scheduling/v1/scheduling.proto",
}

type structMethod func(SchedulingServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call structMethod) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(SchedulingServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(SchedulingServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// SchedulingClient calls SchedulingService.
type SchedulingClient struct {
	cc grpc.ClientConnInterface
}

func NewSchedulingClient(cc grpc.ClientConnInterface) *SchedulingClient {
	return &SchedulingClient{cc: cc}
}

func (c *SchedulingClient) ListSlots(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, listSlotsMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *SchedulingClient) CreateRecurringSeries(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, createSeriesMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
