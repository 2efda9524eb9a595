package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "carebook.v1.Scheduling"

// schedulingHandler is the server contract behind ServiceDesc.
type schedulingHandler interface {
	CreateAppointment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	GetAppointment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	ListAppointments(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	UpdateAppointment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
	DeleteAppointment(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*schedulingHandler)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateAppointment", Handler: unary("CreateAppointment", schedulingHandler.CreateAppointment)},
		{MethodName: "GetAppointment", Handler: unary("GetAppointment", schedulingHandler.GetAppointment)},
		{MethodName: "ListAppointments", Handler: unary("ListAppointments", schedulingHandler.ListAppointments)},
		{MethodName: "UpdateAppointment", Handler: unary("UpdateAppointment", schedulingHandler.UpdateAppointment)},
		{MethodName: "DeleteAppointment", Handler: unary("DeleteAppointment", schedulingHandler.DeleteAppointment)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "carebook/v1/scheduling.proto",
}

func RegisterSchedulingServer(s grpc.ServiceRegistrar, srv *SchedulingServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func unary(method string, call func(schedulingHandler, context.Context, *structpb.Struct) (*structpb.Struct, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	fullMethod := "/" + ServiceName + "/" + method
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		h := srv.(schedulingHandler)
		if interceptor == nil {
			return call(h, ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(h, ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}
