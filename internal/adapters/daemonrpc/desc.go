package daemonrpc

import (
	"context"

	"google.golang.org/grpc"
)

const serviceName = "fleetd.DaemonService"

// serviceDesc is the hand-written gRPC service descriptor. With the
// JSON codec the wire messages are the structs in types.go, so no
// generated code is needed.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*DaemonService)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Health", Handler: healthHandler},
		{MethodName: "ListContainers", Handler: listContainersHandler},
		{MethodName: "GetContainer", Handler: getContainerHandler},
		{MethodName: "StopContainer", Handler: stopContainerHandler},
		{MethodName: "GetContainerLogs", Handler: getContainerLogsHandler},
		{MethodName: "StartContainer", Handler: startContainerHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "fleetd/daemonrpc",
}

func unary[Req any, Resp any](
	method string,
	call func(svc DaemonService, ctx context.Context, req *Req) (*Resp, error),
) func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(DaemonService), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + serviceName + "/" + method}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(DaemonService), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

var (
	healthHandler = unary("Health",
		func(svc DaemonService, ctx context.Context, req *HealthRequest) (*HealthResponse, error) {
			return svc.Health(ctx, req)
		})
	listContainersHandler = unary("ListContainers",
		func(svc DaemonService, ctx context.Context, req *ListContainersRequest) (*ListContainersResponse, error) {
			return svc.ListContainers(ctx, req)
		})
	getContainerHandler = unary("GetContainer",
		func(svc DaemonService, ctx context.Context, req *GetContainerRequest) (*GetContainerResponse, error) {
			return svc.GetContainer(ctx, req)
		})
	stopContainerHandler = unary("StopContainer",
		func(svc DaemonService, ctx context.Context, req *StopContainerRequest) (*StopContainerResponse, error) {
			return svc.StopContainer(ctx, req)
		})
	getContainerLogsHandler = unary("GetContainerLogs",
		func(svc DaemonService, ctx context.Context, req *GetContainerLogsRequest) (*GetContainerLogsResponse, error) {
			return svc.GetContainerLogs(ctx, req)
		})
	startContainerHandler = unary("StartContainer",
		func(svc DaemonService, ctx context.Context, req *StartContainerRequest) (*StartContainerResponse, error) {
			return svc.StartContainer(ctx, req)
		})
)
