package tollgrpc

import (
	"context"
	"fmt"

	"github.com/blockberries/tollgate/types"

	"google.golang.org/grpc"
)

const serviceName = "tollgate.v1.Engine"

// EngineServiceServer is the server-side interface for the engine
// gRPC service.
type EngineServiceServer interface {
	Submit(context.Context, *SubmitRequest) (*SubmitResponse, error)
	Query(context.Context, *types.StateQuery) (*types.StateQueryResult, error)
	Info(context.Context, *InfoRequest) (*types.EngineInfo, error)
	WatchEvents(*WatchRequest, grpc.ServerStream) error
}

// RegisterEngineServiceServer registers the service on a gRPC server.
func RegisterEngineServiceServer(s *grpc.Server, srv EngineServiceServer) {
	s.RegisterService(&serviceDesc, srv)
}

// --- Handler functions ---

func handlerSubmit(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(SubmitRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(EngineServiceServer).Submit(ctx, req)
}

func handlerQuery(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(types.StateQuery)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(EngineServiceServer).Query(ctx, req)
}

func handlerInfo(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
	req := new(InfoRequest)
	if err := dec(req); err != nil {
		return nil, err
	}
	return srv.(EngineServiceServer).Info(ctx, req)
}

func handlerWatchEvents(srv any, stream grpc.ServerStream) error {
	req := new(WatchRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(EngineServiceServer).WatchEvents(req, stream)
}

// fullMethod builds the full gRPC method path.
func fullMethod(method string) string {
	return fmt.Sprintf("/%s/%s", serviceName, method)
}

// serviceDesc is the manual gRPC service descriptor for the engine.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*EngineServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Submit", Handler: handlerSubmit},
		{MethodName: "Query", Handler: handlerQuery},
		{MethodName: "Info", Handler: handlerInfo},
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "WatchEvents",
			Handler:       handlerWatchEvents,
			ServerStreams: true,
			ClientStreams: false,
		},
	},
	Metadata: "tollgate/v1/service.cram",
}
