package tollgrpc

import (
	"context"
	"net"

	"github.com/blockberries/tollgate/engine"
	"github.com/blockberries/tollgate/types"

	"google.golang.org/grpc"
)

// Compile-time interface check.
var _ EngineServiceServer = (*GRPCServer)(nil)

// GRPCServer exposes an engine over gRPC. No type conversion layer is
// needed — domain types are serialized directly via cramberry.
type GRPCServer struct {
	eng *engine.Engine
}

// NewGRPCServer creates a gRPC server wrapping the given engine.
func NewGRPCServer(eng *engine.Engine) *GRPCServer {
	return &GRPCServer{eng: eng}
}

// Register adds the engine service to a gRPC server.
func (s *GRPCServer) Register(gs *grpc.Server) {
	RegisterEngineServiceServer(gs, s)
}

// Serve starts a gRPC server on the given listener.
func (s *GRPCServer) Serve(lis net.Listener, opts ...grpc.ServerOption) error {
	gs := grpc.NewServer(opts...)
	s.Register(gs)
	return gs.Serve(lis)
}

// Engine returns the underlying engine for advanced use.
func (s *GRPCServer) Engine() *engine.Engine { return s.eng }

// Submit runs one host batch. Engine failures come back in-band so
// revert payloads survive the wire byte for byte; a gRPC status error
// here means the transport itself broke.
func (s *GRPCServer) Submit(ctx context.Context, req *SubmitRequest) (*SubmitResponse, error) {
	receipt, err := s.eng.Submit(ctx, req.Batch)
	if err != nil {
		return &SubmitResponse{Failure: encodeFailure(err)}, nil
	}
	return &SubmitResponse{Receipt: &receipt}, nil
}

func (s *GRPCServer) Query(ctx context.Context, req *types.StateQuery) (*types.StateQueryResult, error) {
	result, err := s.eng.Query(ctx, *req)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

func (s *GRPCServer) Info(context.Context, *InfoRequest) (*types.EngineInfo, error) {
	info := s.eng.Info()
	return &info, nil
}

// WatchEvents streams events until the client goes away. A consumer
// that falls behind its subscription buffer loses events rather than
// stalling the engine.
func (s *GRPCServer) WatchEvents(req *WatchRequest, stream grpc.ServerStream) error {
	events, cancel := s.eng.Subscribe(0, req.Kinds...)
	defer cancel()

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if err := stream.SendMsg(&EventFrame{Event: ev}); err != nil {
				return err
			}
		}
	}
}
