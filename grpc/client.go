package tollgrpc

import (
	"context"
	"fmt"
	"io"

	"github.com/blockberries/tollgate"
	"github.com/blockberries/tollgate/types"

	"google.golang.org/grpc"
)

// Compile-time interface check.
var _ tollgate.Connection = (*Client)(nil)

// Client implements tollgate.Connection over gRPC using cramberry
// serialization. No protobuf types or conversion layer required.
type Client struct {
	cc *grpc.ClientConn
}

// Dial creates a client for a remote engine. The underlying channel
// connects lazily on first use.
func Dial(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append(opts, grpc.WithDefaultCallOptions(
		grpc.ForceCodec(Codec{}),
	))
	cc, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("tollgate client: dial %s: %w", addr, err)
	}
	return &Client{cc: cc}, nil
}

func (c *Client) Close() error {
	return c.cc.Close()
}

// Submit implements tollgate.Connection. In-band engine failures are
// rebuilt into their typed errors, revert payloads intact.
func (c *Client) Submit(ctx context.Context, batch types.HostBatch) (types.BatchReceipt, error) {
	req := &SubmitRequest{Batch: batch}
	resp := new(SubmitResponse)
	if err := c.cc.Invoke(ctx, fullMethod("Submit"), req, resp); err != nil {
		return types.BatchReceipt{}, err
	}
	if resp.Failure != nil {
		return types.BatchReceipt{}, resp.Failure.Err()
	}
	if resp.Receipt == nil {
		return types.BatchReceipt{}, fmt.Errorf("tollgate client: submit response carries neither receipt nor failure")
	}
	return *resp.Receipt, nil
}

// Query implements tollgate.Connection.
func (c *Client) Query(ctx context.Context, req types.StateQuery) (types.StateQueryResult, error) {
	resp := new(types.StateQueryResult)
	if err := c.cc.Invoke(ctx, fullMethod("Query"), &req, resp); err != nil {
		return types.StateQueryResult{}, err
	}
	return *resp, nil
}

// Info implements tollgate.Connection.
func (c *Client) Info(ctx context.Context) (types.EngineInfo, error) {
	req := &InfoRequest{}
	resp := new(types.EngineInfo)
	if err := c.cc.Invoke(ctx, fullMethod("Info"), req, resp); err != nil {
		return types.EngineInfo{}, err
	}
	return *resp, nil
}

// WatchEvents implements tollgate.Connection.
func (c *Client) WatchEvents(ctx context.Context, kinds ...string) (<-chan types.Event, error) {
	stream, err := c.cc.NewStream(ctx, &grpc.StreamDesc{
		StreamName:    "WatchEvents",
		ServerStreams: true,
	}, fullMethod("WatchEvents"))
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(&WatchRequest{Kinds: kinds}); err != nil {
		return nil, err
	}
	if err := stream.CloseSend(); err != nil {
		return nil, err
	}

	ch := make(chan types.Event)
	go func() {
		defer close(ch)
		for {
			frame := new(EventFrame)
			if err := stream.RecvMsg(frame); err != nil {
				if err == io.EOF {
					return
				}
				return
			}
			select {
			case ch <- frame.Event:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}
