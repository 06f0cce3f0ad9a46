// Package tollgrpc carries host batches, state queries and event
// streams over gRPC. Messages are cramberry-encoded domain types
// rather than generated protobufs, and call failures travel in-band
// inside the response so revert payloads cross the wire byte for
// byte.
package tollgrpc

import (
	"fmt"

	"github.com/blockberries/cramberry/pkg/cramberry"
	"google.golang.org/grpc/encoding"
)

// Codec is the grpc/encoding.Codec for cramberry-encoded messages.
// Both ends of a connection must force it; the registered name is
// "cramberry".
type Codec struct{}

var _ encoding.Codec = Codec{}

func (Codec) Name() string { return "cramberry" }

func (Codec) Marshal(v any) ([]byte, error) {
	data, err := cramberry.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("tollgrpc: encode %T: %w", v, err)
	}
	return data, nil
}

func (Codec) Unmarshal(data []byte, v any) error {
	if err := cramberry.Unmarshal(data, v); err != nil {
		return fmt.Errorf("tollgrpc: decode %T: %w", v, err)
	}
	return nil
}

func init() {
	encoding.RegisterCodec(Codec{})
}
