// Package shim implements the execution shim: a thin forwarder a host
// merges into its frame to run one outbound batch call and, only on
// success, record the settlement sentinel for the operation.
//
// The downstream identity is fixed at construction and immutable. The
// shim never summarizes a downstream failure: the revert payload rides
// back verbatim, and the sentinel stays unset.
package shim

import (
	"context"
	"fmt"
	"math/big"

	"github.com/blockberries/tollgate"
	"github.com/blockberries/tollgate/sentinel"
	"github.com/blockberries/tollgate/types"
)

// Config wires a shim's collaborators.
type Config struct {
	// Self is the shim's own deployed identity.
	Self types.Address
	// Downstream is the fixed call target every forward dispatches to.
	Downstream types.Address
	// Sentinels records per-operation success.
	Sentinels *sentinel.Store
	// Dispatcher routes the downstream call.
	Dispatcher tollgate.Dispatcher
}

// Shim forwards prepared payloads downstream and marks settlement
// sentinels on success.
type Shim struct {
	guard      *tollgate.Guard
	downstream types.Address
	sentinels  *sentinel.Store
	disp       tollgate.Dispatcher
}

var _ tollgate.CallTarget = (*Shim)(nil)

// New creates a shim from cfg. A zero downstream identity fails with
// ErrZeroRouterAddress.
func New(cfg Config) (*Shim, error) {
	guard, err := tollgate.NewGuard(cfg.Self)
	if err != nil {
		return nil, fmt.Errorf("shim: %w", err)
	}
	if cfg.Downstream.IsZero() {
		return nil, tollgate.ErrZeroRouterAddress
	}
	if cfg.Sentinels == nil {
		return nil, fmt.Errorf("shim: nil sentinel store")
	}
	if cfg.Dispatcher == nil {
		return nil, fmt.Errorf("shim: nil dispatcher")
	}
	return &Shim{
		guard:      guard,
		downstream: cfg.Downstream,
		sentinels:  cfg.Sentinels,
		disp:       cfg.Dispatcher,
	}, nil
}

// Self returns the shim's own identity.
func (s *Shim) Self() types.Address { return s.guard.Self() }

// Downstream returns the fixed downstream identity.
func (s *Shim) Downstream() types.Address { return s.downstream }

// Forward dispatches payload to the downstream identity with value
// attached. Success records op's sentinel and returns the downstream's
// raw return data unchanged. Failure returns ForwardFailedError
// carrying the downstream revert payload verbatim; the sentinel is not
// touched.
//
// Re-forwarding an already-settled operation is legal: the sentinel is
// simply written again with the same value.
func (s *Shim) Forward(ctx context.Context, frame *tollgate.Frame, op types.OperationID, payload []byte, value *big.Int) ([]byte, error) {
	if err := s.guard.Check(frame); err != nil {
		return nil, err
	}
	if value == nil {
		value = new(big.Int)
	}
	attached, err := types.WordFromBig(value)
	if err != nil {
		return nil, fmt.Errorf("shim: forward value: %w", err)
	}
	out, err := s.disp.Call(ctx, frame, types.BatchCall{
		Target:  s.downstream,
		Value:   attached,
		Payload: payload,
	})
	if err != nil {
		return nil, &tollgate.ForwardFailedError{Revert: tollgate.RevertBytes(err)}
	}
	if err := s.sentinels.TrySet(ctx, frame, op); err != nil {
		return nil, fmt.Errorf("shim: record sentinel: %w", err)
	}
	return out, nil
}

// HandleCall implements tollgate.CallTarget. The fabric derives every
// callee frame under the callee's own identity, so a shim reached by
// address always dies on the guard.
func (s *Shim) HandleCall(_ context.Context, frame *tollgate.Frame, _ []byte) ([]byte, error) {
	if err := s.guard.Check(frame); err != nil {
		return nil, err
	}
	return nil, tollgate.ErrDirectInvocation
}
