// Package router implements the delegated router: the engine's main
// execution surface for batched calls, balance injection, and fee
// sweeps, always operating inside a borrowed host frame.
//
// Every operation checks the invocation guard first. The router holds
// no balances and no slots of its own; all effects land on the frame's
// host.
package router

import (
	"context"
	"fmt"
	"math/big"

	"github.com/blockberries/tollgate"
	"github.com/blockberries/tollgate/sentinel"
	"github.com/blockberries/tollgate/types"
)

// Config wires a router's collaborators.
type Config struct {
	// Self is the router's own deployed identity.
	Self types.Address
	// Sentinels gates settlement sweeps.
	Sentinels *sentinel.Store
	// Aggregator executes batches.
	Aggregator tollgate.Aggregator
	// Dispatcher routes single outbound calls.
	Dispatcher tollgate.Dispatcher
	// Events receives the observability trail. Optional; nil discards.
	Events tollgate.EventSink
}

// Router is the delegated execution router.
type Router struct {
	guard     *tollgate.Guard
	sentinels *sentinel.Store
	agg       tollgate.Aggregator
	disp      tollgate.Dispatcher
	events    tollgate.EventSink
}

var _ tollgate.CallTarget = (*Router)(nil)

// New creates a router from cfg.
func New(cfg Config) (*Router, error) {
	guard, err := tollgate.NewGuard(cfg.Self)
	if err != nil {
		return nil, fmt.Errorf("router: %w", err)
	}
	if cfg.Sentinels == nil {
		return nil, fmt.Errorf("router: nil sentinel store")
	}
	if cfg.Aggregator == nil {
		return nil, fmt.Errorf("router: nil aggregator")
	}
	if cfg.Dispatcher == nil {
		return nil, fmt.Errorf("router: nil dispatcher")
	}
	events := cfg.Events
	if events == nil {
		events = nopSink{}
	}
	return &Router{
		guard:     guard,
		sentinels: cfg.Sentinels,
		agg:       cfg.Aggregator,
		disp:      cfg.Dispatcher,
		events:    events,
	}, nil
}

// Self returns the router's own identity.
func (r *Router) Self() types.Address { return r.guard.Self() }

// Execute validates and runs an already-funded batch payload.
//
// The payload must lead with the batch-with-value selector; every leg
// must be strict (no failure tolerance); the frame's attached value is
// the batch total. Results come back per leg, in order.
func (r *Router) Execute(ctx context.Context, frame *tollgate.Frame, payload []byte) ([]types.CallResult, error) {
	if err := r.guard.Check(frame); err != nil {
		return nil, err
	}
	calls, err := decodeBatch(payload)
	if err != nil {
		return nil, err
	}
	for i, c := range calls {
		if c.AllowFailure {
			return nil, &tollgate.PartialFailureError{Index: i}
		}
	}
	results, err := r.agg.Aggregate(ctx, frame, calls, frame.Value)
	if err != nil {
		if _, ok := tollgate.IsCallFailed(err); ok {
			return nil, err
		}
		return nil, &tollgate.CallFailedError{Revert: tollgate.RevertBytes(err)}
	}
	return results, nil
}

// PullAndExecute moves the caller's entire available balance of asset
// to the host, then executes the batch payload. Native pulls are the
// attached value itself; token pulls consume the caller's approval to
// the host. Nothing to pull fails with ErrNoFunds.
func (r *Router) PullAndExecute(ctx context.Context, frame *tollgate.Frame, asset types.Asset, payload []byte) ([]types.CallResult, error) {
	if err := r.guard.Check(frame); err != nil {
		return nil, err
	}
	if asset.IsNative() {
		if frame.Value.Sign() == 0 {
			return nil, tollgate.ErrNoFunds
		}
	} else {
		available, err := frame.State.Balance(ctx, frame.Caller, asset)
		if err != nil {
			return nil, err
		}
		if available.Sign() == 0 {
			return nil, tollgate.ErrNoFunds
		}
		if err := frame.Tokens.Pull(ctx, asset, frame.Host, frame.Caller, frame.Host, available); err != nil {
			return nil, err
		}
	}
	return r.Execute(ctx, frame, payload)
}

// PullAmountAndExecute is the exact-amount variant of PullAndExecute.
// A native pull checks the attached value covers amount, failing with
// InsufficientValueError; a token pull moves exactly amount.
func (r *Router) PullAmountAndExecute(ctx context.Context, frame *tollgate.Frame, asset types.Asset, amount *big.Int, payload []byte) ([]types.CallResult, error) {
	if err := r.guard.Check(frame); err != nil {
		return nil, err
	}
	if amount == nil {
		amount = new(big.Int)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("router: invalid pull amount %s", amount)
	}
	if asset.IsNative() {
		if frame.Value.Cmp(amount) < 0 {
			return nil, &tollgate.InsufficientValueError{
				Required: new(big.Int).Set(amount),
				Received: new(big.Int).Set(frame.Value),
			}
		}
	} else if amount.Sign() > 0 {
		if err := frame.Tokens.Pull(ctx, asset, frame.Host, frame.Caller, frame.Host, amount); err != nil {
			return nil, err
		}
	}
	return r.Execute(ctx, frame, payload)
}

// decodeBatch splits and validates an execute payload.
func decodeBatch(payload []byte) ([]types.BatchCall, error) {
	sel, body, err := types.SplitSelector(payload)
	if err != nil {
		return nil, fmt.Errorf("router: %w", err)
	}
	if sel != types.SelAggregate {
		return nil, &tollgate.UnsupportedOperationError{Selector: sel}
	}
	calls, err := types.DecodeAggregateBody(body)
	if err != nil {
		return nil, fmt.Errorf("router: decode batch: %w", err)
	}
	return calls, nil
}

// emit hands an event to the sink. Sink failures never affect
// execution.
func (r *Router) emit(ctx context.Context, ev types.Event) {
	_ = r.events.Emit(ctx, ev)
}

type nopSink struct{}

func (nopSink) Emit(context.Context, types.Event) error { return nil }
