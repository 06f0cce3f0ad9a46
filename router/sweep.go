package router

import (
	"context"
	"fmt"
	"math/big"

	"github.com/blockberries/tollgate"
	"github.com/blockberries/tollgate/types"
)

// Sweep moves the host's entire holding of asset to recipient. A zero
// holding is a silent success: no transfer, no event.
func (r *Router) Sweep(ctx context.Context, frame *tollgate.Frame, asset types.Asset, recipient types.Address) (*big.Int, error) {
	if err := r.guard.Check(frame); err != nil {
		return nil, err
	}
	holding, err := frame.State.Balance(ctx, frame.Host, asset)
	if err != nil {
		return nil, err
	}
	if holding.Sign() == 0 {
		return holding, nil
	}
	if err := frame.Tokens.Push(ctx, asset, frame.Host, recipient, holding); err != nil {
		return nil, err
	}
	r.emit(ctx, sweepEvent(frame.Host, asset, recipient, holding))
	return holding, nil
}

// RefundAndSweep refunds up to requested of asset to refundTo, then
// sweeps the remainder to sweepTo. The refund is clamped to the
// current holding; a clamp emits the notice event with the requested
// and actual amounts. The combined summary event is always emitted,
// zero amounts included.
func (r *Router) RefundAndSweep(ctx context.Context, frame *tollgate.Frame, asset types.Asset, refundTo types.Address, requested *big.Int, sweepTo types.Address) (refunded, swept *big.Int, err error) {
	if err := r.guard.Check(frame); err != nil {
		return nil, nil, err
	}
	if requested == nil {
		requested = new(big.Int)
	}
	if requested.Sign() < 0 {
		return nil, nil, fmt.Errorf("router: invalid refund amount %s", requested)
	}
	holding, err := frame.State.Balance(ctx, frame.Host, asset)
	if err != nil {
		return nil, nil, err
	}

	refunded = new(big.Int).Set(requested)
	if requested.Cmp(holding) > 0 {
		refunded.Set(holding)
		r.emit(ctx, clampEvent(frame.Host, asset, requested, holding))
	}
	if refunded.Sign() > 0 {
		if err := frame.Tokens.Push(ctx, asset, frame.Host, refundTo, refunded); err != nil {
			return nil, nil, err
		}
		r.emit(ctx, refundEvent(frame.Host, asset, refundTo, refunded))
	}

	swept = new(big.Int).Sub(holding, refunded)
	if swept.Sign() > 0 {
		if err := frame.Tokens.Push(ctx, asset, frame.Host, sweepTo, swept); err != nil {
			return nil, nil, err
		}
		r.emit(ctx, sweepEvent(frame.Host, asset, sweepTo, swept))
	}

	r.emit(ctx, refundSweepEvent(frame.Host, asset, refundTo, refunded, sweepTo, swept))
	return refunded, swept, nil
}

// SweepIfSettled sweeps the host's holding of asset to recipient only
// when op's settlement sentinel is set, failing with ErrSentinelNotSet
// otherwise.
func (r *Router) SweepIfSettled(ctx context.Context, frame *tollgate.Frame, op types.OperationID, asset types.Asset, recipient types.Address) (*big.Int, error) {
	if err := r.guard.Check(frame); err != nil {
		return nil, err
	}
	set, err := r.sentinels.IsSet(ctx, frame, op)
	if err != nil {
		return nil, err
	}
	if !set {
		return nil, tollgate.ErrSentinelNotSet
	}
	return r.Sweep(ctx, frame, asset, recipient)
}
