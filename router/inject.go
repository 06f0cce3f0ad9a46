package router

import (
	"context"
	"fmt"
	"math/big"

	"github.com/blockberries/tollgate"
	"github.com/blockberries/tollgate/types"
)

// InjectAndCall reads the host's live balance of the request asset,
// patches it into the payload's placeholder window, and dispatches
// the call.
//
// A non-trivial request is checked before any mutation: the window
// must fit the payload and currently hold the expected placeholder.
// The injected value is the balance as a 32-byte big-endian word.
//
// Native balances ride as attached call value; token balances get an
// unlimited approval to the target before the call. The trail event
// is emitted for success and failure alike; a failed call surfaces as
// CallFailedError carrying the target's revert payload.
func (r *Router) InjectAndCall(ctx context.Context, frame *tollgate.Frame, req types.InjectionRequest) ([]byte, error) {
	if err := r.guard.Check(frame); err != nil {
		return nil, err
	}
	balance, err := frame.State.Balance(ctx, frame.Host, req.Asset)
	if err != nil {
		return nil, err
	}
	if balance.Sign() == 0 {
		return nil, tollgate.ErrNoFunds
	}

	payload := req.Payload
	if !req.Trivial() {
		offset := int(req.Offset)
		if offset+32 > len(payload) {
			return nil, &tollgate.OutOfBoundsError{Offset: offset, PayloadLen: len(payload)}
		}
		var window types.Word
		copy(window[:], payload[offset:offset+32])
		if window != req.Placeholder {
			return nil, &tollgate.PlaceholderMismatchError{Offset: offset, Want: req.Placeholder, Got: window}
		}
		injected, err := types.WordFromBig(balance)
		if err != nil {
			return nil, fmt.Errorf("router: inject balance: %w", err)
		}
		copy(payload[offset:offset+32], injected[:])
	}

	var out []byte
	var callErr error
	if req.Asset.IsNative() {
		value, werr := types.WordFromBig(balance)
		if werr != nil {
			return nil, fmt.Errorf("router: attach balance: %w", werr)
		}
		out, callErr = r.disp.Call(ctx, frame, types.BatchCall{Target: req.Target, Value: value, Payload: payload})
	} else {
		if err := frame.Tokens.Approve(ctx, req.Asset, frame.Host, req.Target, types.MaxWord.Big()); err != nil {
			return nil, err
		}
		out, callErr = r.disp.Call(ctx, frame, types.BatchCall{Target: req.Target, Payload: payload})
	}

	result := out
	if callErr != nil {
		result = tollgate.RevertBytes(callErr)
	}
	r.emit(ctx, injectionEvent(frame.Host, req, balance, result, callErr))

	if callErr != nil {
		if _, ok := tollgate.IsCallFailed(callErr); ok {
			return nil, callErr
		}
		return nil, &tollgate.CallFailedError{Target: req.Target, Revert: tollgate.RevertBytes(callErr)}
	}
	return out, nil
}

// InjectSweepAndCall is InjectAndCall followed by a sweep of
// sweepAsset to sweepRecipient. The sweep only runs when the call
// succeeds.
func (r *Router) InjectSweepAndCall(ctx context.Context, frame *tollgate.Frame, req types.InjectionRequest, sweepAsset types.Asset, sweepRecipient types.Address) ([]byte, *big.Int, error) {
	out, err := r.InjectAndCall(ctx, frame, req)
	if err != nil {
		return nil, nil, err
	}
	swept, err := r.Sweep(ctx, frame, sweepAsset, sweepRecipient)
	if err != nil {
		return nil, nil, err
	}
	return out, swept, nil
}
