package router

import (
	"context"
	"errors"
	"fmt"

	"github.com/blockberries/cramberry/pkg/cramberry"

	"github.com/blockberries/tollgate"
	"github.com/blockberries/tollgate/types"
)

// Dispatch is the selector-routed merged-frame entry point. The
// payload decodes to exactly one operation variant up front; the
// operation id is injected where the operation needs it (the
// settlement-gated sweep). The result is the operation's encoded
// outcome.
//
// Unknown selectors fail with UnrecognizedOperationError.
func (r *Router) Dispatch(ctx context.Context, frame *tollgate.Frame, op types.OperationID, payload []byte) ([]byte, error) {
	if err := r.guard.Check(frame); err != nil {
		return nil, err
	}
	decoded, err := types.DecodeOperation(payload)
	if err != nil {
		var unknown *types.UnknownSelectorError
		if errors.As(err, &unknown) {
			return nil, &tollgate.UnrecognizedOperationError{Selector: unknown.Selector}
		}
		return nil, fmt.Errorf("router: %w", err)
	}

	switch v := decoded.(type) {
	case *types.ExecuteOp:
		results, err := r.Execute(ctx, frame, v.Payload)
		if err != nil {
			return nil, err
		}
		return encodeOutcome(&types.ExecuteOutcome{Results: results})

	case *types.PullExecuteOp:
		results, err := r.PullAndExecute(ctx, frame, v.Asset, v.Payload)
		if err != nil {
			return nil, err
		}
		return encodeOutcome(&types.ExecuteOutcome{Results: results})

	case *types.PullAmountExecuteOp:
		results, err := r.PullAmountAndExecute(ctx, frame, v.Asset, v.Amount.Big(), v.Payload)
		if err != nil {
			return nil, err
		}
		return encodeOutcome(&types.ExecuteOutcome{Results: results})

	case *types.InjectCallOp:
		out, err := r.InjectAndCall(ctx, frame, v.Request)
		if err != nil {
			return nil, err
		}
		return encodeOutcome(&types.CallOutcome{ReturnData: out})

	case *types.InjectSweepCallOp:
		out, swept, err := r.InjectSweepAndCall(ctx, frame, v.Request, v.SweepAsset, v.SweepRecipient)
		if err != nil {
			return nil, err
		}
		word, err := types.WordFromBig(swept)
		if err != nil {
			return nil, fmt.Errorf("router: %w", err)
		}
		return encodeOutcome(&types.CallOutcome{ReturnData: out, Swept: word})

	case *types.SweepOp:
		swept, err := r.Sweep(ctx, frame, v.Asset, v.Recipient)
		if err != nil {
			return nil, err
		}
		word, err := types.WordFromBig(swept)
		if err != nil {
			return nil, fmt.Errorf("router: %w", err)
		}
		return encodeOutcome(&types.SweepOutcome{Amount: word})

	case *types.RefundSweepOp:
		refunded, swept, err := r.RefundAndSweep(ctx, frame, v.Asset, v.RefundRecipient, v.Refund.Big(), v.SweepRecipient)
		if err != nil {
			return nil, err
		}
		rw, err := types.WordFromBig(refunded)
		if err != nil {
			return nil, fmt.Errorf("router: %w", err)
		}
		sw, err := types.WordFromBig(swept)
		if err != nil {
			return nil, fmt.Errorf("router: %w", err)
		}
		return encodeOutcome(&types.RefundSweepOutcome{Refunded: rw, Swept: sw})

	case *types.SettledSweepOp:
		swept, err := r.SweepIfSettled(ctx, frame, op, v.Asset, v.Recipient)
		if err != nil {
			return nil, err
		}
		word, err := types.WordFromBig(swept)
		if err != nil {
			return nil, fmt.Errorf("router: %w", err)
		}
		return encodeOutcome(&types.SweepOutcome{Amount: word})

	default:
		// DecodeOperation's variant set and this switch move together.
		return nil, fmt.Errorf("router: unhandled operation %T", decoded)
	}
}

func encodeOutcome(v any) ([]byte, error) {
	out, err := cramberry.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("router: encode outcome: %w", err)
	}
	return out, nil
}

// HandleCall implements tollgate.CallTarget. The fabric derives every
// callee frame under the callee's own identity, so a router reached by
// address is always running under its own identity and the guard
// rejects it: direct invocation is unconditionally unusable.
func (r *Router) HandleCall(_ context.Context, frame *tollgate.Frame, _ []byte) ([]byte, error) {
	if err := r.guard.Check(frame); err != nil {
		return nil, err
	}
	return nil, tollgate.ErrDirectInvocation
}
