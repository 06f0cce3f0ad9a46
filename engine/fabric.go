package engine

import (
	"context"

	"github.com/blockberries/tollgate"
	"github.com/blockberries/tollgate/types"
)

// fabric routes outbound calls to registered targets. It implements
// tollgate.Dispatcher over the engine's registry.
type fabric struct {
	e *Engine
}

var _ tollgate.Dispatcher = fabric{}

// Call moves the attached value from the frame's host to the target,
// then runs the target under a derived frame. A failing call restores
// the staged changeset to its pre-call state, so a tolerated failure
// leaves no trace; the error always carries the callee's revert
// payload verbatim.
func (f fabric) Call(ctx context.Context, frame *tollgate.Frame, call types.BatchCall) ([]byte, error) {
	target, ok := f.e.target(call.Target)
	if !ok {
		return nil, &tollgate.CallFailedError{
			Target: call.Target,
			Revert: []byte("no call target at " + call.Target.String()),
		}
	}

	var restore func()
	if s, ok := frame.State.(interface{ Snapshot() func() }); ok {
		restore = s.Snapshot()
	}
	unwind := func(err error) ([]byte, error) {
		if restore != nil {
			restore()
		}
		if _, ok := tollgate.IsCallFailed(err); ok {
			return nil, err
		}
		return nil, &tollgate.CallFailedError{Target: call.Target, Revert: tollgate.RevertBytes(err)}
	}

	value := call.Value.Big()
	if value.Sign() > 0 {
		if err := frame.Tokens.Push(ctx, types.NativeAsset, frame.Host, call.Target, value); err != nil {
			return unwind(err)
		}
	}
	out, err := target.HandleCall(ctx, frame.Sub(call.Target, value), call.Payload)
	if err != nil {
		return unwind(err)
	}
	return out, nil
}
