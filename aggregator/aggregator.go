// Package aggregator implements the reference batch aggregator: an
// ordered fan-out of calls through the fabric with per-leg results.
//
// The router talks to it through the typed [tollgate.Aggregator]
// contract; the execution shim reaches it as a call target with a
// batch-with-value payload.
package aggregator

import (
	"context"
	"fmt"
	"math/big"

	"github.com/blockberries/cramberry/pkg/cramberry"

	"github.com/blockberries/tollgate"
	"github.com/blockberries/tollgate/types"
)

// Aggregator executes batches of outbound calls in order.
type Aggregator struct {
	self types.Address
	disp tollgate.Dispatcher
}

var (
	_ tollgate.Aggregator = (*Aggregator)(nil)
	_ tollgate.CallTarget = (*Aggregator)(nil)
)

// New creates an aggregator reachable at self, dispatching legs
// through disp.
func New(self types.Address, disp tollgate.Dispatcher) (*Aggregator, error) {
	if self.IsZero() {
		return nil, fmt.Errorf("aggregator: zero self identity")
	}
	if disp == nil {
		return nil, fmt.Errorf("aggregator: nil dispatcher")
	}
	return &Aggregator{self: self, disp: disp}, nil
}

// Self returns the aggregator's call-target identity.
func (a *Aggregator) Self() types.Address { return a.self }

// Aggregate implements tollgate.Aggregator. The per-call values must
// sum to total; each leg runs in order; a failing leg either aborts
// the whole batch (strict) or is recorded and skipped (tolerant).
func (a *Aggregator) Aggregate(ctx context.Context, frame *tollgate.Frame, calls []types.BatchCall, total *big.Int) ([]types.CallResult, error) {
	if total == nil {
		total = new(big.Int)
	}
	sum := new(big.Int)
	for _, c := range calls {
		sum.Add(sum, c.Value.Big())
	}
	if sum.Cmp(total) != 0 {
		return nil, fmt.Errorf("aggregator: call values sum to %s, total is %s", sum, total)
	}

	results := make([]types.CallResult, 0, len(calls))
	for i, c := range calls {
		out, err := a.disp.Call(ctx, frame, c)
		if err != nil {
			if !c.AllowFailure {
				return nil, fmt.Errorf("aggregator: call %d: %w", i, err)
			}
			revert, _ := tollgate.RevertData(err)
			results = append(results, types.CallResult{Success: false, ReturnData: revert})
			continue
		}
		results = append(results, types.CallResult{Success: true, ReturnData: out})
	}
	return results, nil
}

// HandleCall implements tollgate.CallTarget: the aggregator reached
// by address accepts a batch-with-value payload and returns the
// encoded per-leg results. The attached frame value is the batch
// total.
func (a *Aggregator) HandleCall(ctx context.Context, frame *tollgate.Frame, input []byte) ([]byte, error) {
	sel, body, err := types.SplitSelector(input)
	if err != nil {
		return nil, err
	}
	if sel != types.SelAggregate {
		return nil, fmt.Errorf("aggregator: unsupported selector %s", sel)
	}
	calls, err := types.DecodeAggregateBody(body)
	if err != nil {
		return nil, fmt.Errorf("aggregator: decode batch: %w", err)
	}
	results, err := a.Aggregate(ctx, frame, calls, frame.Value)
	if err != nil {
		return nil, err
	}
	out, err := cramberry.Marshal(&types.ExecuteOutcome{Results: results})
	if err != nil {
		return nil, fmt.Errorf("aggregator: encode results: %w", err)
	}
	return out, nil
}
