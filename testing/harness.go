package tolltest

import (
	"context"
	"math/big"
	"testing"

	"github.com/blockberries/tollgate"
	"github.com/blockberries/tollgate/engine"
	"github.com/blockberries/tollgate/ledger"
	"github.com/blockberries/tollgate/types"
)

// Well-known identities used by the harness.
var (
	RouterAddr     = types.Address{0x01}
	ShimAddr       = types.Address{0x02}
	AggregatorAddr = types.Address{0x03}
	HostAddr       = types.Address{0xaa}
	CallerAddr     = types.Address{0xcc}
)

// Harness wires a fully assembled engine over a fresh ledger with an
// event collector attached, ready for host batches.
type Harness struct {
	t         *testing.T
	Engine    *engine.Engine
	Ledger    *ledger.Ledger
	Collector *Collector
}

// NewHarness builds a harness. Ledger options (for example
// ledger.WithoutTransientSlots) configure the world state.
func NewHarness(t *testing.T, opts ...ledger.Option) *Harness {
	t.Helper()
	lg := ledger.New(opts...)
	collector := &Collector{}
	eng, err := engine.New(engine.Config{
		Ledger:     lg,
		Router:     RouterAddr,
		Shim:       ShimAddr,
		Aggregator: AggregatorAddr,
		Events:     collector,
	})
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	return &Harness{t: t, Engine: eng, Ledger: lg, Collector: collector}
}

// Register makes target reachable through the fabric at addr.
func (h *Harness) Register(addr types.Address, target tollgate.CallTarget) {
	h.t.Helper()
	if err := h.Engine.RegisterTarget(addr, target); err != nil {
		h.t.Fatalf("RegisterTarget(%s): %v", addr, err)
	}
}

// Fund seeds a committed balance.
func (h *Harness) Fund(owner types.Address, asset types.Asset, amount int64) {
	h.Ledger.SetBalance(owner, asset, big.NewInt(amount))
}

// Approve seeds a committed allowance.
func (h *Harness) Approve(owner types.Address, asset types.Asset, spender types.Address, amount int64) {
	h.Ledger.SetAllowance(owner, asset, spender, big.NewInt(amount))
}

// Submit runs one host batch against the engine.
func (h *Harness) Submit(batch types.HostBatch) (types.BatchReceipt, error) {
	return h.Engine.Submit(context.Background(), batch)
}

// MustSubmit runs one host batch and fails the test on error.
func (h *Harness) MustSubmit(batch types.HostBatch) types.BatchReceipt {
	h.t.Helper()
	receipt, err := h.Submit(batch)
	if err != nil {
		h.t.Fatalf("Submit: %v", err)
	}
	return receipt
}

// RequireBalance asserts a committed balance.
func (h *Harness) RequireBalance(owner types.Address, asset types.Asset, want int64) {
	h.t.Helper()
	got := h.Ledger.Balance(owner, asset)
	if got.Cmp(big.NewInt(want)) != 0 {
		h.t.Fatalf("balance of %s for %s: got %s, want %d", asset, owner, got, want)
	}
}

// OpID mints a deterministic operation id from a seed byte.
func OpID(seed byte) types.OperationID {
	return types.OperationID{31: seed}
}

// MustEncode encodes a dispatch operation payload, failing the test
// on error.
func MustEncode(t *testing.T, op types.Operation) []byte {
	t.Helper()
	payload, err := types.EncodeOperation(op)
	if err != nil {
		t.Fatalf("EncodeOperation: %v", err)
	}
	return payload
}

// MustAggregate builds a batch-with-value payload, failing the test
// on error.
func MustAggregate(t *testing.T, calls ...types.BatchCall) []byte {
	t.Helper()
	payload, err := types.EncodeAggregate(calls)
	if err != nil {
		t.Fatalf("EncodeAggregate: %v", err)
	}
	return payload
}

// DispatchCall builds a CallDispatch host call from CallerAddr with no
// attached value.
func DispatchCall(op types.OperationID, payload []byte) types.HostCall {
	return types.HostCall{
		Caller:  CallerAddr,
		Kind:    types.CallDispatch,
		Op:      op,
		Payload: payload,
	}
}

// ForwardCall builds a CallForward host call from CallerAddr with no
// attached or forwarded value.
func ForwardCall(op types.OperationID, payload []byte) types.HostCall {
	return types.HostCall{
		Caller:  CallerAddr,
		Kind:    types.CallForward,
		Op:      op,
		Payload: payload,
	}
}

// Batch wraps calls into a HostBatch for HostAddr.
func Batch(calls ...types.HostCall) types.HostBatch {
	return types.HostBatch{Host: HostAddr, Calls: calls}
}

// PlaceholderPayload builds a call payload of selector || placeholder
// || tail, with the placeholder window at offset 4.
func PlaceholderPayload(selector types.Selector, placeholder types.Word, tail ...byte) []byte {
	payload := make([]byte, 0, len(selector)+len(placeholder)+len(tail))
	payload = append(payload, selector[:]...)
	payload = append(payload, placeholder[:]...)
	return append(payload, tail...)
}
