package bridge_test

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockberries/tollgate"
	"github.com/blockberries/tollgate/example/bridge"
	"github.com/blockberries/tollgate/router"
	tolltest "github.com/blockberries/tollgate/testing"
	"github.com/blockberries/tollgate/types"
)

var (
	bridgeAddr   = types.Address{0xb1}
	feeCollector = types.Address{0xfe}
	beneficiary  = types.Address{0xbe, 0xef}
	token        = types.TokenAsset(types.Address{0x70})
)

// placeholder is the pre-agreed window content a host leaves in its
// prepared payload for the router to overwrite.
var placeholder = types.Word(bytes.Repeat([]byte{0xde, 0xad, 0xbe, 0xef}, 8))

func newEndpoint(t *testing.T, h *tolltest.Harness, asset types.Asset) *bridge.Endpoint {
	t.Helper()
	endpoint, err := bridge.New(bridgeAddr, asset)
	require.NoError(t, err)
	h.Register(bridgeAddr, endpoint)
	return endpoint
}

// deposited reads the committed running total for the beneficiary
// straight from the endpoint's storage slot.
func deposited(t *testing.T, h *tolltest.Harness) *big.Int {
	t.Helper()
	w, err := h.Ledger.Slot(bridgeAddr, bridge.DepositSlot(beneficiary))
	require.NoError(t, err)
	return w.Big()
}

// The host holds 500 token units produced by earlier legs; the
// prepared deposit payload carries a placeholder where the amount
// belongs. Balance injection patches the live balance in, the bridge
// pulls exactly that amount.
func TestInjectedDepositObservesLiveBalance(t *testing.T) {
	h := tolltest.NewHarness(t)
	newEndpoint(t, h, token)
	h.Fund(tolltest.HostAddr, token, 500)

	payload := bridge.EncodeDeposit(placeholder, beneficiary)
	op := tolltest.MustEncode(t, &types.InjectCallOp{Request: types.InjectionRequest{
		Asset:       token,
		Target:      bridgeAddr,
		Payload:     payload,
		Offset:      bridge.AmountOffset,
		Placeholder: placeholder,
	}})
	h.MustSubmit(tolltest.Batch(tolltest.DispatchCall(tolltest.OpID(1), op)))

	assert.Equal(t, big.NewInt(500), deposited(t, h))
	h.RequireBalance(tolltest.HostAddr, token, 0)
	h.RequireBalance(bridgeAddr, token, 500)

	trail := h.Collector.ByKind(router.EventBalanceInjection)
	require.Len(t, trail, 1)
	amount, _ := trail[0].Get("amount")
	outcome, _ := trail[0].Get("outcome")
	assert.Equal(t, "500", amount)
	assert.Equal(t, "success", outcome)
}

// A complete bridge-out: the forward leg runs the deposit batch and
// records the settlement sentinel; the second call in the same batch
// releases the accrued fee only because that sentinel is set.
func TestBridgeOutWithFeeSettlement(t *testing.T) {
	h := tolltest.NewHarness(t)
	newEndpoint(t, h, types.NativeAsset)

	// 3000 native on the host: 2900 bridged out, 100 accrued as fee.
	h.Fund(tolltest.HostAddr, types.NativeAsset, 3000)

	op := tolltest.OpID(7)
	deposit := bridge.EncodeDeposit(types.Uint64Word(2900), beneficiary)
	inner := tolltest.MustAggregate(t, types.BatchCall{
		Target:  bridgeAddr,
		Value:   types.Uint64Word(2900),
		Payload: deposit,
	})
	forward := tolltest.ForwardCall(op, inner)
	forward.ForwardValue = types.Uint64Word(2900)

	settle := tolltest.DispatchCall(op, tolltest.MustEncode(t, &types.SettledSweepOp{
		Asset:     types.NativeAsset,
		Recipient: feeCollector,
	}))

	h.MustSubmit(tolltest.Batch(forward, settle))

	assert.Equal(t, big.NewInt(2900), deposited(t, h))
	h.RequireBalance(bridgeAddr, types.NativeAsset, 2900)
	h.RequireBalance(feeCollector, types.NativeAsset, 100)
	h.RequireBalance(tolltest.HostAddr, types.NativeAsset, 0)
}

// Without a successful forward leg there is no sentinel, and the fee
// stays put.
func TestFeeSweepRefusedWithoutSettlement(t *testing.T) {
	h := tolltest.NewHarness(t)
	newEndpoint(t, h, types.NativeAsset)
	h.Fund(tolltest.HostAddr, types.NativeAsset, 100)

	settle := tolltest.DispatchCall(tolltest.OpID(8), tolltest.MustEncode(t, &types.SettledSweepOp{
		Asset:     types.NativeAsset,
		Recipient: feeCollector,
	}))
	_, err := h.Submit(tolltest.Batch(settle))
	require.ErrorIs(t, err, tollgate.ErrSentinelNotSet)
	h.RequireBalance(tolltest.HostAddr, types.NativeAsset, 100)
}

// A paused bridge reverts; the revert payload must surface verbatim
// through the shim, and the whole batch must leave no trace.
func TestPausedBridgeRollsBackBatch(t *testing.T) {
	h := tolltest.NewHarness(t)
	endpoint := newEndpoint(t, h, types.NativeAsset)
	endpoint.SetPaused(true)
	h.Fund(tolltest.HostAddr, types.NativeAsset, 3000)

	op := tolltest.OpID(9)
	deposit := bridge.EncodeDeposit(types.Uint64Word(2900), beneficiary)
	inner := tolltest.MustAggregate(t, types.BatchCall{
		Target:  bridgeAddr,
		Value:   types.Uint64Word(2900),
		Payload: deposit,
	})
	forward := tolltest.ForwardCall(op, inner)
	forward.ForwardValue = types.Uint64Word(2900)

	settle := tolltest.DispatchCall(op, tolltest.MustEncode(t, &types.SettledSweepOp{
		Asset:     types.NativeAsset,
		Recipient: feeCollector,
	}))

	_, err := h.Submit(tolltest.Batch(forward, settle))
	var forwardErr *tollgate.ForwardFailedError
	require.ErrorAs(t, err, &forwardErr)
	assert.Equal(t, []byte("BRIDGE_PAUSED"), forwardErr.Revert)

	assert.Zero(t, deposited(t, h).Sign())
	h.RequireBalance(tolltest.HostAddr, types.NativeAsset, 3000)
	h.RequireBalance(bridgeAddr, types.NativeAsset, 0)
	h.RequireBalance(feeCollector, types.NativeAsset, 0)

	settled, err := h.Engine.Settled(tolltest.HostAddr, op)
	require.NoError(t, err)
	assert.False(t, settled)
}

// A deposit that succeeds early in the batch must still vanish when a
// later leg fails. Deposit totals live in the endpoint's storage
// slots, so they are discarded with the rest of the staged changes.
func TestDepositRolledBackByLaterFailure(t *testing.T) {
	h := tolltest.NewHarness(t)
	newEndpoint(t, h, types.NativeAsset)
	h.Fund(tolltest.HostAddr, types.NativeAsset, 3000)

	op := tolltest.OpID(10)
	deposit := bridge.EncodeDeposit(types.Uint64Word(2900), beneficiary)
	inner := tolltest.MustAggregate(t, types.BatchCall{
		Target:  bridgeAddr,
		Value:   types.Uint64Word(2900),
		Payload: deposit,
	})
	forward := tolltest.ForwardCall(op, inner)
	forward.ForwardValue = types.Uint64Word(2900)

	// Gated on a different operation id, so the sweep leg fails after
	// the deposit has already been recorded.
	settle := tolltest.DispatchCall(tolltest.OpID(11), tolltest.MustEncode(t, &types.SettledSweepOp{
		Asset:     types.NativeAsset,
		Recipient: feeCollector,
	}))

	_, err := h.Submit(tolltest.Batch(forward, settle))
	require.ErrorIs(t, err, tollgate.ErrSentinelNotSet)

	assert.Zero(t, deposited(t, h).Sign())
	h.RequireBalance(tolltest.HostAddr, types.NativeAsset, 3000)
	h.RequireBalance(bridgeAddr, types.NativeAsset, 0)
	h.RequireBalance(feeCollector, types.NativeAsset, 0)
}
