package router

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockberries/tollgate"
	"github.com/blockberries/tollgate/types"
)

var refundAddr = types.Address{0xf0}

func TestSweepMovesWholeHolding(t *testing.T) {
	f := newFixture(t)
	f.ledger.SetBalance(hostAddr, testToken, big.NewInt(1000))
	frame := f.frame(t, 0)

	swept, err := f.router.Sweep(context.Background(), frame, testToken, feeAddr)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1000), swept)
	assert.Zero(t, f.balance(t, hostAddr, testToken).Sign())
	assert.Equal(t, big.NewInt(1000), f.balance(t, feeAddr, testToken))

	events := f.sink.byKind(EventSweep)
	require.Len(t, events, 1)
	amount, _ := events[0].Get("amount")
	assert.Equal(t, "1000", amount)
}

func TestSweepZeroHoldingIsSilent(t *testing.T) {
	f := newFixture(t)
	frame := f.frame(t, 0)

	swept, err := f.router.Sweep(context.Background(), frame, testToken, feeAddr)
	require.NoError(t, err)
	assert.Zero(t, swept.Sign())
	assert.Empty(t, f.sink.events, "a zero sweep leaves no event")
}

func TestRefundAndSweepSplitsHolding(t *testing.T) {
	f := newFixture(t)
	f.ledger.SetBalance(hostAddr, types.NativeAsset, big.NewInt(10))
	frame := f.frame(t, 0)

	refunded, swept, err := f.router.RefundAndSweep(context.Background(), frame,
		types.NativeAsset, refundAddr, big.NewInt(4), feeAddr)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(4), refunded)
	assert.Equal(t, big.NewInt(6), swept)
	assert.Equal(t, big.NewInt(4), f.balance(t, refundAddr, types.NativeAsset))
	assert.Equal(t, big.NewInt(6), f.balance(t, feeAddr, types.NativeAsset))

	assert.Empty(t, f.sink.byKind(EventRefundClamped))
	assert.Len(t, f.sink.byKind(EventRefund), 1)
	assert.Len(t, f.sink.byKind(EventSweep), 1)
	require.Len(t, f.sink.byKind(EventRefundSweep), 1)
}

func TestRefundClampedToHolding(t *testing.T) {
	f := newFixture(t)
	f.ledger.SetBalance(hostAddr, types.NativeAsset, big.NewInt(3))
	frame := f.frame(t, 0)

	refunded, swept, err := f.router.RefundAndSweep(context.Background(), frame,
		types.NativeAsset, refundAddr, big.NewInt(5), feeAddr)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(3), refunded, "the refund clamps to the holding")
	assert.Zero(t, swept.Sign())
	assert.Equal(t, big.NewInt(3), f.balance(t, refundAddr, types.NativeAsset))
	assert.Zero(t, f.balance(t, feeAddr, types.NativeAsset).Sign())

	clamps := f.sink.byKind(EventRefundClamped)
	require.Len(t, clamps, 1)
	requested, _ := clamps[0].Get("requested")
	actual, _ := clamps[0].Get("actual")
	assert.Equal(t, "5", requested)
	assert.Equal(t, "3", actual)

	assert.Empty(t, f.sink.byKind(EventSweep), "nothing left to sweep")
	summaries := f.sink.byKind(EventRefundSweep)
	require.Len(t, summaries, 1, "the summary is emitted even when the sweep is zero")
	sweptAttr, _ := summaries[0].Get("swept")
	assert.Equal(t, "0", sweptAttr)
}

func TestRefundAndSweepEmptyHolding(t *testing.T) {
	f := newFixture(t)
	frame := f.frame(t, 0)

	refunded, swept, err := f.router.RefundAndSweep(context.Background(), frame,
		types.NativeAsset, refundAddr, big.NewInt(5), feeAddr)
	require.NoError(t, err)
	assert.Zero(t, refunded.Sign())
	assert.Zero(t, swept.Sign())

	assert.Len(t, f.sink.byKind(EventRefundClamped), 1)
	assert.Empty(t, f.sink.byKind(EventRefund))
	assert.Len(t, f.sink.byKind(EventRefundSweep), 1)
}

func TestRefundAndSweepRejectsNegative(t *testing.T) {
	f := newFixture(t)
	frame := f.frame(t, 0)

	_, _, err := f.router.RefundAndSweep(context.Background(), frame,
		types.NativeAsset, refundAddr, big.NewInt(-1), feeAddr)
	require.Error(t, err)
}

func TestSweepIfSettledGatesOnSentinel(t *testing.T) {
	f := newFixture(t)
	f.ledger.SetBalance(hostAddr, types.NativeAsset, big.NewInt(100))
	frame := f.frame(t, 0)
	ctx := context.Background()
	op := types.OperationID{0x42}

	_, err := f.router.SweepIfSettled(ctx, frame, op, types.NativeAsset, feeAddr)
	require.ErrorIs(t, err, tollgate.ErrSentinelNotSet)
	assert.Equal(t, big.NewInt(100), f.balance(t, hostAddr, types.NativeAsset), "the fee stays put without settlement")

	require.NoError(t, f.store.TrySet(ctx, frame, op))

	swept, err := f.router.SweepIfSettled(ctx, frame, op, types.NativeAsset, feeAddr)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(100), swept)
	assert.Equal(t, big.NewInt(100), f.balance(t, feeAddr, types.NativeAsset))
}
