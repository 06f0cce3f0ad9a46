package tolltest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockberries/cramberry/pkg/cramberry"

	"github.com/blockberries/tollgate"
	"github.com/blockberries/tollgate/router"
	"github.com/blockberries/tollgate/types"
)

// ConnectionFactory produces a tollgate.Connection for the harness's
// engine. Transport packages implement this to run the suite against
// their adapter.
type ConnectionFactory func(t *testing.T, h *Harness) tollgate.Connection

// RunConnectionSuite verifies that a Connection implementation behaves
// identically to the engine it fronts: receipts, typed errors, revert
// payloads, queries and event streams must all survive the transport.
func RunConnectionSuite(t *testing.T, factory ConnectionFactory) {
	t.Helper()
	ctx := context.Background()

	token := types.TokenAsset(types.Address{0x70})
	recipient := types.Address{0x99}

	queryBalance := func(t *testing.T, conn tollgate.Connection, owner types.Address, asset types.Asset) types.Word {
		t.Helper()
		data, err := cramberry.Marshal(&types.BalanceQuery{Owner: owner, Asset: asset})
		require.NoError(t, err)
		res, err := conn.Query(ctx, types.StateQuery{Path: types.QueryBalance, Data: data})
		require.NoError(t, err)
		require.True(t, res.OK(), res.Info)
		var w types.Word
		copy(w[:], res.Value)
		return w
	}

	t.Run("info_reports_identities", func(t *testing.T) {
		h := NewHarness(t)
		conn := factory(t, h)
		defer conn.Close()

		info, err := conn.Info(ctx)
		require.NoError(t, err)
		assert.Equal(t, RouterAddr, info.Router)
		assert.Equal(t, ShimAddr, info.Shim)
		assert.Equal(t, AggregatorAddr, info.Aggregator)
		assert.True(t, info.Capabilities.Has(types.CapTransientSlots))
	})

	t.Run("submit_sweeps_holding", func(t *testing.T) {
		h := NewHarness(t)
		conn := factory(t, h)
		defer conn.Close()
		h.Fund(HostAddr, token, 1000)

		payload := MustEncode(t, &types.SweepOp{Asset: token, Recipient: recipient})
		receipt, err := conn.Submit(ctx, Batch(DispatchCall(OpID(1), payload)))
		require.NoError(t, err)
		require.Len(t, receipt.Receipts, 1)

		var outcome types.SweepOutcome
		require.NoError(t, cramberry.Unmarshal(receipt.Receipts[0].Data, &outcome))
		assert.Equal(t, types.Uint64Word(1000), outcome.Amount)
		assert.Equal(t, types.Uint64Word(1000), queryBalance(t, conn, recipient, token))
		assert.True(t, queryBalance(t, conn, HostAddr, token).IsZero())
	})

	t.Run("failure_rolls_back_whole_batch", func(t *testing.T) {
		h := NewHarness(t)
		conn := factory(t, h)
		defer conn.Close()
		h.Fund(HostAddr, token, 1000)

		sweep := MustEncode(t, &types.SweepOp{Asset: token, Recipient: recipient})
		gated := MustEncode(t, &types.SettledSweepOp{Asset: token, Recipient: recipient})
		_, err := conn.Submit(ctx, Batch(
			DispatchCall(OpID(2), sweep),
			DispatchCall(OpID(2), gated),
		))
		require.ErrorIs(t, err, tollgate.ErrSentinelNotSet)

		// The sweep that preceded the failing call left no trace.
		assert.Equal(t, types.Uint64Word(1000), queryBalance(t, conn, HostAddr, token))
		assert.True(t, queryBalance(t, conn, recipient, token).IsZero())
	})

	t.Run("forward_settles_within_batch", func(t *testing.T) {
		h := NewHarness(t)
		conn := factory(t, h)
		defer conn.Close()
		h.Fund(HostAddr, token, 700)

		op := OpID(3)
		gated := MustEncode(t, &types.SettledSweepOp{Asset: token, Recipient: recipient})
		receipt, err := conn.Submit(ctx, Batch(
			ForwardCall(op, MustAggregate(t)),
			DispatchCall(op, gated),
		))
		require.NoError(t, err)
		require.Len(t, receipt.Receipts, 2)
		assert.Equal(t, types.Uint64Word(700), queryBalance(t, conn, recipient, token))
	})

	t.Run("revert_payload_survives_transport", func(t *testing.T) {
		h := NewHarness(t)
		conn := factory(t, h)
		defer conn.Close()

		revert := []byte("BRIDGE_PAUSED:code=7")
		target := types.Address{0xf1}
		h.Register(target, new(ScriptTarget).Fail(revert))

		inner := MustAggregate(t, types.BatchCall{Target: target})
		_, err := conn.Submit(ctx, Batch(ForwardCall(OpID(4), inner)))

		var forwardErr *tollgate.ForwardFailedError
		require.ErrorAs(t, err, &forwardErr)
		assert.Equal(t, revert, forwardErr.Revert, "revert bytes must cross the transport unchanged")

		// The failed forward left the sentinel unset.
		data, merr := cramberry.Marshal(&types.SettledQuery{Host: HostAddr, Op: OpID(4)})
		require.NoError(t, merr)
		res, qerr := conn.Query(ctx, types.StateQuery{Path: types.QuerySettled, Data: data})
		require.NoError(t, qerr)
		require.True(t, res.OK())
		assert.Equal(t, []byte{0}, res.Value)
	})

	t.Run("unrecognized_operation", func(t *testing.T) {
		h := NewHarness(t)
		conn := factory(t, h)
		defer conn.Close()

		bogus := append([]byte{0xde, 0xad, 0xbe, 0xef}, 0x00)
		_, err := conn.Submit(ctx, Batch(DispatchCall(OpID(5), bogus)))

		var unrecognized *tollgate.UnrecognizedOperationError
		require.ErrorAs(t, err, &unrecognized)
		assert.Equal(t, types.Selector{0xde, 0xad, 0xbe, 0xef}, unrecognized.Selector)
	})

	t.Run("watch_events_streams_sweeps", func(t *testing.T) {
		h := NewHarness(t)
		conn := factory(t, h)
		defer conn.Close()
		h.Fund(HostAddr, token, 50)

		watchCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		events, err := conn.WatchEvents(watchCtx, router.EventSweep)
		require.NoError(t, err)
		// Give a remote transport time to register the subscription
		// before the batch emits.
		time.Sleep(100 * time.Millisecond)

		payload := MustEncode(t, &types.SweepOp{Asset: token, Recipient: recipient})
		_, err = conn.Submit(ctx, Batch(DispatchCall(OpID(6), payload)))
		require.NoError(t, err)

		select {
		case ev := <-events:
			assert.Equal(t, router.EventSweep, ev.Kind)
			amount, ok := ev.Get("amount")
			require.True(t, ok)
			assert.Equal(t, "50", amount)
		case <-time.After(5 * time.Second):
			t.Fatal("no sweep event within 5s")
		}
	})
}
