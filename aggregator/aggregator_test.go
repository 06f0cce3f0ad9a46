package aggregator

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockberries/cramberry/pkg/cramberry"

	"github.com/blockberries/tollgate"
	"github.com/blockberries/tollgate/types"
)

var aggSelf = types.Address{0xa6}

// fakeDispatcher scripts per-target outcomes and records calls.
type fakeDispatcher struct {
	calls   []types.BatchCall
	outputs map[types.Address][]byte
	fails   map[types.Address][]byte // target -> revert payload
}

func (d *fakeDispatcher) Call(_ context.Context, _ *tollgate.Frame, call types.BatchCall) ([]byte, error) {
	d.calls = append(d.calls, call)
	if revert, ok := d.fails[call.Target]; ok {
		return nil, &tollgate.CallFailedError{Target: call.Target, Revert: revert}
	}
	return d.outputs[call.Target], nil
}

func frameWithValue(v int64) *tollgate.Frame {
	return &tollgate.Frame{Host: types.Address{0x01}, Caller: types.Address{0x02}, Value: big.NewInt(v)}
}

func TestAggregateInOrder(t *testing.T) {
	t1, t2 := types.Address{0x11}, types.Address{0x12}
	disp := &fakeDispatcher{outputs: map[types.Address][]byte{t1: []byte("one"), t2: []byte("two")}}
	a, err := New(aggSelf, disp)
	require.NoError(t, err)

	results, err := a.Aggregate(context.Background(), frameWithValue(0), []types.BatchCall{
		{Target: t1}, {Target: t2},
	}, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].Success)
	assert.Equal(t, []byte("one"), results[0].ReturnData)
	assert.Equal(t, []byte("two"), results[1].ReturnData)
	require.Len(t, disp.calls, 2)
	assert.Equal(t, t1, disp.calls[0].Target, "legs dispatch in batch order")
}

func TestAggregateTotalMismatch(t *testing.T) {
	disp := &fakeDispatcher{}
	a, err := New(aggSelf, disp)
	require.NoError(t, err)

	_, err = a.Aggregate(context.Background(), frameWithValue(5), []types.BatchCall{
		{Target: types.Address{0x11}, Value: types.Uint64Word(3)},
	}, big.NewInt(5))
	require.Error(t, err)
	assert.Empty(t, disp.calls, "no leg runs when the total does not match")
}

func TestStrictLegAbortsBatch(t *testing.T) {
	bad := types.Address{0x13}
	disp := &fakeDispatcher{
		outputs: map[types.Address][]byte{{0x11}: []byte("ok")},
		fails:   map[types.Address][]byte{bad: []byte("leg revert")},
	}
	a, err := New(aggSelf, disp)
	require.NoError(t, err)

	_, err = a.Aggregate(context.Background(), frameWithValue(0), []types.BatchCall{
		{Target: types.Address{0x11}},
		{Target: bad},
		{Target: types.Address{0x14}},
	}, nil)
	require.Error(t, err)
	revert, ok := tollgate.RevertData(err)
	require.True(t, ok, "abort carries the failing leg's revert payload")
	assert.Equal(t, []byte("leg revert"), revert)
	assert.Len(t, disp.calls, 2, "legs after the failure never run")
}

func TestTolerantLegRecordsFailure(t *testing.T) {
	bad := types.Address{0x13}
	disp := &fakeDispatcher{
		outputs: map[types.Address][]byte{{0x11}: []byte("ok")},
		fails:   map[types.Address][]byte{bad: []byte("leg revert")},
	}
	a, err := New(aggSelf, disp)
	require.NoError(t, err)

	results, err := a.Aggregate(context.Background(), frameWithValue(0), []types.BatchCall{
		{Target: bad, AllowFailure: true},
		{Target: types.Address{0x11}},
	}, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.False(t, results[0].Success)
	assert.Equal(t, []byte("leg revert"), results[0].ReturnData, "tolerated failure keeps raw revert data")
	assert.True(t, results[1].Success)
}

func TestHandleCallDecodesBatch(t *testing.T) {
	target := types.Address{0x11}
	disp := &fakeDispatcher{outputs: map[types.Address][]byte{target: []byte("hi")}}
	a, err := New(aggSelf, disp)
	require.NoError(t, err)

	payload, err := types.EncodeAggregate([]types.BatchCall{{Target: target}})
	require.NoError(t, err)

	out, err := a.HandleCall(context.Background(), frameWithValue(0), payload)
	require.NoError(t, err)

	var outcome types.ExecuteOutcome
	require.NoError(t, cramberry.Unmarshal(out, &outcome))
	require.Len(t, outcome.Results, 1)
	assert.Equal(t, []byte("hi"), outcome.Results[0].ReturnData)
}

func TestHandleCallRejectsWrongSelector(t *testing.T) {
	a, err := New(aggSelf, &fakeDispatcher{})
	require.NoError(t, err)

	payload, err := types.EncodeOperation(&types.SweepOp{Asset: types.NativeAsset, Recipient: types.Address{0x09}})
	require.NoError(t, err)
	_, err = a.HandleCall(context.Background(), frameWithValue(0), payload)
	require.Error(t, err)
}
