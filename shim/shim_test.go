package shim

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockberries/tollgate"
	"github.com/blockberries/tollgate/ledger"
	"github.com/blockberries/tollgate/sentinel"
	"github.com/blockberries/tollgate/types"
)

var (
	shimSelf   = types.Address{0x02}
	downstream = types.Address{0x03}
	hostAddr   = types.Address{0xaa}
	callerAddr = types.Address{0xcc}
)

// fakeDispatcher records forwards and plays back one scripted outcome.
type fakeDispatcher struct {
	out   []byte
	err   error
	calls []types.BatchCall
}

func (f *fakeDispatcher) Call(_ context.Context, _ *tollgate.Frame, call types.BatchCall) ([]byte, error) {
	f.calls = append(f.calls, call)
	if f.err != nil {
		return nil, f.err
	}
	return f.out, nil
}

type fixture struct {
	shim  *Shim
	store *sentinel.Store
	disp  *fakeDispatcher
	tx    *ledger.Tx
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := sentinel.New(types.Address{0x01})
	require.NoError(t, err)
	disp := &fakeDispatcher{}
	s, err := New(Config{Self: shimSelf, Downstream: downstream, Sentinels: store, Dispatcher: disp})
	require.NoError(t, err)
	return &fixture{shim: s, store: store, disp: disp}
}

func (f *fixture) frame(t *testing.T) *tollgate.Frame {
	t.Helper()
	if f.tx == nil {
		f.tx = ledger.New().Begin()
	}
	frame, err := f.tx.Enter(context.Background(), hostAddr, callerAddr, nil)
	require.NoError(t, err)
	return frame
}

func TestNewRejectsZeroDownstream(t *testing.T) {
	store, err := sentinel.New(types.Address{0x01})
	require.NoError(t, err)
	_, err = New(Config{Self: shimSelf, Downstream: types.Address{}, Sentinels: store, Dispatcher: &fakeDispatcher{}})
	require.ErrorIs(t, err, tollgate.ErrZeroRouterAddress)
}

func TestForwardSettlesOnSuccess(t *testing.T) {
	f := newFixture(t)
	frame := f.frame(t)
	ctx := context.Background()
	op := types.OperationID{0x42}
	f.disp.out = []byte("downstream said yes")

	out, err := f.shim.Forward(ctx, frame, op, []byte{0x01, 0x02}, big.NewInt(25))
	require.NoError(t, err)
	assert.Equal(t, []byte("downstream said yes"), out, "return data passes through unchanged")

	require.Len(t, f.disp.calls, 1)
	sent := f.disp.calls[0]
	assert.Equal(t, downstream, sent.Target, "every forward goes to the fixed downstream")
	assert.Equal(t, types.Uint64Word(25), sent.Value)
	assert.Equal(t, []byte{0x01, 0x02}, sent.Payload)

	set, err := f.store.IsSet(ctx, frame, op)
	require.NoError(t, err)
	assert.True(t, set)
}

func TestForwardFailureKeepsSentinelUnset(t *testing.T) {
	f := newFixture(t)
	frame := f.frame(t)
	ctx := context.Background()
	op := types.OperationID{0x42}
	f.disp.err = tollgate.Revert([]byte("BRIDGE_PAUSED"))

	_, err := f.shim.Forward(ctx, frame, op, []byte{0x01}, nil)
	forwardErr, ok := tollgate.IsForwardFailed(err)
	require.True(t, ok)
	assert.Equal(t, []byte("BRIDGE_PAUSED"), forwardErr.Revert, "the downstream revert payload rides back verbatim")

	set, err := f.store.IsSet(ctx, frame, op)
	require.NoError(t, err)
	assert.False(t, set)
}

func TestForwardFailureWithoutPayloadUsesMessage(t *testing.T) {
	f := newFixture(t)
	frame := f.frame(t)
	f.disp.err = tollgate.ErrNoFunds

	_, err := f.shim.Forward(context.Background(), frame, types.OperationID{0x42}, nil, nil)
	forwardErr, ok := tollgate.IsForwardFailed(err)
	require.True(t, ok)
	assert.Equal(t, []byte(tollgate.ErrNoFunds.Error()), forwardErr.Revert)
}

func TestForwardIsIdempotentOnSentinel(t *testing.T) {
	f := newFixture(t)
	frame := f.frame(t)
	ctx := context.Background()
	op := types.OperationID{0x42}

	_, err := f.shim.Forward(ctx, frame, op, nil, nil)
	require.NoError(t, err)
	_, err = f.shim.Forward(ctx, frame, op, nil, nil)
	require.NoError(t, err, "re-forwarding a settled operation is legal")

	set, err := f.store.IsSet(ctx, frame, op)
	require.NoError(t, err)
	assert.True(t, set)
	assert.Len(t, f.disp.calls, 2)
}

func TestForwardRefusesDirectInvocation(t *testing.T) {
	f := newFixture(t)
	direct := &tollgate.Frame{Host: shimSelf, Caller: callerAddr, Value: new(big.Int)}

	_, err := f.shim.Forward(context.Background(), direct, types.OperationID{}, nil, nil)
	require.ErrorIs(t, err, tollgate.ErrDirectInvocation)
	assert.Empty(t, f.disp.calls)
}

func TestHandleCallAlwaysRefuses(t *testing.T) {
	f := newFixture(t)

	_, err := f.shim.HandleCall(context.Background(), f.frame(t), nil)
	require.ErrorIs(t, err, tollgate.ErrDirectInvocation)
}
