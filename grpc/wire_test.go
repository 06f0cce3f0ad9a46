package tollgrpc

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockberries/cramberry/pkg/cramberry"

	"github.com/blockberries/tollgate"
	"github.com/blockberries/tollgate/types"
)

// roundTrip encodes an error onto the wire form, serializes it, and
// rebuilds the typed error on the other side.
func roundTrip(t *testing.T, err error) error {
	t.Helper()
	encoded, merr := cramberry.Marshal(encodeFailure(err))
	require.NoError(t, merr)
	var f WireFailure
	require.NoError(t, cramberry.Unmarshal(encoded, &f))
	return f.Err()
}

func TestFailureRoundTripSentinels(t *testing.T) {
	for _, sentinel := range []error{
		tollgate.ErrDirectInvocation,
		tollgate.ErrNoFunds,
		tollgate.ErrSentinelNotSet,
	} {
		assert.ErrorIs(t, roundTrip(t, sentinel), sentinel)
		assert.ErrorIs(t, roundTrip(t, fmt.Errorf("wrapped: %w", sentinel)), sentinel)
	}
}

func TestFailureRoundTripTyped(t *testing.T) {
	sel := types.Selector{0xde, 0xad, 0xbe, 0xef}

	got := roundTrip(t, &tollgate.UnrecognizedOperationError{Selector: sel})
	var unrecognized *tollgate.UnrecognizedOperationError
	require.ErrorAs(t, got, &unrecognized)
	assert.Equal(t, sel, unrecognized.Selector)

	got = roundTrip(t, &tollgate.UnsupportedOperationError{Selector: sel})
	var unsupported *tollgate.UnsupportedOperationError
	require.ErrorAs(t, got, &unsupported)
	assert.Equal(t, sel, unsupported.Selector)

	got = roundTrip(t, &tollgate.PartialFailureError{Index: 3})
	var partial *tollgate.PartialFailureError
	require.ErrorAs(t, got, &partial)
	assert.Equal(t, 3, partial.Index)

	got = roundTrip(t, &tollgate.CallFailedError{Target: types.Address{0x42}, Revert: []byte{0x00, 0xff, 0x00}})
	called, ok := tollgate.IsCallFailed(got)
	require.True(t, ok)
	assert.Equal(t, types.Address{0x42}, called.Target)
	assert.Equal(t, []byte{0x00, 0xff, 0x00}, called.Revert, "revert bytes cross the wire unchanged")

	got = roundTrip(t, &tollgate.ForwardFailedError{Revert: []byte("BRIDGE_PAUSED")})
	forwarded, ok := tollgate.IsForwardFailed(got)
	require.True(t, ok)
	assert.Equal(t, []byte("BRIDGE_PAUSED"), forwarded.Revert)

	got = roundTrip(t, &tollgate.InsufficientValueError{
		Required: types.Uint64Word(10).Big(),
		Received: types.Uint64Word(5).Big(),
	})
	var short *tollgate.InsufficientValueError
	require.ErrorAs(t, got, &short)
	assert.Equal(t, types.Uint64Word(10).Big(), short.Required)
	assert.Equal(t, types.Uint64Word(5).Big(), short.Received)

	got = roundTrip(t, &tollgate.OutOfBoundsError{Offset: 4, PayloadLen: 20})
	var bounds *tollgate.OutOfBoundsError
	require.ErrorAs(t, got, &bounds)
	assert.Equal(t, 4, bounds.Offset)
	assert.Equal(t, 20, bounds.PayloadLen)

	got = roundTrip(t, &tollgate.PlaceholderMismatchError{
		Offset: 4,
		Want:   types.Uint64Word(1),
		Got:    types.Uint64Word(2),
	})
	var mismatch *tollgate.PlaceholderMismatchError
	require.ErrorAs(t, got, &mismatch)
	assert.Equal(t, types.Uint64Word(1), mismatch.Want)
	assert.Equal(t, types.Uint64Word(2), mismatch.Got)
}

func TestFailureRoundTripOther(t *testing.T) {
	got := roundTrip(t, errors.New("something else entirely"))
	require.Error(t, got)
	assert.Contains(t, got.Error(), "something else entirely")
}
