package tollgrpc

import (
	"errors"
	"fmt"

	"github.com/blockberries/tollgate"
	"github.com/blockberries/tollgate/types"
)

// Transport-specific wrapper types for the RPC boundary. These exist
// only for gRPC serialization; the domain types ride inside them
// unchanged.

// SubmitRequest wraps the parameter for Engine.Submit.
type SubmitRequest struct {
	Batch types.HostBatch `cramberry:"1"`
}

// SubmitResponse carries either a receipt or an in-band failure.
//
// Engine failures travel in-band rather than as gRPC status errors so
// the revert payload crosses the wire verbatim: a status message is a
// string, a WireFailure keeps the bytes.
type SubmitResponse struct {
	Receipt *types.BatchReceipt `cramberry:"1"`
	Failure *WireFailure        `cramberry:"2"`
}

// InfoRequest is the (empty) request for Engine.Info.
type InfoRequest struct{}

// WatchRequest opens an event stream filtered to Kinds (all kinds
// when empty).
type WatchRequest struct {
	Kinds []string `cramberry:"1"`
}

// EventFrame is one streamed event.
type EventFrame struct {
	Event types.Event `cramberry:"1"`
}

// Failure codes for the typed errors that cross the wire. Anything
// outside this set travels as failOther with its message.
const (
	failOther uint32 = iota
	failDirectInvocation
	failNoFunds
	failSentinelNotSet
	failUnsupportedOperation
	failUnrecognizedOperation
	failPartialFailure
	failCallFailed
	failForwardFailed
	failInsufficientValue
	failOutOfBounds
	failPlaceholderMismatch
)

// WireFailure is the serialized form of an engine error. Only the
// fields relevant to Code are populated.
type WireFailure struct {
	Code     uint32         `cramberry:"1"`
	Message  string         `cramberry:"2"`
	Revert   []byte         `cramberry:"3"`
	Index    uint32         `cramberry:"4"`
	Selector types.Selector `cramberry:"5"`
	Target   types.Address  `cramberry:"6"`
	Required types.Word     `cramberry:"7"`
	Received types.Word     `cramberry:"8"`
	Offset   uint32         `cramberry:"9"`
	Length   uint32         `cramberry:"10"`
	Want     types.Word     `cramberry:"11"`
	Got      types.Word     `cramberry:"12"`
}

// encodeFailure maps an engine error onto its wire form.
func encodeFailure(err error) *WireFailure {
	f := &WireFailure{Message: err.Error()}

	var unsupported *tollgate.UnsupportedOperationError
	var unrecognized *tollgate.UnrecognizedOperationError
	var partial *tollgate.PartialFailureError
	var called *tollgate.CallFailedError
	var forwarded *tollgate.ForwardFailedError
	var value *tollgate.InsufficientValueError
	var bounds *tollgate.OutOfBoundsError
	var placeholder *tollgate.PlaceholderMismatchError

	switch {
	case errors.Is(err, tollgate.ErrDirectInvocation):
		f.Code = failDirectInvocation
	case errors.Is(err, tollgate.ErrNoFunds):
		f.Code = failNoFunds
	case errors.Is(err, tollgate.ErrSentinelNotSet):
		f.Code = failSentinelNotSet
	case errors.As(err, &unsupported):
		f.Code = failUnsupportedOperation
		f.Selector = unsupported.Selector
	case errors.As(err, &unrecognized):
		f.Code = failUnrecognizedOperation
		f.Selector = unrecognized.Selector
	case errors.As(err, &partial):
		f.Code = failPartialFailure
		f.Index = uint32(partial.Index)
	case errors.As(err, &forwarded):
		f.Code = failForwardFailed
		f.Revert = forwarded.Revert
	case errors.As(err, &called):
		f.Code = failCallFailed
		f.Target = called.Target
		f.Revert = called.Revert
	case errors.As(err, &value):
		f.Code = failInsufficientValue
		f.Required, _ = types.WordFromBig(value.Required)
		f.Received, _ = types.WordFromBig(value.Received)
	case errors.As(err, &bounds):
		f.Code = failOutOfBounds
		f.Offset = uint32(bounds.Offset)
		f.Length = uint32(bounds.PayloadLen)
	case errors.As(err, &placeholder):
		f.Code = failPlaceholderMismatch
		f.Offset = uint32(placeholder.Offset)
		f.Want = placeholder.Want
		f.Got = placeholder.Got
	}
	return f
}

// Err rebuilds the typed engine error from its wire form.
func (f *WireFailure) Err() error {
	switch f.Code {
	case failDirectInvocation:
		return tollgate.ErrDirectInvocation
	case failNoFunds:
		return tollgate.ErrNoFunds
	case failSentinelNotSet:
		return tollgate.ErrSentinelNotSet
	case failUnsupportedOperation:
		return &tollgate.UnsupportedOperationError{Selector: f.Selector}
	case failUnrecognizedOperation:
		return &tollgate.UnrecognizedOperationError{Selector: f.Selector}
	case failPartialFailure:
		return &tollgate.PartialFailureError{Index: int(f.Index)}
	case failCallFailed:
		return &tollgate.CallFailedError{Target: f.Target, Revert: f.Revert}
	case failForwardFailed:
		return &tollgate.ForwardFailedError{Revert: f.Revert}
	case failInsufficientValue:
		return &tollgate.InsufficientValueError{Required: f.Required.Big(), Received: f.Received.Big()}
	case failOutOfBounds:
		return &tollgate.OutOfBoundsError{Offset: int(f.Offset), PayloadLen: int(f.Length)}
	case failPlaceholderMismatch:
		return &tollgate.PlaceholderMismatchError{Offset: int(f.Offset), Want: f.Want, Got: f.Got}
	default:
		return fmt.Errorf("engine failure: %s", f.Message)
	}
}
