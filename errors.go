package tollgate

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/blockberries/tollgate/types"
)

// Parameterless failure causes.
var (
	// ErrDirectInvocation: a frame-borrowing component was called under
	// its own identity instead of a host's.
	ErrDirectInvocation = errors.New("direct invocation of a frame-borrowing component")

	// ErrNoFunds: a pull found nothing to move.
	ErrNoFunds = errors.New("no funds available to pull")

	// ErrSentinelNotSet: a settlement-gated sweep found no success
	// sentinel for the operation.
	ErrSentinelNotSet = errors.New("settlement sentinel not set")

	// ErrZeroRouterAddress: a shim was constructed without a
	// downstream router identity.
	ErrZeroRouterAddress = errors.New("downstream router identity is zero")
)

// UnsupportedOperationError reports an execute payload whose leading
// selector is not the batch-with-value operation.
type UnsupportedOperationError struct {
	Selector types.Selector
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("unsupported operation %s: execute accepts only %s", e.Selector, types.SelAggregate)
}

// UnrecognizedOperationError reports a dispatch payload whose selector
// maps to no routable operation.
type UnrecognizedOperationError struct {
	Selector types.Selector
}

func (e *UnrecognizedOperationError) Error() string {
	return fmt.Sprintf("unrecognized operation selector %s", e.Selector)
}

// PartialFailureError reports a batch leg marked failure-tolerant.
// The router requires every leg to be strict.
type PartialFailureError struct {
	Index int
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("partial failure not allowed: call %d is marked failure-tolerant", e.Index)
}

// CallFailedError reports a failed dispatched call, carrying the
// callee's revert payload verbatim.
type CallFailedError struct {
	Target types.Address
	Revert []byte
}

func (e *CallFailedError) Error() string {
	return fmt.Sprintf("call to %s failed: %q", e.Target, e.Revert)
}

// IsCallFailed checks whether an error is a CallFailedError and
// returns it.
func IsCallFailed(err error) (*CallFailedError, bool) {
	var c *CallFailedError
	if errors.As(err, &c) {
		return c, true
	}
	return nil, false
}

// ForwardFailedError reports a failed downstream router call from the
// shim, carrying the downstream's revert payload verbatim.
type ForwardFailedError struct {
	Revert []byte
}

func (e *ForwardFailedError) Error() string {
	return fmt.Sprintf("downstream router call failed: %q", e.Revert)
}

// IsForwardFailed checks whether an error is a ForwardFailedError and
// returns it.
func IsForwardFailed(err error) (*ForwardFailedError, bool) {
	var f *ForwardFailedError
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}

// InsufficientValueError reports an exact-amount native pull whose
// attached value falls short.
type InsufficientValueError struct {
	Required *big.Int
	Received *big.Int
}

func (e *InsufficientValueError) Error() string {
	return fmt.Sprintf("insufficient value supplied: required %s, received %s", e.Required, e.Received)
}

// OutOfBoundsError reports an injection window that does not fit the
// payload.
type OutOfBoundsError struct {
	Offset     int
	PayloadLen int
}

func (e *OutOfBoundsError) Error() string {
	return fmt.Sprintf("injection window [%d, %d) out of bounds for %d-byte payload", e.Offset, e.Offset+32, e.PayloadLen)
}

// PlaceholderMismatchError reports an injection window whose current
// bytes differ from the expected placeholder.
type PlaceholderMismatchError struct {
	Offset int
	Want   types.Word
	Got    types.Word
}

func (e *PlaceholderMismatchError) Error() string {
	return fmt.Sprintf("placeholder mismatch at offset %d: want %s, have %s", e.Offset, e.Want, e.Got)
}

// InsufficientBalanceError reports a debit exceeding the owner's
// holding.
type InsufficientBalanceError struct {
	Owner types.Address
	Asset types.Asset
	Have  *big.Int
	Need  *big.Int
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient %s balance for %s: have %s, need %s", e.Asset, e.Owner, e.Have, e.Need)
}

// InsufficientAllowanceError reports a pull exceeding what the owner
// approved for the spender.
type InsufficientAllowanceError struct {
	Owner   types.Address
	Asset   types.Asset
	Spender types.Address
	Have    *big.Int
	Need    *big.Int
}

func (e *InsufficientAllowanceError) Error() string {
	return fmt.Sprintf("insufficient %s allowance from %s to %s: have %s, need %s", e.Asset, e.Owner, e.Spender, e.Have, e.Need)
}

// RevertError carries an explicit failure payload from a call target.
type RevertError struct {
	Data []byte
}

func (e *RevertError) Error() string {
	return fmt.Sprintf("revert: %q", e.Data)
}

// Revert builds an error carrying data as its failure payload. The
// bytes ride through the fabric unmodified.
func Revert(data []byte) error {
	return &RevertError{Data: data}
}

// RevertBytes returns the failure payload for any error: the carried
// revert data when present, otherwise the error message bytes. Never
// nil for a non-nil error.
func RevertBytes(err error) []byte {
	if data, ok := RevertData(err); ok {
		return data
	}
	if err == nil {
		return nil
	}
	return []byte(err.Error())
}

// RevertData extracts the failure payload from an error chain. It
// recognizes explicit reverts and the call/forward failure wrappers.
// Errors with no carried payload report false.
func RevertData(err error) ([]byte, bool) {
	var r *RevertError
	if errors.As(err, &r) {
		return r.Data, true
	}
	var c *CallFailedError
	if errors.As(err, &c) {
		return c.Revert, true
	}
	var f *ForwardFailedError
	if errors.As(err, &f) {
		return f.Revert, true
	}
	return nil, false
}
