// Package tollgate defines a delegated execution and conditional
// settlement engine: hosts borrow the router and shim components into
// their own execution frames to batch outbound calls, patch live
// balances into prepared payloads, and sweep residual fees, with
// settlement gated on per-operation success sentinels.
//
// The core components never act under their own identities. Every
// operation takes a [Frame] describing whose balances and storage the
// code is borrowing; a component reached directly, under its own
// identity, refuses to run.
//
// Collaborators (state, funds movement, call routing, batching,
// events) are interfaces. The ledger, engine, and aggregator packages
// provide the reference implementations; anything else satisfying the
// contracts below can stand in.
package tollgate

import (
	"context"
	"math/big"

	"github.com/blockberries/tollgate/types"
)

// Frame is one borrowed execution frame. Component code reads and
// writes the Host's balances and slots; it holds no state of its own.
//
// The engine guarantees the following for every frame it builds:
//  1. Value has already been moved from Caller to Host.
//  2. State and Tokens belong to one staged transaction; their writes
//     commit or roll back with the whole invocation.
//  3. Transient is nil exactly when the environment lacks the
//     transaction-scoped slot capability.
type Frame struct {
	// Host is the identity whose balances and slots this frame
	// operates on.
	Host types.Address
	// Caller initiated the frame. Pulls draw from it.
	Caller types.Address
	// Value is the native amount the caller attached. Never nil,
	// may be zero.
	Value *big.Int
	// State is the staged world-state view.
	State HostState
	// Tokens moves funds within the same staged transaction.
	Tokens TokenMover
	// Transient holds transaction-scoped slots, or nil.
	Transient TransientSlots
}

// Sub derives the frame a callee runs under: its own identity as
// host, the current host as caller. State, tokens and transient slots
// carry over; they belong to the transaction, not the frame.
func (f *Frame) Sub(target types.Address, value *big.Int) *Frame {
	if value == nil {
		value = new(big.Int)
	}
	return &Frame{
		Host:      target,
		Caller:    f.Host,
		Value:     value,
		State:     f.State,
		Tokens:    f.Tokens,
		Transient: f.Transient,
	}
}

// HostState is the read surface of the staged world state plus the
// storage slot primitive. All mutation of balances goes through
// [TokenMover]; slots are written directly.
type HostState interface {
	// Balance returns owner's holding of asset. Missing accounts hold
	// zero.
	Balance(ctx context.Context, owner types.Address, asset types.Asset) (*big.Int, error)

	// Allowance returns what spender may still pull from owner. The
	// unlimited allowance reports as the all-ones word.
	Allowance(ctx context.Context, owner types.Address, asset types.Asset, spender types.Address) (*big.Int, error)

	// SlotLoad reads a 32-byte storage slot in owner's space.
	// Unwritten slots read as the zero word.
	SlotLoad(ctx context.Context, owner types.Address, slot types.Hash) (types.Word, error)

	// SlotStore writes a 32-byte storage slot in owner's space.
	SlotStore(ctx context.Context, owner types.Address, slot types.Hash, value types.Word) error
}

// TransientSlots are storage slots scoped to the enclosing
// transaction. They are destroyed automatically when the transaction
// ends, on commit and on rollback alike.
type TransientSlots interface {
	Load(owner types.Address, slot types.Hash) types.Word
	Store(owner types.Address, slot types.Hash, value types.Word)
}

// TokenMover is the safe funds-move family. Implementations MUST NOT
// silently no-op: if the exact amount cannot move, the call errors.
//
// The native asset moves by Push only; Pull and Approve reject it.
type TokenMover interface {
	// Push moves amount of asset from owner to recipient on the
	// owner's own authority.
	Push(ctx context.Context, asset types.Asset, owner, recipient types.Address, amount *big.Int) error

	// Pull moves amount of asset from owner to recipient on spender's
	// authority, consuming allowance unless it is unlimited.
	Pull(ctx context.Context, asset types.Asset, spender, owner, recipient types.Address, amount *big.Int) error

	// Approve lets spender pull up to amount of owner's asset. The
	// all-ones word is the unlimited approval and is never decremented.
	Approve(ctx context.Context, asset types.Asset, owner, spender types.Address, amount *big.Int) error
}

// Aggregator executes a batch of outbound calls in order.
//
// The contract: calls carry (target, failure tolerance, value,
// payload); total must equal the sum of the per-call values; the
// result has one entry per call, in order, with raw return or revert
// data. A disallowed failure aborts the whole batch with an error
// carrying the failing leg's revert payload.
type Aggregator interface {
	Aggregate(ctx context.Context, frame *Frame, calls []types.BatchCall, total *big.Int) ([]types.CallResult, error)
}

// Dispatcher is the call fabric: it routes one outbound call to the
// target registered under call.Target, moving call.Value from the
// frame's host first. The callee runs under a derived frame with its
// own identity as host.
//
// Failure errors preserve the callee's revert payload verbatim;
// recover it with [RevertData].
type Dispatcher interface {
	Call(ctx context.Context, frame *Frame, call types.BatchCall) ([]byte, error)
}

// CallTarget is anything reachable by address through the fabric.
type CallTarget interface {
	// HandleCall executes input under the target's own frame and
	// returns raw return data. Returning an error aborts the call;
	// wrap payload-carrying failures with [Revert].
	HandleCall(ctx context.Context, frame *Frame, input []byte) ([]byte, error)
}

// EventSink receives observability events. Sinks MUST NOT influence
// execution: the engine logs and discards sink errors, and events are
// delivered even for invocations that later roll back.
type EventSink interface {
	Emit(ctx context.Context, ev types.Event) error
}

// Connection represents a transport-agnostic connection to a running
// engine. Both the gRPC client and the in-process adapter implement
// this.
type Connection interface {
	// Submit executes one host batch as a single atomic invocation:
	// every call applies, or none do.
	Submit(ctx context.Context, batch types.HostBatch) (types.BatchReceipt, error)

	// Query reads engine state. Safe for concurrent use, including
	// concurrently with Submit; reads see the last committed state.
	Query(ctx context.Context, req types.StateQuery) (types.StateQueryResult, error)

	// Info reports the engine's component identities and capabilities.
	Info(ctx context.Context) (types.EngineInfo, error)

	// WatchEvents streams observability events as they are emitted,
	// filtered to the given kinds (all kinds when empty). The channel
	// closes when ctx ends or the connection closes.
	WatchEvents(ctx context.Context, kinds ...string) (<-chan types.Event, error)

	// Close terminates the connection.
	Close() error
}
