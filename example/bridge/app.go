// Package bridge implements an example bridge-out endpoint and shows
// the engine's intended host flow: a wallet merges the router to patch
// its live balance into a prepared deposit payload, forwards the
// bridge leg through the shim, and settles its fee with a
// sentinel-gated sweep.
//
// The endpoint is deliberately small. It accepts one deposit call
// shape, consumes either attached native value or an approved token
// balance, and records deposits per beneficiary. Everything else —
// batching, balance injection, fee accounting — is the engine's job.
package bridge

import (
	"context"
	"crypto/sha256"
	"fmt"
	"math/big"
	"sync"

	"github.com/blockberries/tollgate"
	"github.com/blockberries/tollgate/types"
)

// DepositSelector heads every deposit payload.
var DepositSelector = types.Selector{0xb4, 0x1d, 0x0e, 0x01}

// Deposit payload layout, 68 bytes total:
//
//	[0:4)   DepositSelector
//	[4:36)  amount, 32-byte big-endian word
//	[36:68) beneficiary, 32-byte word, address right-aligned
//
// The amount window sits at offset 4 so a host can hand the router a
// pre-built payload with a placeholder there and let balance injection
// fill it in.
const (
	AmountOffset  = 4
	payloadLength = 68
)

// depositDomain versions the deposit-total slot derivation.
const depositDomain = "bridge/deposited/v1"

// DepositSlot returns the storage slot holding the running deposit
// total for a beneficiary: SHA-256(domain || 0x00 || beneficiary).
func DepositSlot(beneficiary types.Address) types.Hash {
	h := sha256.New()
	h.Write([]byte(depositDomain))
	h.Write([]byte{0x00})
	h.Write(beneficiary[:])
	var out types.Hash
	copy(out[:], h.Sum(nil))
	return out
}

// Endpoint is the bridge-out call target. Deposit totals live in the
// endpoint's storage slots in the world state, not in the struct, so
// they commit or roll back with the enclosing host invocation.
type Endpoint struct {
	self  types.Address
	asset types.Asset

	mu     sync.Mutex
	paused bool
}

var _ tollgate.CallTarget = (*Endpoint)(nil)

// New creates a bridge endpoint reachable at self, denominated in
// asset (the zero asset means native deposits).
func New(self types.Address, asset types.Asset) (*Endpoint, error) {
	if self.IsZero() {
		return nil, fmt.Errorf("bridge: zero self identity")
	}
	return &Endpoint{self: self, asset: asset}, nil
}

// Self returns the endpoint's call-target identity.
func (e *Endpoint) Self() types.Address { return e.self }

// SetPaused toggles the endpoint. A paused endpoint reverts every
// deposit with a fixed payload, which is how the example exercises
// failure propagation.
func (e *Endpoint) SetPaused(paused bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paused = paused
}

// Deposited reads the running total recorded for a beneficiary through
// a world-state view. Committed reads go through the ledger's Slot
// with the same DepositSlot key.
func (e *Endpoint) Deposited(ctx context.Context, state tollgate.HostState, beneficiary types.Address) (*big.Int, error) {
	w, err := state.SlotLoad(ctx, e.self, DepositSlot(beneficiary))
	if err != nil {
		return nil, err
	}
	return w.Big(), nil
}

// EncodeDeposit builds a deposit payload.
func EncodeDeposit(amount types.Word, beneficiary types.Address) []byte {
	payload := make([]byte, payloadLength)
	copy(payload, DepositSelector[:])
	copy(payload[AmountOffset:], amount[:])
	copy(payload[payloadLength-len(beneficiary):], beneficiary[:])
	return payload
}

// HandleCall implements tollgate.CallTarget. Native deposits consume
// the attached value; token deposits pull the stated amount from the
// caller's approval. Either way the stated and delivered amounts must
// agree exactly. The ack is the beneficiary's new running total.
func (e *Endpoint) HandleCall(ctx context.Context, frame *tollgate.Frame, input []byte) ([]byte, error) {
	e.mu.Lock()
	paused := e.paused
	e.mu.Unlock()
	if paused {
		return nil, tollgate.Revert([]byte("BRIDGE_PAUSED"))
	}

	if len(input) != payloadLength {
		return nil, tollgate.Revert([]byte("BRIDGE_BAD_PAYLOAD"))
	}
	var sel types.Selector
	copy(sel[:], input)
	if sel != DepositSelector {
		return nil, tollgate.Revert([]byte("BRIDGE_BAD_SELECTOR"))
	}

	var amountWord types.Word
	copy(amountWord[:], input[AmountOffset:AmountOffset+32])
	amount := amountWord.Big()
	if amount.Sign() == 0 {
		return nil, tollgate.Revert([]byte("BRIDGE_ZERO_AMOUNT"))
	}
	var beneficiary types.Address
	copy(beneficiary[:], input[payloadLength-len(beneficiary):])

	if e.asset.IsNative() {
		if frame.Value.Cmp(amount) != 0 {
			return nil, tollgate.Revert([]byte("BRIDGE_VALUE_MISMATCH"))
		}
	} else {
		if err := frame.Tokens.Pull(ctx, e.asset, e.self, frame.Caller, e.self, amount); err != nil {
			return nil, tollgate.Revert([]byte("BRIDGE_PULL_FAILED"))
		}
	}

	slot := DepositSlot(beneficiary)
	current, err := frame.State.SlotLoad(ctx, e.self, slot)
	if err != nil {
		return nil, err
	}
	total, err := types.WordFromBig(new(big.Int).Add(current.Big(), amount))
	if err != nil {
		return nil, tollgate.Revert([]byte("BRIDGE_TOTAL_OVERFLOW"))
	}
	if err := frame.State.SlotStore(ctx, e.self, slot, total); err != nil {
		return nil, err
	}
	return total[:], nil
}
