// Package ledger implements the engine's world state: native and
// token balances, pull allowances, and per-identity storage slots.
//
// All mutation happens inside a [Tx], a staged changeset over the
// base state. A transaction's writes land atomically on Commit or
// vanish on Discard; transient slots vanish either way. One host
// invocation maps to exactly one transaction.
package ledger

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/blockberries/tollgate/types"
)

// ErrTxDone is returned by any operation on a committed or discarded
// transaction.
var ErrTxDone = errors.New("ledger: transaction already finished")

type balanceKey struct {
	owner types.Address
	asset types.Asset
}

type allowanceKey struct {
	owner   types.Address
	asset   types.Asset
	spender types.Address
}

type slotKey struct {
	owner types.Address
	slot  types.Hash
}

// SlotEntry is one durable slot write.
type SlotEntry struct {
	Owner types.Address
	Slot  types.Hash
	Value types.Word
}

// SlotBacking persists storage slots beyond the process lifetime.
// StoreBatch must apply all entries atomically.
type SlotBacking interface {
	Load(owner types.Address, slot types.Hash) (types.Word, bool, error)
	StoreBatch(entries []SlotEntry) error
	Close() error
}

// Ledger is the base world state. Balances and allowances are
// in-memory; slots optionally fall through to a durable backing.
type Ledger struct {
	mu        sync.RWMutex
	balances  map[balanceKey]*big.Int
	allow     map[allowanceKey]*big.Int
	slots     map[slotKey]types.Word
	backing   SlotBacking
	transient bool
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithSlotBacking routes slot reads through, and commits slot writes
// to, a durable store.
func WithSlotBacking(b SlotBacking) Option {
	return func(l *Ledger) { l.backing = b }
}

// WithoutTransientSlots models an environment that lacks the
// transaction-scoped slot capability. Transactions then carry no
// transient store and frames expose a nil one.
func WithoutTransientSlots() Option {
	return func(l *Ledger) { l.transient = false }
}

// New creates an empty ledger. Transient slots are available unless
// disabled.
func New(opts ...Option) *Ledger {
	l := &Ledger{
		balances:  make(map[balanceKey]*big.Int),
		allow:     make(map[allowanceKey]*big.Int),
		slots:     make(map[slotKey]types.Word),
		transient: true,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Capabilities reports the slot facilities this ledger provides.
func (l *Ledger) Capabilities() types.Capabilities {
	var c types.Capabilities
	if l.transient {
		c |= types.CapTransientSlots
	}
	if l.backing != nil {
		c |= types.CapDurableSlots
	}
	return c
}

// SetBalance writes a base balance directly, bypassing any open
// transaction. Bootstrap and test seeding only.
func (l *Ledger) SetBalance(owner types.Address, asset types.Asset, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[balanceKey{owner, asset}] = new(big.Int).Set(amount)
}

// SetAllowance writes a base allowance directly. Bootstrap and test
// seeding only.
func (l *Ledger) SetAllowance(owner types.Address, asset types.Asset, spender types.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.allow[allowanceKey{owner, asset, spender}] = new(big.Int).Set(amount)
}

// Balance returns the committed balance. Missing accounts hold zero.
func (l *Ledger) Balance(owner types.Address, asset types.Asset) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.baseBalance(balanceKey{owner, asset})
}

// Allowance returns the committed allowance.
func (l *Ledger) Allowance(owner types.Address, asset types.Asset, spender types.Address) *big.Int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.baseAllowance(allowanceKey{owner, asset, spender})
}

// Slot returns the committed value of a storage slot. Unwritten slots
// read as the zero word.
func (l *Ledger) Slot(owner types.Address, slot types.Hash) (types.Word, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.baseSlot(slotKey{owner, slot})
}

// baseBalance returns a copy of the stored balance. Callers hold at
// least a read lock.
func (l *Ledger) baseBalance(k balanceKey) *big.Int {
	if v, ok := l.balances[k]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

func (l *Ledger) baseAllowance(k allowanceKey) *big.Int {
	if v, ok := l.allow[k]; ok {
		return new(big.Int).Set(v)
	}
	return new(big.Int)
}

func (l *Ledger) baseSlot(k slotKey) (types.Word, error) {
	if w, ok := l.slots[k]; ok {
		return w, nil
	}
	if l.backing != nil {
		w, ok, err := l.backing.Load(k.owner, k.slot)
		if err != nil {
			return types.Word{}, fmt.Errorf("ledger: load slot %s/%s: %w", k.owner, k.slot, err)
		}
		if ok {
			return w, nil
		}
	}
	return types.Word{}, nil
}

// Close releases the slot backing, if any.
func (l *Ledger) Close() error {
	if l.backing != nil {
		return l.backing.Close()
	}
	return nil
}
