package ledger

import (
	"context"
	"fmt"
	"math/big"

	"github.com/blockberries/tollgate"
	"github.com/blockberries/tollgate/types"
)

// Tx is one staged changeset over the base state. It implements
// [tollgate.HostState]; funds movement goes through [Tx.Mover].
//
// A Tx is not safe for concurrent use. The engine runs one host
// invocation per transaction, serially.
type Tx struct {
	lg        *Ledger
	balances  map[balanceKey]*big.Int
	allow     map[allowanceKey]*big.Int
	slots     map[slotKey]types.Word
	transient *transientSlots
	done      bool
}

// Begin opens a transaction over the current committed state.
func (l *Ledger) Begin() *Tx {
	t := &Tx{
		lg:       l,
		balances: make(map[balanceKey]*big.Int),
		allow:    make(map[allowanceKey]*big.Int),
		slots:    make(map[slotKey]types.Word),
	}
	if l.transient {
		t.transient = &transientSlots{m: make(map[slotKey]types.Word)}
	}
	return t
}

// Run executes fn inside a fresh transaction, committing on nil and
// discarding on error.
func (l *Ledger) Run(ctx context.Context, fn func(*Tx) error) error {
	t := l.Begin()
	defer t.Discard()
	if err := fn(t); err != nil {
		return err
	}
	return t.Commit()
}

// Enter builds the frame for a merged host call, moving the attached
// native value from caller to host first.
func (t *Tx) Enter(ctx context.Context, host, caller types.Address, value *big.Int) (*tollgate.Frame, error) {
	if value == nil {
		value = new(big.Int)
	}
	if value.Sign() > 0 {
		if err := t.Mover().Push(ctx, types.NativeAsset, caller, host, value); err != nil {
			return nil, fmt.Errorf("ledger: attach value: %w", err)
		}
	}
	return &tollgate.Frame{
		Host:      host,
		Caller:    caller,
		Value:     new(big.Int).Set(value),
		State:     t,
		Tokens:    t.Mover(),
		Transient: t.TransientSlots(),
	}, nil
}

// TransientSlots returns the transaction-scoped slot store, or nil
// when the environment lacks the capability.
func (t *Tx) TransientSlots() tollgate.TransientSlots {
	if t.transient == nil {
		return nil
	}
	return t.transient
}

// Mover returns the transaction's funds-move primitive.
func (t *Tx) Mover() tollgate.TokenMover { return mover{t} }

// Balance implements tollgate.HostState.
func (t *Tx) Balance(_ context.Context, owner types.Address, asset types.Asset) (*big.Int, error) {
	if t.done {
		return nil, ErrTxDone
	}
	k := balanceKey{owner, asset}
	if v, ok := t.balances[k]; ok {
		return new(big.Int).Set(v), nil
	}
	t.lg.mu.RLock()
	defer t.lg.mu.RUnlock()
	return t.lg.baseBalance(k), nil
}

// Allowance implements tollgate.HostState.
func (t *Tx) Allowance(_ context.Context, owner types.Address, asset types.Asset, spender types.Address) (*big.Int, error) {
	if t.done {
		return nil, ErrTxDone
	}
	k := allowanceKey{owner, asset, spender}
	if v, ok := t.allow[k]; ok {
		return new(big.Int).Set(v), nil
	}
	t.lg.mu.RLock()
	defer t.lg.mu.RUnlock()
	return t.lg.baseAllowance(k), nil
}

// SlotLoad implements tollgate.HostState.
func (t *Tx) SlotLoad(_ context.Context, owner types.Address, slot types.Hash) (types.Word, error) {
	if t.done {
		return types.Word{}, ErrTxDone
	}
	k := slotKey{owner, slot}
	if w, ok := t.slots[k]; ok {
		return w, nil
	}
	t.lg.mu.RLock()
	defer t.lg.mu.RUnlock()
	return t.lg.baseSlot(k)
}

// SlotStore implements tollgate.HostState.
func (t *Tx) SlotStore(_ context.Context, owner types.Address, slot types.Hash, value types.Word) error {
	if t.done {
		return ErrTxDone
	}
	t.slots[slotKey{owner, slot}] = value
	return nil
}

// setBalance stages a balance write, copying the value.
func (t *Tx) setBalance(k balanceKey, v *big.Int) {
	t.balances[k] = new(big.Int).Set(v)
}

// credit adds amount to owner's staged balance.
func (t *Tx) credit(ctx context.Context, owner types.Address, asset types.Asset, amount *big.Int) error {
	cur, err := t.Balance(ctx, owner, asset)
	if err != nil {
		return err
	}
	t.setBalance(balanceKey{owner, asset}, cur.Add(cur, amount))
	return nil
}

// debit subtracts amount from owner's staged balance, failing on
// underflow.
func (t *Tx) debit(ctx context.Context, owner types.Address, asset types.Asset, amount *big.Int) error {
	cur, err := t.Balance(ctx, owner, asset)
	if err != nil {
		return err
	}
	if cur.Cmp(amount) < 0 {
		return &tollgate.InsufficientBalanceError{Owner: owner, Asset: asset, Have: cur, Need: new(big.Int).Set(amount)}
	}
	t.setBalance(balanceKey{owner, asset}, cur.Sub(cur, amount))
	return nil
}

// Snapshot captures the current staged changeset and returns a
// restore function that rewinds every write made after it, transient
// slots included. The fabric snapshots around each call leg so a
// tolerated failure leaves no trace of the failed leg.
func (t *Tx) Snapshot() (restore func()) {
	balances := make(map[balanceKey]*big.Int, len(t.balances))
	for k, v := range t.balances {
		balances[k] = new(big.Int).Set(v)
	}
	allow := make(map[allowanceKey]*big.Int, len(t.allow))
	for k, v := range t.allow {
		allow[k] = new(big.Int).Set(v)
	}
	slots := make(map[slotKey]types.Word, len(t.slots))
	for k, w := range t.slots {
		slots[k] = w
	}
	var transient map[slotKey]types.Word
	if t.transient != nil && t.transient.m != nil {
		transient = make(map[slotKey]types.Word, len(t.transient.m))
		for k, w := range t.transient.m {
			transient[k] = w
		}
	}
	return func() {
		if t.done {
			return
		}
		t.balances = balances
		t.allow = allow
		t.slots = slots
		if t.transient != nil && transient != nil {
			t.transient.m = transient
		}
	}
}

// Commit applies every staged write to the base state. Durable slots
// land first, in one atomic batch; the in-memory state only changes
// after that succeeds. The transaction is finished either way.
func (t *Tx) Commit() error {
	if t.done {
		return ErrTxDone
	}
	t.finish()

	t.lg.mu.Lock()
	defer t.lg.mu.Unlock()

	if t.lg.backing != nil && len(t.slots) > 0 {
		entries := make([]SlotEntry, 0, len(t.slots))
		for k, w := range t.slots {
			entries = append(entries, SlotEntry{Owner: k.owner, Slot: k.slot, Value: w})
		}
		if err := t.lg.backing.StoreBatch(entries); err != nil {
			return fmt.Errorf("ledger: commit slots: %w", err)
		}
	}
	for k, v := range t.balances {
		t.lg.balances[k] = v
	}
	for k, v := range t.allow {
		t.lg.allow[k] = v
	}
	for k, w := range t.slots {
		t.lg.slots[k] = w
	}
	return nil
}

// Discard drops every staged write. Safe to defer after Commit.
func (t *Tx) Discard() {
	if t.done {
		return
	}
	t.finish()
}

func (t *Tx) finish() {
	t.done = true
	if t.transient != nil {
		t.transient.m = nil
		t.transient = nil
	}
}

// mover implements tollgate.TokenMover over a transaction.
type mover struct {
	tx *Tx
}

func (m mover) Push(ctx context.Context, asset types.Asset, owner, recipient types.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if err := m.tx.debit(ctx, owner, asset, amount); err != nil {
		return err
	}
	return m.tx.credit(ctx, recipient, asset, amount)
}

func (m mover) Pull(ctx context.Context, asset types.Asset, spender, owner, recipient types.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if asset.IsNative() {
		return fmt.Errorf("ledger: native asset cannot be pulled")
	}
	if spender != owner {
		if err := m.spendAllowance(ctx, asset, owner, spender, amount); err != nil {
			return err
		}
	}
	if err := m.tx.debit(ctx, owner, asset, amount); err != nil {
		return err
	}
	return m.tx.credit(ctx, recipient, asset, amount)
}

func (m mover) Approve(ctx context.Context, asset types.Asset, owner, spender types.Address, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if asset.IsNative() {
		return fmt.Errorf("ledger: native asset cannot be approved")
	}
	if m.tx.done {
		return ErrTxDone
	}
	m.tx.allow[allowanceKey{owner, asset, spender}] = new(big.Int).Set(amount)
	return nil
}

// spendAllowance decrements spender's allowance by amount. The
// unlimited allowance is never decremented.
func (m mover) spendAllowance(ctx context.Context, asset types.Asset, owner, spender types.Address, amount *big.Int) error {
	cur, err := m.tx.Allowance(ctx, owner, asset, spender)
	if err != nil {
		return err
	}
	if cur.Cmp(types.MaxWord.Big()) == 0 {
		return nil
	}
	if cur.Cmp(amount) < 0 {
		return &tollgate.InsufficientAllowanceError{Owner: owner, Asset: asset, Spender: spender, Have: cur, Need: new(big.Int).Set(amount)}
	}
	m.tx.allow[allowanceKey{owner, asset, spender}] = cur.Sub(cur, amount)
	return nil
}

func checkAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return fmt.Errorf("ledger: invalid amount %s", amount)
	}
	return nil
}

// transientSlots is the per-transaction volatile slot store.
type transientSlots struct {
	m map[slotKey]types.Word
}

func (s *transientSlots) Load(owner types.Address, slot types.Hash) types.Word {
	if s.m == nil {
		return types.Word{}
	}
	return s.m[slotKey{owner, slot}]
}

func (s *transientSlots) Store(owner types.Address, slot types.Hash, value types.Word) {
	if s.m == nil {
		return
	}
	s.m[slotKey{owner, slot}] = value
}
