package sentinel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockberries/tollgate"
	"github.com/blockberries/tollgate/ledger"
	"github.com/blockberries/tollgate/types"
)

var (
	storeSelf = types.Address{0x5e}
	host      = types.Address{0x40}
	opA       = types.OperationID{0x01}
	opB       = types.OperationID{0x02}
)

func enter(t *testing.T, tx *ledger.Tx) *tollgate.Frame {
	t.Helper()
	frame, err := tx.Enter(context.Background(), host, types.Address{0xee}, nil)
	require.NoError(t, err)
	return frame
}

func TestSlotDerivation(t *testing.T) {
	assert.NotEqual(t, Slot(opA), Slot(opB), "operations must get distinct slots")
	assert.NotEqual(t, Slot(opA), modeSlot, "operation slots must never shadow the mode slot")
	assert.NotEqual(t, Slot(types.OperationID{}), probeSlot, "probe scratch must sit outside the operation slot space")
	assert.Equal(t, Slot(opA), Slot(opA), "derivation is deterministic")
}

func TestNewRejectsZeroIdentity(t *testing.T) {
	_, err := New(types.Address{})
	require.Error(t, err)
}

func TestVolatilePreferred(t *testing.T) {
	ctx := context.Background()
	l := ledger.New()
	s, err := New(storeSelf)
	require.NoError(t, err)

	tx := l.Begin()
	frame := enter(t, tx)

	set, err := s.IsSet(ctx, frame, opA)
	require.NoError(t, err)
	assert.False(t, set)

	require.NoError(t, s.TrySet(ctx, frame, opA))
	set, err = s.IsSet(ctx, frame, opA)
	require.NoError(t, err)
	assert.True(t, set, "sentinel visible within the same transaction")

	set, err = s.IsSet(ctx, frame, opB)
	require.NoError(t, err)
	assert.False(t, set, "other operations stay unset")

	require.NoError(t, tx.Commit())

	// The flag was volatile: nothing about it persists.
	w, err := l.Slot(host, Slot(opA))
	require.NoError(t, err)
	assert.True(t, w.IsZero())

	// The probed mode does persist, in the store's own slot 0.
	w, err = l.Slot(storeSelf, modeSlot)
	require.NoError(t, err)
	assert.Equal(t, types.Uint64Word(uint64(modeVolatile)), w)

	tx2 := l.Begin()
	defer tx2.Discard()
	set, err = s.IsSet(ctx, enter(t, tx2), opA)
	require.NoError(t, err)
	assert.False(t, set, "volatile sentinel dies with its transaction")
}

func TestPersistentFallback(t *testing.T) {
	ctx := context.Background()
	l := ledger.New(ledger.WithoutTransientSlots())
	s, err := New(storeSelf)
	require.NoError(t, err)

	tx := l.Begin()
	require.NoError(t, s.TrySet(ctx, enter(t, tx), opA))
	require.NoError(t, tx.Commit())

	w, err := l.Slot(host, Slot(opA))
	require.NoError(t, err)
	assert.False(t, w.IsZero(), "persistent sentinel lands in host storage")

	tx2 := l.Begin()
	defer tx2.Discard()
	set, err := s.IsSet(ctx, enter(t, tx2), opA)
	require.NoError(t, err)
	assert.True(t, set, "persistent sentinel survives across transactions")
}

func TestTrySetIdempotent(t *testing.T) {
	ctx := context.Background()
	l := ledger.New(ledger.WithoutTransientSlots())
	s, err := New(storeSelf)
	require.NoError(t, err)

	tx := l.Begin()
	frame := enter(t, tx)
	require.NoError(t, s.TrySet(ctx, frame, opA))
	require.NoError(t, s.TrySet(ctx, frame, opA))
	set, err := s.IsSet(ctx, frame, opA)
	require.NoError(t, err)
	assert.True(t, set)
	tx.Discard()
}

func TestModeFixedAtFirstUse(t *testing.T) {
	ctx := context.Background()
	s, err := New(storeSelf)
	require.NoError(t, err)

	// First use in an environment with transient slots pins volatile.
	withTransient := ledger.New()
	tx := withTransient.Begin()
	require.NoError(t, s.TrySet(ctx, enter(t, tx), opA))
	tx.Discard()

	// The same store handed a frame without the capability must not
	// silently switch to the persistent backend.
	without := ledger.New(ledger.WithoutTransientSlots())
	tx2 := without.Begin()
	defer tx2.Discard()
	err = s.TrySet(ctx, enter(t, tx2), opA)
	require.Error(t, err)
}

// memBacking satisfies ledger.SlotBacking via an in-memory map.
type memBacking struct {
	m map[string]types.Word
}

func newMemBacking() *memBacking { return &memBacking{m: make(map[string]types.Word)} }

func (b *memBacking) Load(owner types.Address, slot types.Hash) (types.Word, bool, error) {
	w, ok := b.m[owner.String()+slot.String()]
	return w, ok, nil
}

func (b *memBacking) StoreBatch(entries []ledger.SlotEntry) error {
	for _, e := range entries {
		b.m[e.Owner.String()+e.Slot.String()] = e.Value
	}
	return nil
}

func (b *memBacking) Close() error { return nil }

func TestRecordedModeSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	backing := newMemBacking()

	// First deployment runs without transient slots: mode pins to
	// persistent and lands in the durable mode slot.
	l1 := ledger.New(ledger.WithoutTransientSlots(), ledger.WithSlotBacking(backing))
	s1, err := New(storeSelf)
	require.NoError(t, err)
	require.NoError(t, l1.Run(ctx, func(tx *ledger.Tx) error {
		frame, err := tx.Enter(ctx, host, types.Address{0xee}, nil)
		if err != nil {
			return err
		}
		return s1.TrySet(ctx, frame, opA)
	}))

	// A restarted store over the same slots must honor the recorded
	// mode even though transient slots are now available.
	l2 := ledger.New(ledger.WithSlotBacking(backing))
	s2, err := New(storeSelf)
	require.NoError(t, err)
	tx := l2.Begin()
	defer tx.Discard()
	set, err := s2.IsSet(ctx, enter(t, tx), opA)
	require.NoError(t, err)
	assert.True(t, set, "restart reads the sentinel through the recorded persistent backend")
}
