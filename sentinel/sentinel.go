// Package sentinel records per-operation success flags in the host's
// storage space, preferring transaction-scoped volatile slots and
// falling back to persistent ones.
//
// The backend choice is probed once, at first use, and is then fixed
// for the deployment's lifetime: the store never switches backends
// mid-deployment, so a flag written volatile is never looked up
// persistent or vice versa.
package sentinel

import (
	"context"
	"crypto/sha256"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/blockberries/tollgate"
	"github.com/blockberries/tollgate/types"
)

// namespace versions the sentinel slot derivation. Engine versions
// sharing a slot store but differing in namespace cannot collide.
const namespace = "tollgate/settled/v1"

// backendMode says where sentinel flags live.
type backendMode uint32

const (
	// modeUnknown: not probed yet.
	modeUnknown backendMode = iota
	// modeVolatile: transaction-scoped slots.
	modeVolatile
	// modePersistent: durable storage slots.
	modePersistent
)

func (m backendMode) String() string {
	switch m {
	case modeUnknown:
		return "Unknown"
	case modeVolatile:
		return "Volatile"
	case modePersistent:
		return "Persistent"
	default:
		return fmt.Sprintf("unknown(%d)", m)
	}
}

// setWord is the flag value written for a set sentinel.
var setWord = types.Uint64Word(1)

// modeSlot is the store's own slot 0, holding the probed backend mode.
var modeSlot = types.Hash{}

// probeSlot is scratch space for the volatile write/read-back probe.
// Derived outside the operation slot space, so it cannot shadow a
// real sentinel.
var probeSlot = deriveSlot([]byte("probe"))

// Store records and reads settlement sentinels. It holds no slot data
// itself; everything lives in the frames it is handed.
type Store struct {
	self types.Address
	// mode caches the probed backend. Zero until first use.
	mode atomic.Uint32
	// mu serializes the first-use probe.
	mu sync.Mutex
}

// New creates a sentinel store owned by the component deployed at
// self. The probed backend mode is recorded in self's slot 0.
func New(self types.Address) (*Store, error) {
	if self.IsZero() {
		return nil, fmt.Errorf("sentinel: zero self identity")
	}
	return &Store{self: self}, nil
}

// Self returns the store's own identity.
func (s *Store) Self() types.Address { return s.self }

// Slot returns the namespaced storage slot for an operation's
// sentinel: SHA-256(namespace || 0x00 || operationID).
func Slot(op types.OperationID) types.Hash {
	return deriveSlot(op[:])
}

func deriveSlot(data []byte) types.Hash {
	h := sha256.New()
	h.Write([]byte(namespace))
	h.Write([]byte{0x00})
	h.Write(data)
	var out types.Hash
	copy(out[:], h.Sum(nil))
	return out
}

// TrySet records the sentinel for op in the host's storage space.
// Setting an already-set sentinel is a no-op success.
func (s *Store) TrySet(ctx context.Context, frame *tollgate.Frame, op types.OperationID) error {
	mode, err := s.resolveMode(ctx, frame)
	if err != nil {
		return err
	}
	slot := Slot(op)
	switch mode {
	case modeVolatile:
		if frame.Transient == nil {
			return fmt.Errorf("sentinel: volatile backend fixed at first use but unavailable in this frame")
		}
		frame.Transient.Store(frame.Host, slot, setWord)
		return nil
	case modePersistent:
		return frame.State.SlotStore(ctx, frame.Host, slot, setWord)
	default:
		return fmt.Errorf("sentinel: unusable backend mode %s", mode)
	}
}

// IsSet reports whether the sentinel for op is recorded in the host's
// storage space.
func (s *Store) IsSet(ctx context.Context, frame *tollgate.Frame, op types.OperationID) (bool, error) {
	mode, err := s.resolveMode(ctx, frame)
	if err != nil {
		return false, err
	}
	slot := Slot(op)
	switch mode {
	case modeVolatile:
		if frame.Transient == nil {
			return false, fmt.Errorf("sentinel: volatile backend fixed at first use but unavailable in this frame")
		}
		return !frame.Transient.Load(frame.Host, slot).IsZero(), nil
	case modePersistent:
		w, err := frame.State.SlotLoad(ctx, frame.Host, slot)
		if err != nil {
			return false, err
		}
		return !w.IsZero(), nil
	default:
		return false, fmt.Errorf("sentinel: unusable backend mode %s", mode)
	}
}

// resolveMode returns the backend mode, probing on first use.
//
// Resolution order: the in-process cache, then the mode recorded in
// the store's own slot 0 (pins the choice across restarts when slots
// are durably backed), then a live probe whose result is written back
// to slot 0.
func (s *Store) resolveMode(ctx context.Context, frame *tollgate.Frame) (backendMode, error) {
	if m := backendMode(s.mode.Load()); m != modeUnknown {
		return m, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if m := backendMode(s.mode.Load()); m != modeUnknown {
		return m, nil
	}

	recorded, err := frame.State.SlotLoad(ctx, s.self, modeSlot)
	if err != nil {
		return modeUnknown, fmt.Errorf("sentinel: read mode slot: %w", err)
	}
	if m := backendMode(recorded[31]); m == modeVolatile || m == modePersistent {
		s.mode.Store(uint32(m))
		return m, nil
	}

	m := modePersistent
	if s.probeVolatile(frame) {
		m = modeVolatile
	}
	if err := frame.State.SlotStore(ctx, s.self, modeSlot, types.Uint64Word(uint64(m))); err != nil {
		return modeUnknown, fmt.Errorf("sentinel: record mode slot: %w", err)
	}
	s.mode.Store(uint32(m))
	return m, nil
}

// probeVolatile checks that transaction-scoped slots exist and hold a
// write.
func (s *Store) probeVolatile(frame *tollgate.Frame) bool {
	if frame.Transient == nil {
		return false
	}
	frame.Transient.Store(s.self, probeSlot, setWord)
	return frame.Transient.Load(s.self, probeSlot) == setWord
}
