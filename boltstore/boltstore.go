// Package boltstore persists ledger storage slots in a bbolt file.
// It backs the persistent sentinel path: slots written through it
// survive process restarts.
package boltstore

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	"github.com/blockberries/tollgate/ledger"
	"github.com/blockberries/tollgate/types"
)

const slotBucket = "slots"

// Store is a bbolt-backed ledger.SlotBacking.
type Store struct {
	db *bbolt.DB
}

var _ ledger.SlotBacking = (*Store)(nil)

// Open opens (or creates) the slot store at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("boltstore: path is required")
	}
	db, err := bbolt.Open(filepath.Clean(path), 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("boltstore: open %s: %w", path, err)
	}
	s := &Store{db: db}
	if err := s.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(slotBucket)); err != nil {
			return fmt.Errorf("boltstore: create bucket: %w", err)
		}
		return nil
	})
}

// slotStoreKey is owner || slot, 52 bytes.
func slotStoreKey(owner types.Address, slot types.Hash) []byte {
	k := make([]byte, 0, len(owner)+len(slot))
	k = append(k, owner[:]...)
	return append(k, slot[:]...)
}

// Load implements ledger.SlotBacking.
func (s *Store) Load(owner types.Address, slot types.Hash) (types.Word, bool, error) {
	var w types.Word
	var found bool
	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(slotBucket))
		if bucket == nil {
			return fmt.Errorf("boltstore: slot bucket is missing")
		}
		v := bucket.Get(slotStoreKey(owner, slot))
		if v == nil {
			return nil
		}
		if len(v) != len(w) {
			return fmt.Errorf("boltstore: slot %s/%s holds %d bytes, want %d", owner, slot, len(v), len(w))
		}
		copy(w[:], v)
		found = true
		return nil
	})
	if err != nil {
		return types.Word{}, false, err
	}
	return w, found, nil
}

// StoreBatch implements ledger.SlotBacking. All entries land in one
// bbolt transaction.
func (s *Store) StoreBatch(entries []ledger.SlotEntry) error {
	if len(entries) == 0 {
		return nil
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket([]byte(slotBucket))
		if bucket == nil {
			return fmt.Errorf("boltstore: slot bucket is missing")
		}
		for _, e := range entries {
			v := e.Value
			if err := bucket.Put(slotStoreKey(e.Owner, e.Slot), v[:]); err != nil {
				return fmt.Errorf("boltstore: put slot %s/%s: %w", e.Owner, e.Slot, err)
			}
		}
		return nil
	})
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
