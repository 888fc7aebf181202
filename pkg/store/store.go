// Package store implements the in-memory table, its per-key lock state,
// and the WAL + snapshot persistence pair that together give the engine
// crash durability. See spec.md §4.1.
package store

import (
	"fmt"
	"sync"
)

// LockMode is the mode a transaction requests on a key.
type LockMode int

const (
	Read LockMode = iota
	Write
)

// slot is the lock + value state for one key. A slot exists for any key a
// transaction has ever touched (read, written, or locked), independent of
// whether the key currently has a committed value — a transaction may hold
// a write lock on a key it only just inserted into its own write-set.
type slot struct {
	value    int64
	hasValue bool

	// lockCount mirrors spec.md §3: 0 unlocked, -1 exclusive, n>0 shared by
	// n distinct transactions. holders tracks which transaction IDs, so
	// re-entrant acquisition by the same transaction can be recognized
	// without double-counting.
	lockCount int
	holders   map[uint64]struct{}
}

// Store owns the live table, per-key lock state, and the WAL + snapshot
// files backing them. All methods are safe for concurrent use; step-level
// atomicity is not provided here (pkg/scheduler gets it from its turn-channel
// handoff, which lets only one transaction run at a time).
type Store struct {
	mu sync.Mutex

	table map[string]*slot

	snapshotPath string
	wal          *WAL
}

// New loads the snapshot at snapshotPath, replays logPath against it if
// non-empty (see recover and recoverBlocks), then truncates logPath and
// opens it for append.
func New(snapshotPath, logPath string) (*Store, error) {
	loaded, err := loadSnapshot(snapshotPath)
	if err != nil {
		return nil, err
	}

	s := &Store{
		snapshotPath: snapshotPath,
		table:        make(map[string]*slot, len(loaded)),
	}
	for k, v := range loaded {
		s.table[k] = &slot{value: v, hasValue: true}
	}

	if err := s.recover(logPath); err != nil {
		return nil, err
	}

	wal, err := OpenWAL(logPath)
	if err != nil {
		return nil, err
	}
	if err := wal.Truncate(); err != nil {
		wal.Close()
		return nil, err
	}
	s.wal = wal

	return s, nil
}

// recover replays logPath's well-formed, committed blocks against the
// snapshot-loaded table. See recoverBlocks for the discard-everything vs.
// drop-trailing-block distinction.
func (s *Store) recover(logPath string) error {
	blocks, ok, err := recoverBlocks(logPath)
	if err != nil {
		return fmt.Errorf("store: recover: %w", err)
	}
	if !ok {
		// Corrupted WAL: discard the entire diff, table stays as loaded
		// from the snapshot.
		return nil
	}
	for _, b := range blocks {
		s.applyDiffLocked(b.entries)
	}
	return nil
}

// applyDiffLocked mutates the live table per a write-set's diff. Caller
// must hold s.mu (or be single-threaded during construction).
func (s *Store) applyDiffLocked(writeSet map[string]WriteEntry) {
	for key, e := range writeSet {
		switch e.Mode {
		case New:
			sl := s.table[key]
			if sl == nil {
				sl = &slot{}
				s.table[key] = sl
			}
			sl.value = e.Value
			sl.hasValue = true
		case Delete:
			if sl, ok := s.table[key]; ok {
				sl.hasValue = false
				sl.value = 0
			}
		}
	}
}

// Shutdown performs a checkpoint: rewrite the snapshot from the live table,
// then truncate the WAL. Together these constitute a clean shutdown.
func (s *Store) Shutdown() error {
	s.mu.Lock()
	snapshot := make(map[string]int64, len(s.table))
	for k, sl := range s.table {
		if sl.hasValue {
			snapshot[k] = sl.value
		}
	}
	s.mu.Unlock()

	if err := dumpSnapshot(s.snapshotPath, snapshot); err != nil {
		return err
	}
	if err := s.wal.Truncate(); err != nil {
		return err
	}
	return s.wal.Close()
}

func (s *Store) slotFor(key string) *slot {
	sl := s.table[key]
	if sl == nil {
		sl = &slot{holders: make(map[uint64]struct{})}
		s.table[key] = sl
	}
	if sl.holders == nil {
		sl.holders = make(map[uint64]struct{})
	}
	return sl
}

// AcquireLock attempts to grant mode to txID on key. It returns true on
// success, false on contention (the caller is expected to yield and retry).
// Re-acquisition of an already-held lock at a compatible mode is a no-op
// success; there is no upgrade path from a held read lock to a write lock
// (per spec.md §9's "lock-upgrade hazard" — a Write request from a
// transaction that holds only a read lock on key always returns false, so a
// caller that retries on false retries forever).
func (s *Store) AcquireLock(txID uint64, key string, mode LockMode) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl := s.slotFor(key)
	_, alreadyHeld := sl.holders[txID]

	switch mode {
	case Write:
		if alreadyHeld {
			return sl.lockCount == -1
		}
		if sl.lockCount != 0 {
			return false
		}
		sl.lockCount = -1
		sl.holders[txID] = struct{}{}
		return true

	case Read:
		if alreadyHeld {
			return sl.lockCount > 0
		}
		if sl.lockCount < 0 {
			return false
		}
		sl.lockCount++
		sl.holders[txID] = struct{}{}
		return true

	default:
		panic("store: invalid lock mode")
	}
}

// ReleaseAll drops every lock txID holds on the given keys. Called exactly
// once, at transaction termination (commit or abort).
func (s *Store) ReleaseAll(txID uint64, keys []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, key := range keys {
		sl := s.table[key]
		if sl == nil {
			continue
		}
		if _, ok := sl.holders[txID]; !ok {
			continue
		}
		delete(sl.holders, txID)
		if sl.lockCount == -1 {
			sl.lockCount = 0
		} else if sl.lockCount > 0 {
			sl.lockCount--
		}
	}
}

// Apply serializes writeSet to the WAL, fsyncs, and only then mutates the
// live table. This ordering (invariant 4 of spec.md §3) is what makes a
// committed write durable before it becomes visible to other transactions.
func (s *Store) Apply(writeSet map[string]WriteEntry) error {
	if len(writeSet) == 0 {
		return nil
	}
	if err := s.wal.Append(writeSet); err != nil {
		return err
	}

	s.mu.Lock()
	s.applyDiffLocked(writeSet)
	s.mu.Unlock()
	return nil
}

// Exists reports whether key currently has a committed value in the live
// table (ignoring any transaction's private write-set).
func (s *Store) Exists(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.table[key]
	return ok && sl.hasValue
}

// Get returns the committed value for key, if any.
func (s *Store) Get(key string) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.table[key]
	if !ok || !sl.hasValue {
		return 0, false
	}
	return sl.value, true
}

// Keys returns the committed keys currently in the table.
func (s *Store) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.table))
	for k, sl := range s.table {
		if sl.hasValue {
			keys = append(keys, k)
		}
	}
	return keys
}
