// Package txn implements the per-transaction operation surface: a private
// write-set, a held-lock set, and the begin/set/get/del/keys/commit/abort
// lifecycle described in spec.md §4.2. A Transaction never talks to a
// scheduler directly — whichever driver owns it installs a yield callback
// (see SetYield and pkg/scheduler), and the transaction calls it at every
// suspension point.
package txn

import (
	"sort"
	"sync/atomic"

	"github.com/seccampdb/seccampdb/pkg/store"
)

// Op is the kind of history event a completed read or write produces.
type Op int

const (
	ReadOp Op = iota
	WriteOp
)

// Recorder receives the ordered history of a committed transaction's reads
// and writes. pkg/scheduler implements this; tests may supply a stub.
type Recorder interface {
	Record(txID uint64, key string, op Op)
}

var nextID uint64

// NextID hands out a monotonically increasing, process-lifetime-unique
// transaction ID. Exported so a scheduler assigning IDs up front can stay
// consistent with ad hoc Transaction construction in tests.
func NextID() uint64 {
	return atomic.AddUint64(&nextID, 1)
}

// Transaction is one strict-two-phase-locked unit of work against a Store.
type Transaction struct {
	id    uint64
	store *store.Store
	rec   Recorder

	writeSet map[string]store.WriteEntry
	writeLog []string
	lockSet  map[string]struct{}

	done bool

	// yield is called at every suspension point. The scheduler installs a
	// channel-based implementation (see pkg/scheduler); it defaults to a
	// no-op so Transaction can be driven directly in unit tests without a
	// scheduler.
	yield func()
}

// New creates a transaction bound to s. id is normally obtained via NextID.
func New(id uint64, s *store.Store, rec Recorder) *Transaction {
	return &Transaction{
		id:       id,
		store:    s,
		rec:      rec,
		writeSet: make(map[string]store.WriteEntry),
		lockSet:  make(map[string]struct{}),
		yield:    func() {},
	}
}

// ID returns the transaction's identifier.
func (tx *Transaction) ID() uint64 { return tx.id }

// IsDone reports whether Commit or Abort has been called.
func (tx *Transaction) IsDone() bool { return tx.done }

// SetYield installs the suspension-point callback. Drivers (pkg/scheduler,
// pkg/frontend) call this immediately after constructing the transaction.
func (tx *Transaction) SetYield(fn func()) { tx.yield = fn }

// Begin enters the transaction's critical region. Per spec.md §4.2 it does
// nothing but yield once.
func (tx *Transaction) Begin() {
	tx.yield()
}

// visible implements spec.md §4.2's visibility rule: a key is visible iff
// the write-set marks it New, or the write-set does not mention it and the
// live table contains it.
func (tx *Transaction) visible(key string) bool {
	if e, ok := tx.writeSet[key]; ok {
		return e.Mode == store.New
	}
	return tx.store.Exists(key)
}

func (tx *Transaction) acquire(key string, mode store.LockMode) {
	for !tx.store.AcquireLock(tx.id, key, mode) {
		tx.yield()
	}
	tx.lockSet[key] = struct{}{}
}

// Set buffers key→val as a NEW write-set entry. If key currently has a
// committed value, a write lock is acquired first (retrying, yielding
// between attempts, on contention); a key with no committed value is
// buffered without taking any lock.
func (tx *Transaction) Set(key string, val int64) {
	if tx.store.Exists(key) {
		tx.acquire(key, store.Write)
	}
	tx.writeSet[key] = store.WriteEntry{Mode: store.New, Value: val}
	tx.writeLog = append(tx.writeLog, key)
	tx.yield()
}

// Get returns the visible value for key, if any. A read lock is acquired
// only when the value has to come from the live table; a value already
// buffered in this transaction's own write-set needs no lock. Every
// successful table read emits a READ history entry.
func (tx *Transaction) Get(key string) (int64, bool) {
	if !tx.visible(key) {
		tx.yield()
		return 0, false
	}

	if e, ok := tx.writeSet[key]; ok {
		tx.yield()
		return e.Value, true
	}

	tx.acquire(key, store.Read)
	val, _ := tx.store.Get(key)
	if tx.rec != nil {
		tx.rec.Record(tx.id, key, ReadOp)
	}
	tx.yield()
	return val, true
}

// GetUntilSuccess repeats Get, yielding between tries, until a value is
// observed. Used when a transaction logic must block on another
// transaction's pending insert rather than treat it as a hard miss.
func (tx *Transaction) GetUntilSuccess(key string) int64 {
	for {
		if v, ok := tx.Get(key); ok {
			return v
		}
		tx.yield()
	}
}

// Del marks key for deletion. Returns false if key is not currently
// visible (nothing to delete).
func (tx *Transaction) Del(key string) bool {
	if !tx.visible(key) {
		tx.yield()
		return false
	}
	tx.acquire(key, store.Write)
	tx.writeSet[key] = store.WriteEntry{Mode: store.Delete, Value: 0}
	tx.writeLog = append(tx.writeLog, key)
	tx.yield()
	return true
}

// Keys returns the visible key set: live table keys minus those the
// write-set marks Delete, plus those the write-set marks New that the live
// table does not already have.
func (tx *Transaction) Keys() []string {
	seen := make(map[string]struct{})
	for _, k := range tx.store.Keys() {
		if e, ok := tx.writeSet[k]; ok && e.Mode == store.Delete {
			continue
		}
		seen[k] = struct{}{}
	}
	for k, e := range tx.writeSet {
		if e.Mode == store.New {
			seen[k] = struct{}{}
		}
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	tx.yield()
	return keys
}

// Commit applies the write-set durably (WAL append, fsync, table mutation),
// releases every held lock, publishes the write half of this transaction's
// history in write_log order, and marks the transaction done.
func (tx *Transaction) Commit() error {
	if err := tx.store.Apply(tx.writeSet); err != nil {
		return err
	}

	if tx.rec != nil {
		for _, key := range tx.writeLog {
			tx.rec.Record(tx.id, key, WriteOp)
		}
	}

	tx.release()
	tx.done = true
	tx.yield()
	return nil
}

// Abort discards the write-set and releases every held lock. No WAL record
// and no history entries are ever produced for an aborted transaction.
func (tx *Transaction) Abort() {
	tx.writeSet = make(map[string]store.WriteEntry)
	tx.writeLog = nil
	tx.release()
	tx.done = true
	tx.yield()
}

func (tx *Transaction) release() {
	keys := make([]string, 0, len(tx.lockSet))
	for k := range tx.lockSet {
		keys = append(keys, k)
	}
	tx.store.ReleaseAll(tx.id, keys)
	tx.lockSet = make(map[string]struct{})
}
