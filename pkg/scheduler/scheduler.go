// Package scheduler drives a batch of transaction logics to completion one
// step at a time, in FIFO round-robin order, recording the read/write
// history that pkg/conflict later analyzes. See spec.md §4.3.
//
// The C++ source this is modeled on serializes everything behind one giant
// mutex, with per-transaction condition variables used to hand control back
// and forth. spec.md §9 calls out the channel-token variant of that
// reimplementation strategy as the idiomatic fit for a language with
// goroutines; that is what this file implements: each transaction logic
// runs in its own goroutine, permanently blocked on its own turn channel
// except for the single step the scheduler just granted it.
package scheduler

import (
	"sync"

	"github.com/seccampdb/seccampdb/pkg/conflict"
	"github.com/seccampdb/seccampdb/pkg/store"
	"github.com/seccampdb/seccampdb/pkg/txn"
)

// Logic is a transaction's driving closure: it calls Begin, then whatever
// sequence of Set/Get/Del/Keys/GetUntilSuccess it needs, then exactly one
// of Commit or Abort.
type Logic func(tx *txn.Transaction)

// Scheduler owns the queue of live transactions and the history they
// accumulate. A Scheduler is single-use: construct it, Add every logic,
// call Start once, then read History/Graph.
type Scheduler struct {
	store *store.Store

	mu      sync.Mutex
	history []conflict.HistoryEntry

	contexts []*txContext
}

// txContext pairs a Transaction with the turn-channel plumbing the
// scheduler uses to step its goroutine one suspension point at a time.
type txContext struct {
	tx     *txn.Transaction
	turn   chan struct{}
	paused chan struct{}
}

// New creates a scheduler backed by s. Every transaction logic Added to it
// will run against the same Store.
func New(s *store.Store) *Scheduler {
	return &Scheduler{store: s}
}

// Add registers a transaction logic. It takes effect when Start runs; Start
// steps every logic ever Added, so all Add calls come before the single
// Start call.
func (sch *Scheduler) Add(logic Logic) uint64 {
	id := txn.NextID()
	tx := txn.New(id, sch.store, sch)

	ctx := &txContext{
		tx:     tx,
		turn:   make(chan struct{}),
		paused: make(chan struct{}),
	}
	tx.SetYield(func() {
		ctx.paused <- struct{}{}
		if tx.IsDone() {
			// Commit/Abort already marked the transaction done before this
			// final yield; no further turn will ever be granted, so don't
			// wait for one.
			return
		}
		<-ctx.turn
	})

	sch.contexts = append(sch.contexts, ctx)

	go func() {
		<-ctx.turn // wait for the scheduler to grant the first step
		logic(tx)
	}()

	return id
}

// Record appends one read/write history entry. Only pkg/txn calls this, and
// only for transactions that go on to commit — aborted transactions never
// call Record (spec.md §9, "history for aborted transactions").
func (sch *Scheduler) Record(txID uint64, key string, op txn.Op) {
	sch.mu.Lock()
	defer sch.mu.Unlock()

	var o conflict.Op
	switch op {
	case txn.ReadOp:
		o = conflict.ReadOp
	case txn.WriteOp:
		o = conflict.WriteOp
	}
	sch.history = append(sch.history, conflict.HistoryEntry{TxID: txID, Key: key, Op: o})
}

// Start runs every registered transaction logic to completion, stepping
// them in FIFO round-robin order: pop the head, grant it one step, wait for
// it to yield or finish, and if it isn't done yet push it back to the tail.
func (sch *Scheduler) Start() {
	queue := make([]*txContext, len(sch.contexts))
	copy(queue, sch.contexts)

	for len(queue) > 0 {
		ctx := queue[0]
		queue = queue[1:]

		ctx.turn <- struct{}{}
		<-ctx.paused

		if !ctx.tx.IsDone() {
			queue = append(queue, ctx)
		}
	}
}

// History returns the accumulated read/write history for the batch just
// drained by Start, in the order the scheduler actually observed it.
func (sch *Scheduler) History() []conflict.HistoryEntry {
	sch.mu.Lock()
	defer sch.mu.Unlock()
	out := make([]conflict.HistoryEntry, len(sch.history))
	copy(out, sch.history)
	return out
}

// Graph builds the conflict graph for the history recorded so far. Typical
// use is after Start returns, at scheduler teardown, per spec.md §2.
func (sch *Scheduler) Graph() *conflict.Graph {
	return conflict.Build(sch.History())
}
