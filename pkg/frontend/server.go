// Package frontend accepts TCP connections and drives one transaction per
// connection against a shared Store, using the wire framing and message
// types in pkg/netproto. It is adapted from the teacher's pkg/server
// accept-loop/per-connection-goroutine shape; the SQL query/result
// handling is replaced by the seven-verb KV command surface. See
// SPEC_FULL.md §6.
//
// Connections run concurrently via real goroutine scheduling rather than
// the cooperative turn-passing pkg/scheduler uses for its batch/offline
// mode: a blocked lock acquisition here just backs off and retries, since
// there is no central stepper to yield control to.
package frontend

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/seccampdb/seccampdb/pkg/conflict"
	"github.com/seccampdb/seccampdb/pkg/netproto"
	"github.com/seccampdb/seccampdb/pkg/store"
	"github.com/seccampdb/seccampdb/pkg/txn"
)

// ErrServerClosed is returned by Serve after Close stops the accept loop.
var ErrServerClosed = errors.New("frontend: server is closed")

// lockRetryInterval is how long a connection's transaction backs off
// between failed lock-acquisition attempts.
const lockRetryInterval = 2 * time.Millisecond

// Server accepts connections against a shared Store and records the
// combined history of every transaction that commits, for later conflict
// analysis.
type Server struct {
	store    *store.Store
	listener net.Listener

	mu      sync.Mutex
	conns   map[uint64]net.Conn
	nextID  uint64
	history []conflict.HistoryEntry
	closed  bool
}

// New creates a server serving s.
func New(s *store.Store) *Server {
	return &Server{store: s, conns: make(map[uint64]net.Conn)}
}

// Record implements txn.Recorder, appending to the server's combined
// history across every connection's transaction.
func (srv *Server) Record(txID uint64, key string, op txn.Op) {
	var o conflict.Op
	if op == txn.WriteOp {
		o = conflict.WriteOp
	}
	srv.mu.Lock()
	srv.history = append(srv.history, conflict.HistoryEntry{TxID: txID, Key: key, Op: o})
	srv.mu.Unlock()
}

// History returns the combined history recorded so far.
func (srv *Server) History() []conflict.HistoryEntry {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	out := make([]conflict.HistoryEntry, len(srv.history))
	copy(out, srv.history)
	return out
}

// Serve accepts connections on listener until Close is called.
func (srv *Server) Serve(listener net.Listener) error {
	srv.listener = listener
	for {
		conn, err := listener.Accept()
		if err != nil {
			srv.mu.Lock()
			closed := srv.closed
			srv.mu.Unlock()
			if closed {
				return ErrServerClosed
			}
			return err
		}

		srv.mu.Lock()
		srv.nextID++
		id := srv.nextID
		srv.conns[id] = conn
		srv.mu.Unlock()

		go srv.handle(id, conn)
	}
}

// Close stops accepting new connections and closes every live one.
func (srv *Server) Close() error {
	srv.mu.Lock()
	defer srv.mu.Unlock()
	if srv.closed {
		return nil
	}
	srv.closed = true
	for _, c := range srv.conns {
		c.Close()
	}
	if srv.listener != nil {
		return srv.listener.Close()
	}
	return nil
}

func (srv *Server) removeConn(id uint64) {
	srv.mu.Lock()
	delete(srv.conns, id)
	srv.mu.Unlock()
}

// handle drives one connection's single transaction to completion: the
// first MsgBegin starts it, MsgSet/MsgGet/MsgDel/MsgKeys operate on it, and
// MsgCommit/MsgAbort ends it. The connection closes after that.
func (srv *Server) handle(id uint64, conn net.Conn) {
	defer func() {
		conn.Close()
		srv.removeConn(id)
	}()

	tx := txn.New(txn.NextID(), srv.store, srv)
	tx.SetYield(func() { time.Sleep(lockRetryInterval) })
	began := false

	for {
		msgType, payload, err := netproto.ReadFrame(conn)
		if err != nil {
			return
		}

		resp, respType := srv.dispatch(tx, &began, msgType, payload)
		if err := netproto.WriteFrame(conn, respType, resp); err != nil {
			return
		}
		if tx.IsDone() {
			return
		}
	}
}

func (srv *Server) dispatch(tx *txn.Transaction, began *bool, msgType netproto.MsgType, payload []byte) ([]byte, netproto.MsgType) {
	switch msgType {
	case netproto.MsgPing:
		return nil, netproto.MsgPong

	case netproto.MsgBegin:
		if *began {
			return errPayload("transaction already begun"), netproto.MsgError
		}
		*began = true
		tx.Begin()
		return nil, netproto.MsgOK

	case netproto.MsgSet:
		if !*began {
			return errPayload("transaction not begun"), netproto.MsgError
		}
		var m netproto.SetMessage
		if err := netproto.Decode(payload, &m); err != nil {
			return errPayload(err.Error()), netproto.MsgError
		}
		tx.Set(m.Key, m.Value)
		return nil, netproto.MsgOK

	case netproto.MsgGet:
		if !*began {
			return errPayload("transaction not begun"), netproto.MsgError
		}
		var m netproto.KeyMessage
		if err := netproto.Decode(payload, &m); err != nil {
			return errPayload(err.Error()), netproto.MsgError
		}
		val, ok := tx.Get(m.Key)
		out, err := netproto.Encode(&netproto.ValueMessage{Value: val, Found: ok})
		if err != nil {
			return errPayload(err.Error()), netproto.MsgError
		}
		return out, netproto.MsgValue

	case netproto.MsgDel:
		if !*began {
			return errPayload("transaction not begun"), netproto.MsgError
		}
		var m netproto.KeyMessage
		if err := netproto.Decode(payload, &m); err != nil {
			return errPayload(err.Error()), netproto.MsgError
		}
		if !tx.Del(m.Key) {
			return errPayload(fmt.Sprintf("key %q not found", m.Key)), netproto.MsgError
		}
		return nil, netproto.MsgOK

	case netproto.MsgKeys:
		if !*began {
			return errPayload("transaction not begun"), netproto.MsgError
		}
		out, err := netproto.Encode(&netproto.KeysResultMessage{Keys: tx.Keys()})
		if err != nil {
			return errPayload(err.Error()), netproto.MsgError
		}
		return out, netproto.MsgKeysResult

	case netproto.MsgCommit:
		if !*began {
			return errPayload("transaction not begun"), netproto.MsgError
		}
		if err := tx.Commit(); err != nil {
			return errPayload(err.Error()), netproto.MsgError
		}
		return nil, netproto.MsgOK

	case netproto.MsgAbort:
		if !*began {
			return errPayload("transaction not begun"), netproto.MsgError
		}
		tx.Abort()
		return nil, netproto.MsgOK

	default:
		return errPayload(fmt.Sprintf("unknown message type: %d", msgType)), netproto.MsgError
	}
}

func errPayload(msg string) []byte {
	data, err := netproto.Encode(netproto.NewErrorMessage(msg))
	if err != nil {
		return nil
	}
	return data
}
