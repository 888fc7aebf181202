// Package trace dumps a recorded transaction history to a sidecar file
// alongside the Graphviz conflict graph, so a later run of the analyzer
// tool can be pointed at exactly the history that produced a given graph
// without re-running the transactions. See SPEC_FULL.md §6.
package trace

import (
	"fmt"
	"os"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/seccampdb/seccampdb/pkg/conflict"
)

// entry is the on-disk shape of one conflict.HistoryEntry. conflict.Op is
// unexported at the wire level — encoded as a plain string so the trace
// file stays readable with any generic msgpack dump tool.
type entry struct {
	TxID uint64 `msgpack:"tx_id"`
	Key  string `msgpack:"key"`
	Op   string `msgpack:"op"`
}

func toEntry(h conflict.HistoryEntry) entry {
	op := "read"
	if h.Op == conflict.WriteOp {
		op = "write"
	}
	return entry{TxID: h.TxID, Key: h.Key, Op: op}
}

func fromEntry(e entry) (conflict.HistoryEntry, error) {
	var op conflict.Op
	switch e.Op {
	case "read":
		op = conflict.ReadOp
	case "write":
		op = conflict.WriteOp
	default:
		return conflict.HistoryEntry{}, fmt.Errorf("trace: unknown op %q", e.Op)
	}
	return conflict.HistoryEntry{TxID: e.TxID, Key: e.Key, Op: op}, nil
}

// Encode msgpack-encodes history for writing to a trace file.
func Encode(history []conflict.HistoryEntry) ([]byte, error) {
	entries := make([]entry, len(history))
	for i, h := range history {
		entries[i] = toEntry(h)
	}
	return msgpack.Marshal(entries)
}

// Decode reverses Encode.
func Decode(data []byte) ([]conflict.HistoryEntry, error) {
	var entries []entry
	if err := msgpack.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("trace: decode: %w", err)
	}
	history := make([]conflict.HistoryEntry, len(entries))
	for i, e := range entries {
		h, err := fromEntry(e)
		if err != nil {
			return nil, err
		}
		history[i] = h
	}
	return history, nil
}

// Dump msgpack-encodes history and writes it to path.
func Dump(path string, history []conflict.HistoryEntry) error {
	data, err := Encode(history)
	if err != nil {
		return fmt.Errorf("trace: dump: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Load reads and decodes the trace file at path.
func Load(path string) ([]conflict.HistoryEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("trace: load: %w", err)
	}
	return Decode(data)
}
