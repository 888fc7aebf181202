package trace

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/seccampdb/seccampdb/pkg/conflict"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	history := []conflict.HistoryEntry{
		{TxID: 1, Key: "a", Op: conflict.WriteOp},
		{TxID: 2, Key: "a", Op: conflict.ReadOp},
	}

	data, err := Encode(history)
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, history, got)
}

func TestDumpLoadRoundTrip(t *testing.T) {
	history := []conflict.HistoryEntry{
		{TxID: 1, Key: "k", Op: conflict.WriteOp},
	}
	path := filepath.Join(t.TempDir(), "trace.out")

	require.NoError(t, Dump(path, history))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, history, got)
}

func TestDecodeRejectsUnknownOp(t *testing.T) {
	data, err := msgpack.Marshal([]entry{{TxID: 1, Key: "k", Op: "scan"}})
	require.NoError(t, err)

	_, err = Decode(data)
	assert.Error(t, err)
}
