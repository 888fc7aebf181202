package conflict

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReadReadNonConflict(t *testing.T) {
	// S3: two transactions only ever read; no edges, trivial schedule.
	history := []HistoryEntry{
		{TxID: 1, Key: "k1", Op: ReadOp},
		{TxID: 1, Key: "k2", Op: ReadOp},
		{TxID: 2, Key: "k2", Op: ReadOp},
		{TxID: 2, Key: "k1", Op: ReadOp},
	}

	g := Build(history)
	assert.ElementsMatch(t, []uint64{1, 2}, g.Nodes)
	assert.Empty(t, g.Edges)
	assert.Equal(t, []uint64{1, 2}, g.SerialSchedule())
}

func TestWriteReadConflict(t *testing.T) {
	// S4: T1 writes k, commits (WriteOp recorded), then T2 reads k.
	history := []HistoryEntry{
		{TxID: 1, Key: "k", Op: WriteOp},
		{TxID: 2, Key: "k", Op: ReadOp},
	}

	g := Build(history)
	require := assert.New(t)
	require.Len(g.Edges, 1)
	require.Equal(Edge{From: 1, To: 2, Label: LabelWriteRead}, g.Edges[0])
	require.Equal([]uint64{1, 2}, g.SerialSchedule())
}

func TestReadWriteConflict(t *testing.T) {
	history := []HistoryEntry{
		{TxID: 1, Key: "k", Op: ReadOp},
		{TxID: 2, Key: "k", Op: ReadOp},
		{TxID: 3, Key: "k", Op: WriteOp},
	}

	g := Build(history)
	assert.Len(t, g.Edges, 2)
	labels := map[uint64]EdgeLabel{}
	for _, e := range g.Edges {
		assert.Equal(t, uint64(3), e.To)
		labels[e.From] = e.Label
	}
	assert.Equal(t, LabelReadWrite, labels[1])
	assert.Equal(t, LabelReadWrite, labels[2])
}

func TestWriteWriteConflict(t *testing.T) {
	history := []HistoryEntry{
		{TxID: 1, Key: "k", Op: WriteOp},
		{TxID: 2, Key: "k", Op: WriteOp},
	}

	g := Build(history)
	require := assert.New(t)
	require.Len(g.Edges, 1)
	require.Equal(Edge{From: 1, To: 2, Label: LabelWriteWrite}, g.Edges[0])
}

func TestSelfLoopSuppressed(t *testing.T) {
	history := []HistoryEntry{
		{TxID: 1, Key: "k", Op: WriteOp},
		{TxID: 1, Key: "k", Op: WriteOp},
	}

	g := Build(history)
	assert.Empty(t, g.Edges)
}

func TestCycleYieldsEmptySchedule(t *testing.T) {
	// T1 writes k, T2 reads k (T1->T2), then T2 writes j, T1 reads j (T2->T1): a cycle.
	history := []HistoryEntry{
		{TxID: 1, Key: "k", Op: WriteOp},
		{TxID: 2, Key: "k", Op: ReadOp},
		{TxID: 2, Key: "j", Op: WriteOp},
		{TxID: 1, Key: "j", Op: ReadOp},
	}

	g := Build(history)
	assert.Empty(t, g.SerialSchedule())
}

func TestGraphvizFormat(t *testing.T) {
	history := []HistoryEntry{
		{TxID: 1, Key: "k", Op: WriteOp},
		{TxID: 2, Key: "k", Op: ReadOp},
	}
	g := Build(history)
	out := g.Graphviz()

	assert.Contains(t, out, "digraph g {")
	assert.Contains(t, out, "Tx1;")
	assert.Contains(t, out, "Tx2;")
	assert.Contains(t, out, `Tx1 -> Tx2 [label = "w-r"];`)
	assert.Contains(t, out, "serial schedule:\n1\n2")
}
