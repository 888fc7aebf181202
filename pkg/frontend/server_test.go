package frontend

import (
	"net"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seccampdb/seccampdb/pkg/netproto"
	"github.com/seccampdb/seccampdb/pkg/store"
)

func newStore(t *testing.T) *store.Store {
	dir := t.TempDir()
	s, err := store.New(filepath.Join(dir, "snap"), filepath.Join(dir, "wal"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Shutdown() })
	return s
}

func startServer(t *testing.T, s *store.Store) (*Server, net.Conn) {
	srv := New(s)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go srv.Serve(ln)
	t.Cleanup(func() { srv.Close() })

	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return srv, conn
}

func send(t *testing.T, conn net.Conn, msgType netproto.MsgType, payload interface{}) (netproto.MsgType, []byte) {
	var data []byte
	var err error
	if payload != nil {
		data, err = netproto.Encode(payload)
		require.NoError(t, err)
	}
	require.NoError(t, netproto.WriteFrame(conn, msgType, data))

	gotType, gotPayload, err := netproto.ReadFrame(conn)
	require.NoError(t, err)
	return gotType, gotPayload
}

func TestSetGetCommitOverTheWire(t *testing.T) {
	s := newStore(t)
	_, conn := startServer(t, s)

	respType, _ := send(t, conn, netproto.MsgBegin, nil)
	assert.Equal(t, netproto.MsgOK, respType)

	respType, _ = send(t, conn, netproto.MsgSet, &netproto.SetMessage{Key: "k1", Value: 5})
	assert.Equal(t, netproto.MsgOK, respType)

	respType, payload := send(t, conn, netproto.MsgGet, &netproto.KeyMessage{Key: "k1"})
	require.Equal(t, netproto.MsgValue, respType)
	var val netproto.ValueMessage
	require.NoError(t, netproto.Decode(payload, &val))
	assert.True(t, val.Found)
	assert.EqualValues(t, 5, val.Value)

	respType, _ = send(t, conn, netproto.MsgCommit, nil)
	assert.Equal(t, netproto.MsgOK, respType)

	got, ok := s.Get("k1")
	assert.True(t, ok)
	assert.EqualValues(t, 5, got)
}

func TestPingPong(t *testing.T) {
	s := newStore(t)
	_, conn := startServer(t, s)

	respType, _ := send(t, conn, netproto.MsgPing, nil)
	assert.Equal(t, netproto.MsgPong, respType)
}

func TestGetBeforeBeginErrors(t *testing.T) {
	s := newStore(t)
	_, conn := startServer(t, s)

	respType, _ := send(t, conn, netproto.MsgGet, &netproto.KeyMessage{Key: "k1"})
	assert.Equal(t, netproto.MsgError, respType)
}
