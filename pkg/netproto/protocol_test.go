package netproto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeMessageRoundTrip(t *testing.T) {
	data, err := EncodeMessage(MsgSet, &SetMessage{Key: "k", Value: 5})
	require.NoError(t, err)

	msg, err := DecodeMessage(data)
	require.NoError(t, err)
	assert.Equal(t, MsgSet, msg.Type)

	var set SetMessage
	require.NoError(t, Decode(msg.Payload, &set))
	assert.Equal(t, "k", set.Key)
	assert.EqualValues(t, 5, set.Value)
}

func TestWriteReadFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	payload, err := Encode(&KeyMessage{Key: "x"})
	require.NoError(t, err)

	require.NoError(t, WriteFrame(&buf, MsgGet, payload))

	msgType, got, err := ReadFrame(&buf)
	require.NoError(t, err)
	assert.Equal(t, MsgGet, msgType)
	assert.Equal(t, payload, got)
}

func TestReadFrameRejectsZeroLength(t *testing.T) {
	var buf bytes.Buffer
	buf.Write([]byte{0, 0, 0, 0})
	_, _, err := ReadFrame(&buf)
	assert.Error(t, err)
}
