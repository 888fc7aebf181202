// Package netproto defines the length-prefixed msgpack wire framing used
// by cmd/seccampdb-server and its clients, adapted from the SQL query/
// result protocol this repo's teacher used for the same purpose. See
// SPEC_FULL.md §6.
package netproto

import (
	"github.com/vmihailenco/msgpack/v5"
)

// MsgType identifies the payload that follows a frame's length prefix.
type MsgType uint8

const (
	MsgBegin      MsgType = 0x01
	MsgSet        MsgType = 0x02
	MsgGet        MsgType = 0x03
	MsgDel        MsgType = 0x04
	MsgKeys       MsgType = 0x05
	MsgCommit     MsgType = 0x06
	MsgAbort      MsgType = 0x07
	MsgValue      MsgType = 0x10
	MsgKeysResult MsgType = 0x11
	MsgOK         MsgType = 0x12
	MsgError      MsgType = 0x13
	MsgPing       MsgType = 0x20
	MsgPong       MsgType = 0x21
)

// Message pairs a type tag with its encoded payload as a single msgpack
// value. Frames on the TCP connection are not Messages; they use the
// length-prefixed layout of WriteFrame.
type Message struct {
	Type    MsgType
	Payload []byte
}

// SetMessage requests a Set(Key, Value) on the connection's transaction.
type SetMessage struct {
	Key   string `msgpack:"key"`
	Value int64  `msgpack:"value"`
}

// KeyMessage requests a Get or Del on Key.
type KeyMessage struct {
	Key string `msgpack:"key"`
}

// ValueMessage carries a Get result.
type ValueMessage struct {
	Value int64 `msgpack:"value"`
	Found bool  `msgpack:"found"`
}

// KeysResultMessage carries a Keys result.
type KeysResultMessage struct {
	Keys []string `msgpack:"keys"`
}

// ErrorMessage carries a failure response.
type ErrorMessage struct {
	Message string `msgpack:"message"`
}

// Encode msgpack-encodes v.
func Encode(v interface{}) ([]byte, error) {
	return msgpack.Marshal(v)
}

// Decode msgpack-decodes data into v.
func Decode(data []byte, v interface{}) error {
	return msgpack.Unmarshal(data, v)
}

// EncodeMessage encodes payload and wraps it with msgType into a Message,
// then msgpack-encodes that Message.
func EncodeMessage(msgType MsgType, payload interface{}) ([]byte, error) {
	var pay []byte
	var err error
	if payload != nil {
		pay, err = Encode(payload)
		if err != nil {
			return nil, err
		}
	}

	return Encode(Message{Type: msgType, Payload: pay})
}

// DecodeMessage decodes a Message previously produced by EncodeMessage.
func DecodeMessage(data []byte) (*Message, error) {
	var msg Message
	if err := Decode(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// NewErrorMessage builds an ErrorMessage.
func NewErrorMessage(message string) *ErrorMessage {
	return &ErrorMessage{Message: message}
}
