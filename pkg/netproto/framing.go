package netproto

import (
	"encoding/binary"
	"fmt"
	"io"
)

// WriteFrame writes msgType and payload as a length-prefixed frame: a
// 4-byte little-endian length (covering the type byte and payload), the
// type byte, then the payload bytes.
func WriteFrame(w io.Writer, msgType MsgType, payload []byte) error {
	length := uint32(1 + len(payload))
	if err := binary.Write(w, binary.LittleEndian, length); err != nil {
		return fmt.Errorf("netproto: write length: %w", err)
	}
	if err := binary.Write(w, binary.LittleEndian, msgType); err != nil {
		return fmt.Errorf("netproto: write type: %w", err)
	}
	if len(payload) > 0 {
		if _, err := w.Write(payload); err != nil {
			return fmt.Errorf("netproto: write payload: %w", err)
		}
	}
	return nil
}

// ReadFrame reads one length-prefixed frame from r, per WriteFrame's
// layout.
func ReadFrame(r io.Reader) (MsgType, []byte, error) {
	var length uint32
	if err := binary.Read(r, binary.LittleEndian, &length); err != nil {
		return 0, nil, err
	}
	if length == 0 {
		return 0, nil, fmt.Errorf("netproto: zero-length frame")
	}

	var msgType MsgType
	if err := binary.Read(r, binary.LittleEndian, &msgType); err != nil {
		return 0, nil, fmt.Errorf("netproto: read type: %w", err)
	}

	payload := make([]byte, length-1)
	if len(payload) > 0 {
		if _, err := io.ReadFull(r, payload); err != nil {
			return 0, nil, fmt.Errorf("netproto: read payload: %w", err)
		}
	}
	return msgType, payload, nil
}
