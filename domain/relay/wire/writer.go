package wire

import (
	"bytes"
	"encoding/binary"
	"tungo/domain/relay"
)

// writer accumulates an encoded frame. It is a thin wrapper over
// bytes.Buffer with fixed-width helpers for the field shapes this codec
// needs.
type writer struct {
	buf bytes.Buffer
}

func (w *writer) byte(b byte) {
	w.buf.WriteByte(b)
}

func (w *writer) uint16(v uint16) {
	var b [2]byte
	binary.BigEndian.PutUint16(b[:], v)
	w.buf.Write(b[:])
}

func (w *writer) uint32(v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

func (w *writer) fixed(b []byte) {
	w.buf.Write(b)
}

func (w *writer) bytes16(b []byte) {
	w.uint16(uint16(len(b)))
	w.buf.Write(b)
}

func (w *writer) bytes32(b []byte) {
	w.uint32(uint32(len(b)))
	w.buf.Write(b)
}

func (w *writer) bool(v bool) {
	if v {
		w.byte(1)
	} else {
		w.byte(0)
	}
}

func (w *writer) sessionId(id relay.SessionId) {
	w.fixed(id[:])
}

func (w *writer) bytesOut() []byte {
	return w.buf.Bytes()
}
