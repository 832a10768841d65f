package wire

import (
	"encoding/binary"
	"tungo/domain/relay"
)

// reader walks a byte slice left to right, bounds-checking every read. It
// is the decode-side counterpart of bytes.Buffer for the fixed, known-shape
// fields this codec uses.
type reader struct {
	data []byte
	pos  int
}

func newReader(data []byte) *reader {
	return &reader{data: data}
}

func (r *reader) remaining() int {
	return len(r.data) - r.pos
}

func (r *reader) byte() (byte, error) {
	if r.remaining() < 1 {
		return 0, ErrTooShort
	}
	b := r.data[r.pos]
	r.pos++
	return b, nil
}

func (r *reader) uint16() (uint16, error) {
	if r.remaining() < 2 {
		return 0, ErrTooShort
	}
	v := binary.BigEndian.Uint16(r.data[r.pos : r.pos+2])
	r.pos += 2
	return v, nil
}

func (r *reader) uint32() (uint32, error) {
	if r.remaining() < 4 {
		return 0, ErrTooShort
	}
	v := binary.BigEndian.Uint32(r.data[r.pos : r.pos+4])
	r.pos += 4
	return v, nil
}

func (r *reader) fixed(n int) ([]byte, error) {
	if r.remaining() < n {
		return nil, ErrTooShort
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) bytes16() ([]byte, error) {
	n, err := r.uint16()
	if err != nil {
		return nil, err
	}
	if int(n) > relay.MaxEnvelopeLength {
		return nil, ErrTooLarge
	}
	return r.fixed(int(n))
}

func (r *reader) bytes32() ([]byte, error) {
	n, err := r.uint32()
	if err != nil {
		return nil, err
	}
	if n > relay.MaxEnvelopeLength {
		return nil, ErrTooLarge
	}
	return r.fixed(int(n))
}

func (r *reader) bool() (bool, error) {
	b, err := r.byte()
	if err != nil {
		return false, err
	}
	return b != 0, nil
}

func (r *reader) sessionId() (relay.SessionId, error) {
	var id relay.SessionId
	b, err := r.fixed(relay.SessionIdLen)
	if err != nil {
		return id, err
	}
	copy(id[:], b)
	return id, nil
}
