package wire

import "errors"

var (
	ErrTooShort  = errors.New("wire: buffer too short")
	ErrBadMagic  = errors.New("wire: invalid magic")
	ErrBadVersion = errors.New("wire: unsupported version")
	ErrBadKind   = errors.New("wire: invalid message kind")
	ErrTooLarge  = errors.New("wire: field exceeds maximum length")
)
