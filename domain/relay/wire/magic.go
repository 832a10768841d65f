package wire

// Magic bytes identifying an encoded RequestMessage/ResponseMessage frame.
const (
	MagicByte1 = 'R'
	MagicByte2 = 'C'
)

var MagicRC = [2]byte{MagicByte1, MagicByte2}

// Magic bytes identifying an encoded ServerMessage (the inner plaintext of
// an Opaque::ServerMessage envelope, encoded independently of the outer
// frame).
const (
	InnerMagicByte1 = 'S'
	InnerMagicByte2 = 'M'
)

var MagicSM = [2]byte{InnerMagicByte1, InnerMagicByte2}

// Version is the wire format version.
type Version uint8

const V1 Version = 1

func (v Version) IsValid() bool { return v == V1 }
