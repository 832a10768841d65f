package relay

import "errors"

// State errors: an operation was issued against a channel in the wrong
// handshake phase.
var (
	ErrNotHandshakeState = errors.New("relay: channel is not in handshake state")
	ErrNotTransportState = errors.New("relay: channel is not in transport state")
)

// Registry errors.
var (
	ErrPeerAlreadyExists          = errors.New("relay: peer already exists")
	ErrPeerAlreadyExistsMaybeRace = errors.New("relay: peer already exists (possible simultaneous connect)")
	ErrPeerNotFound               = errors.New("relay: peer not found")
)

// ErrOutboundClosed is returned by facade operations once the outbound
// queue has been closed by a shutdown of the event loop.
var ErrOutboundClosed = errors.New("relay: outbound queue closed")

// ErrMaxEnvelopeExceeded is a codec error: a decoded envelope/frame exceeded
// MaxEnvelopeLength.
var ErrMaxEnvelopeExceeded = errors.New("relay: envelope exceeds maximum length")

// ProtocolError wraps a failure surfaced by the underlying Noise library
// (bad MAC, bad length, exhausted nonce).
type ProtocolError struct {
	Op  string
	Err error
}

func (e *ProtocolError) Error() string {
	return "relay: protocol error during " + e.Op + ": " + e.Err.Error()
}

func (e *ProtocolError) Unwrap() error { return e.Err }

// HttpError is returned when the transport upgrade does not complete with
// 101 Switching Protocols.
type HttpError struct {
	Code int
	Text string
}

func (e *HttpError) Error() string {
	return "relay: http upgrade failed: " + e.Text
}

// ServerError wraps a decrypted ServerMessage.Error sent by the relay
// server.
type ServerError struct {
	Code int
	Text string
}

func (e *ServerError) Error() string {
	return "relay: server error " + e.Text
}

// CodecError wraps an encode/decode failure of a frame.
type CodecError struct {
	Op  string
	Err error
}

func (e *CodecError) Error() string {
	return "relay: codec error during " + e.Op + ": " + e.Err.Error()
}

func (e *CodecError) Unwrap() error { return e.Err }
