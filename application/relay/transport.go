package relay

import "context"

// Transport is the message-framed bidirectional connection the event loop
// drives. Each ReadFrame/WriteFrame call corresponds to exactly one binary
// transport frame, carrying the encoded form of one ResponseMessage or
// RequestMessage.
type Transport interface {
	// ReadFrame blocks until one binary frame is available, ctx is
	// cancelled, or the connection closes (io.EOF).
	ReadFrame(ctx context.Context) ([]byte, error)

	// WriteFrame writes and flushes one binary frame.
	WriteFrame(ctx context.Context, frame []byte) error

	Close() error
}
