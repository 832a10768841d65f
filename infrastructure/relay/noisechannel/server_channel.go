package noisechannel

import (
	"errors"
	"sync"
	"tungo/domain/relay"

	noiselib "github.com/flynn/noise"
)

var errHandshakeIncomplete = errors.New("noisechannel: handshake did not complete")

// phase tracks the server channel's lifecycle. It only ever moves forward:
// uninitialized -> awaitingReply -> transport.
type phase uint8

const (
	phaseUninitialized phase = iota
	phaseAwaitingReply
	phaseTransport
)

// ServerChannel owns the single server-facing Noise state through its
// handshake->transport lifecycle (component C). The client is always the
// initiator of this channel: it already knows the server's static public
// key from configuration.
type ServerChannel struct {
	mu sync.RWMutex

	phase           phase
	hs              *noiselib.HandshakeState
	cipher          *transportCipher
	serverPublicKey []byte
}

// NewServerChannel constructs an uninitialized server channel.
func NewServerChannel() *ServerChannel {
	return &ServerChannel{}
}

// Initialize constructs a handshake initiator bound to the configured
// server static public key.
func (c *ServerChannel) Initialize(local relay.Keypair, remoteServerPublic []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != phaseUninitialized {
		return relay.ErrNotHandshakeState
	}
	hs, err := newHandshakeState(local, remoteServerPublic, true)
	if err != nil {
		return &relay.ProtocolError{Op: "initialize server channel", Err: err}
	}
	c.hs = hs
	c.serverPublicKey = remoteServerPublic
	return nil
}

// WriteFirst produces the first Noise message (client -> server).
func (c *ServerChannel) WriteFirst() (relay.HandshakeMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hs == nil || c.phase != phaseUninitialized {
		return relay.HandshakeMessage{}, relay.ErrNotHandshakeState
	}
	buf, _, _, err := c.hs.WriteMessage(nil, nil)
	if err != nil {
		return relay.HandshakeMessage{}, &relay.ProtocolError{Op: "write server handshake message 1", Err: err}
	}
	c.phase = phaseAwaitingReply
	return relay.HandshakeMessage{Role: relay.RoleInitiator, Length: uint32(len(buf)), Buf: buf}, nil
}

// Complete consumes the responder's reply and transitions to transport.
func (c *ServerChannel) Complete(msg relay.HandshakeMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.hs == nil || c.phase != phaseAwaitingReply {
		return relay.ErrNotHandshakeState
	}
	_, cs1, cs2, err := c.hs.ReadMessage(nil, msg.Significant())
	if err != nil {
		return &relay.ProtocolError{Op: "read server handshake message 2", Err: err}
	}
	if cs1 == nil || cs2 == nil {
		return &relay.ProtocolError{Op: "complete server handshake", Err: errHandshakeIncomplete}
	}
	c.cipher = splitByRole(cs1, cs2, true)
	c.phase = phaseTransport
	c.hs = nil
	return nil
}

// Encrypt is valid only once the channel is in transport state.
func (c *ServerChannel) Encrypt(plaintext []byte) (relay.SealedEnvelope, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != phaseTransport {
		return relay.SealedEnvelope{}, relay.ErrNotTransportState
	}
	return c.cipher.encrypt(plaintext)
}

// Decrypt is valid only once the channel is in transport state.
func (c *ServerChannel) Decrypt(env relay.SealedEnvelope) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.phase != phaseTransport {
		return nil, relay.ErrNotTransportState
	}
	return c.cipher.decrypt(env)
}

// InTransport reports whether the channel has completed its handshake.
func (c *ServerChannel) InTransport() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.phase == phaseTransport
}

// ServerPublicKey returns the configured server static public key.
func (c *ServerChannel) ServerPublicKey() []byte {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.serverPublicKey
}
