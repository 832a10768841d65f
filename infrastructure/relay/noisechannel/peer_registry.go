package noisechannel

import (
	"sync"
	"tungo/domain/relay"

	noiselib "github.com/flynn/noise"
)

type peerPhase uint8

const (
	peerHandshake peerPhase = iota
	peerTransport
)

type peerEntry struct {
	phase  peerPhase
	hs     *noiselib.HandshakeState
	cipher *transportCipher
}

// PeerRegistry owns per-peer Noise state under a single-writer discipline
// (component B). Keys are the peer's advertised static public key,
// inserted at most once per successful handshake attempt.
type PeerRegistry struct {
	mu    sync.RWMutex
	local relay.Keypair
	peers map[string]*peerEntry
}

// NewPeerRegistry constructs an empty registry bound to the client's local
// static keypair.
func NewPeerRegistry(local relay.Keypair) *PeerRegistry {
	return &PeerRegistry{
		local: local,
		peers: make(map[string]*peerEntry),
	}
}

func keyOf(peerKey []byte) string {
	return string(peerKey)
}

// BeginInitiator constructs and stores a Noise initiator for peerKey,
// returning its first message. Fails PeerAlreadyExists if already present.
func (r *PeerRegistry) BeginInitiator(peerKey []byte) (relay.HandshakeMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.peers[keyOf(peerKey)]; exists {
		return relay.HandshakeMessage{}, relay.ErrPeerAlreadyExists
	}

	hs, err := newHandshakeState(r.local, peerKey, true)
	if err != nil {
		return relay.HandshakeMessage{}, &relay.ProtocolError{Op: "begin peer initiator", Err: err}
	}
	buf, _, _, err := hs.WriteMessage(nil, nil)
	if err != nil {
		return relay.HandshakeMessage{}, &relay.ProtocolError{Op: "write peer handshake message 1", Err: err}
	}

	r.peers[keyOf(peerKey)] = &peerEntry{phase: peerHandshake, hs: hs}
	return relay.HandshakeMessage{Role: relay.RoleInitiator, Length: uint32(len(buf)), Buf: buf}, nil
}

// BeginResponder constructs a Noise responder for an incoming initiator
// message, consumes it, and returns the responder's reply. The stored
// state transitions directly to Transport: IK completes in two messages,
// so a responder never observes an intermediate Handshake phase.
//
// Fails PeerAlreadyExistsMaybeRace if an entry already exists: this is the
// case where two peers initiated toward each other concurrently and both
// sides' event loops are about to process the other's initiator message.
func (r *PeerRegistry) BeginResponder(peerKey []byte, msg relay.HandshakeMessage) (relay.HandshakeMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.peers[keyOf(peerKey)]; exists {
		return relay.HandshakeMessage{}, relay.ErrPeerAlreadyExistsMaybeRace
	}

	hs, err := newHandshakeState(r.local, nil, false)
	if err != nil {
		return relay.HandshakeMessage{}, &relay.ProtocolError{Op: "begin peer responder", Err: err}
	}
	if _, _, _, err := hs.ReadMessage(nil, msg.Significant()); err != nil {
		return relay.HandshakeMessage{}, &relay.ProtocolError{Op: "read peer handshake message 1", Err: err}
	}
	reply, cs1, cs2, err := hs.WriteMessage(nil, nil)
	if err != nil {
		return relay.HandshakeMessage{}, &relay.ProtocolError{Op: "write peer handshake message 2", Err: err}
	}
	if cs1 == nil || cs2 == nil {
		return relay.HandshakeMessage{}, &relay.ProtocolError{Op: "complete peer responder handshake", Err: errHandshakeIncomplete}
	}

	r.peers[keyOf(peerKey)] = &peerEntry{phase: peerTransport, cipher: splitByRole(cs1, cs2, false)}
	return relay.HandshakeMessage{Role: relay.RoleResponder, Length: uint32(len(reply)), Buf: reply}, nil
}

// CompleteInitiator is the initiator side receiving the responder's reply.
// The registry write-lock is held across the phase transition (rather than
// removing and reinserting the entry), so a concurrent reader never
// observes a transient absence of the key.
func (r *PeerRegistry) CompleteInitiator(peerKey []byte, msg relay.HandshakeMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.peers[keyOf(peerKey)]
	if !ok {
		return relay.ErrPeerNotFound
	}
	if entry.phase != peerHandshake {
		return relay.ErrNotHandshakeState
	}

	_, cs1, cs2, err := entry.hs.ReadMessage(nil, msg.Significant())
	if err != nil {
		return &relay.ProtocolError{Op: "read peer handshake message 2", Err: err}
	}
	if cs1 == nil || cs2 == nil {
		return &relay.ProtocolError{Op: "complete peer initiator handshake", Err: errHandshakeIncomplete}
	}

	entry.cipher = splitByRole(cs1, cs2, true)
	entry.phase = peerTransport
	entry.hs = nil
	return nil
}

// Encrypt builds the RequestMessage to relay to peerKey. Fails PeerNotFound
// if no entry exists and NotTransportState if its handshake has not yet
// completed.
func (r *PeerRegistry) Encrypt(
	peerKey []byte,
	plaintext []byte,
	encoding relay.Encoding,
	broadcast bool,
	session relay.SessionId,
	hasSession bool,
) (relay.RequestMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.peers[keyOf(peerKey)]
	if !ok {
		return relay.RequestMessage{}, relay.ErrPeerNotFound
	}
	if entry.phase != peerTransport {
		return relay.RequestMessage{}, relay.ErrNotTransportState
	}

	env, err := entry.cipher.encrypt(plaintext)
	if err != nil {
		return relay.RequestMessage{}, err
	}
	env.Encoding = encoding
	env.Broadcast = broadcast
	return relay.NewPeerMessageRequest(peerKey, session, hasSession, env), nil
}

// Decrypt recovers the plaintext of an envelope addressed from peerKey.
func (r *PeerRegistry) Decrypt(peerKey []byte, env relay.SealedEnvelope) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.peers[keyOf(peerKey)]
	if !ok {
		return nil, relay.ErrPeerNotFound
	}
	if entry.phase != peerTransport {
		return nil, relay.ErrNotTransportState
	}
	return entry.cipher.decrypt(env)
}

// Contains reports whether peerKey has an entry, regardless of phase.
func (r *PeerRegistry) Contains(peerKey []byte) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.peers[keyOf(peerKey)]
	return ok
}

// InTransport reports whether peerKey's entry has completed its handshake.
func (r *PeerRegistry) InTransport(peerKey []byte) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.peers[keyOf(peerKey)]
	return ok && entry.phase == peerTransport
}
