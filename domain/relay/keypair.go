package relay

import (
	noiselib "github.com/flynn/noise"
)

// PatternName is the Noise handshake pattern used by every channel this
// client opens, both the server channel and each peer channel. Each side
// supplies the other's static public key in advance (the caller of
// ConnectPeer already knows the peer's key; BeginResponder is handed it
// too), which is IK's precondition rather than XX's. It doubles as the
// handshake prologue, binding both sides to the same pattern/cipher choice
// before any key material is exchanged.
const PatternName = "Noise_IK_25519_ChaChaPoly_SHA256"

// TagLen is the Noise AEAD authentication tag length in bytes.
const TagLen = 16

// cipherSuite is shared by every channel this client opens.
var cipherSuite = noiselib.NewCipherSuite(noiselib.DH25519, noiselib.CipherChaChaPoly, noiselib.HashSHA256)

// Pattern returns the Noise handshake pattern all channels use.
func Pattern() noiselib.HandshakePattern {
	return noiselib.HandshakeIK
}

// CipherSuite returns the shared Noise cipher suite.
func CipherSuite() noiselib.CipherSuite {
	return cipherSuite
}

// Keypair is a local static Diffie-Hellman keypair.
type Keypair struct {
	Private []byte
	Public  []byte
}

// GenerateKeypair produces a fresh static keypair for PATTERN.
func GenerateKeypair() (Keypair, error) {
	dh, err := cipherSuite.GenerateKeypair(nil)
	if err != nil {
		return Keypair{}, err
	}
	return Keypair{Private: dh.Private, Public: dh.Public}, nil
}

func (k Keypair) dhKey() noiselib.DHKey {
	return noiselib.DHKey{Private: k.Private, Public: k.Public}
}

// DHKey exposes the keypair in the shape flynn/noise expects.
func (k Keypair) DHKey() noiselib.DHKey {
	return k.dhKey()
}
