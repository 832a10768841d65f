package noisechannel

import (
	"fmt"
	"tungo/domain/relay"

	noiselib "github.com/flynn/noise"
)

// transportCipher owns a completed Noise handshake's split cipher states,
// oriented by this side's role so Encrypt always means "this side sends"
// and Decrypt always means "this side receives".
type transportCipher struct {
	send *noiselib.CipherState
	recv *noiselib.CipherState
}

// splitByRole assigns the Noise initiator/responder cipher-state pair
// (cs1, cs2 from HandshakeState.Split/WriteMessage/ReadMessage) to
// send/recv roles. By Noise convention c1 always carries initiator->
// responder traffic and c2 always carries responder->initiator traffic,
// independent of which side calls split.
func splitByRole(cs1, cs2 *noiselib.CipherState, initiator bool) *transportCipher {
	if initiator {
		return &transportCipher{send: cs1, recv: cs2}
	}
	return &transportCipher{send: cs2, recv: cs1}
}

func (c *transportCipher) encrypt(plaintext []byte) (relay.SealedEnvelope, error) {
	ciphertext, err := c.send.Encrypt(nil, nil, plaintext)
	if err != nil {
		return relay.SealedEnvelope{}, &relay.ProtocolError{Op: "encrypt", Err: err}
	}
	return relay.SealedEnvelope{
		Length:  uint32(len(ciphertext)),
		Payload: ciphertext,
	}, nil
}

func (c *transportCipher) decrypt(env relay.SealedEnvelope) ([]byte, error) {
	plaintext, err := c.recv.Decrypt(nil, nil, env.Significant())
	if err != nil {
		return nil, &relay.ProtocolError{Op: "decrypt", Err: err}
	}
	return plaintext, nil
}

func newHandshakeState(local relay.Keypair, peerStatic []byte, initiator bool) (*noiselib.HandshakeState, error) {
	cfg := noiselib.Config{
		CipherSuite:   relay.CipherSuite(),
		Pattern:       relay.Pattern(),
		Initiator:     initiator,
		StaticKeypair: local.DHKey(),
		PeerStatic:    peerStatic,
		Prologue:      []byte(relay.PatternName),
	}
	hs, err := noiselib.NewHandshakeState(cfg)
	if err != nil {
		return nil, fmt.Errorf("noisechannel: new handshake state: %w", err)
	}
	return hs, nil
}
