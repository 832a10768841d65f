package noisechannel

import (
	"bytes"
	"errors"
	"testing"
	"tungo/domain/relay"

	noiselib "github.com/flynn/noise"
)

func mustKeypair(t *testing.T) relay.Keypair {
	t.Helper()
	kp, err := relay.GenerateKeypair()
	if err != nil {
		t.Fatalf("GenerateKeypair returned error: %v", err)
	}
	return kp
}

// serverStandIn drives the responder side of the handshake the way a
// relay server would, so ServerChannel can be exercised without a real
// network connection.
func newServerStandIn(t *testing.T, serverKeys relay.Keypair) *noiselib.HandshakeState {
	t.Helper()
	hs, err := noiselib.NewHandshakeState(noiselib.Config{
		CipherSuite:   relay.CipherSuite(),
		Pattern:       relay.Pattern(),
		Initiator:     false,
		StaticKeypair: serverKeys.DHKey(),
		Prologue:      []byte(relay.PatternName),
	})
	if err != nil {
		t.Fatalf("server stand-in handshake state: %v", err)
	}
	return hs
}

func TestServerChannel_HandshakeAndTransport(t *testing.T) {
	clientKeys := mustKeypair(t)
	serverKeys := mustKeypair(t)

	sc := NewServerChannel()
	if err := sc.Initialize(clientKeys, serverKeys.Public); err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}

	msg1, err := sc.WriteFirst()
	if err != nil {
		t.Fatalf("WriteFirst returned error: %v", err)
	}

	serverHs := newServerStandIn(t, serverKeys)
	if _, _, _, err := serverHs.ReadMessage(nil, msg1.Significant()); err != nil {
		t.Fatalf("server failed to read message 1: %v", err)
	}
	msg2Buf, cs1, cs2, err := serverHs.WriteMessage(nil, nil)
	if err != nil {
		t.Fatalf("server failed to write message 2: %v", err)
	}

	if sc.InTransport() {
		t.Fatalf("channel reports transport before Complete")
	}

	err = sc.Complete(relay.HandshakeMessage{Role: relay.RoleResponder, Length: uint32(len(msg2Buf)), Buf: msg2Buf})
	if err != nil {
		t.Fatalf("Complete returned error: %v", err)
	}
	if !sc.InTransport() {
		t.Fatalf("channel not in transport after Complete")
	}

	env, err := sc.Encrypt([]byte("hello server"))
	if err != nil {
		t.Fatalf("Encrypt returned error: %v", err)
	}
	if env.Length != uint32(len("hello server")+relay.TagLen) {
		t.Fatalf("unexpected envelope length: %d", env.Length)
	}

	serverCipher := splitByRole(cs1, cs2, false)
	plaintext, err := serverCipher.decrypt(env)
	if err != nil {
		t.Fatalf("server decrypt returned error: %v", err)
	}
	if !bytes.Equal(plaintext, []byte("hello server")) {
		t.Fatalf("plaintext mismatch: %q", plaintext)
	}
}

func TestServerChannel_WrongStateErrors(t *testing.T) {
	sc := NewServerChannel()

	if _, err := sc.WriteFirst(); !errors.Is(err, relay.ErrNotHandshakeState) {
		t.Fatalf("expected ErrNotHandshakeState before Initialize, got %v", err)
	}
	if _, err := sc.Encrypt([]byte("x")); !errors.Is(err, relay.ErrNotTransportState) {
		t.Fatalf("expected ErrNotTransportState before handshake, got %v", err)
	}

	clientKeys := mustKeypair(t)
	serverKeys := mustKeypair(t)
	if err := sc.Initialize(clientKeys, serverKeys.Public); err != nil {
		t.Fatalf("Initialize returned error: %v", err)
	}
	if err := sc.Initialize(clientKeys, serverKeys.Public); !errors.Is(err, relay.ErrNotHandshakeState) {
		t.Fatalf("expected ErrNotHandshakeState on double Initialize, got %v", err)
	}
}
