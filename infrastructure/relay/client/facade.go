package client

import (
	"context"
	"encoding/json"
	"tungo/domain/relay"
	"tungo/domain/relay/wire"
	"tungo/infrastructure/relay/noisechannel"

	applicationrelay "tungo/application/relay"
)

// Client is the facade (component D): the operations below are callable
// from any goroutine and never touch the transport directly. Each
// operation enqueues a RequestMessage and returns once enqueued; the event
// loop owns actually writing it to the wire.
type Client struct {
	ctx context.Context

	local           relay.Keypair
	serverPublicKey []byte

	server *noisechannel.ServerChannel
	peers  *noisechannel.PeerRegistry

	outbound chan relay.RequestMessage
	logger   applicationrelay.Logger
}

// newClient is unexported: callers use New, which returns the paired
// facade and event loop.
func newClient(ctx context.Context, local relay.Keypair, serverPublicKey []byte, outbound chan relay.RequestMessage, logger applicationrelay.Logger) *Client {
	return &Client{
		ctx:             ctx,
		local:           local,
		serverPublicKey: serverPublicKey,
		server:          noisechannel.NewServerChannel(),
		peers:           noisechannel.NewPeerRegistry(local),
		outbound:        outbound,
		logger:          logger,
	}
}

func (c *Client) enqueue(msg relay.RequestMessage) error {
	select {
	case c.outbound <- msg:
		return nil
	case <-c.ctx.Done():
		return relay.ErrOutboundClosed
	}
}

// Connect produces the first server handshake message and enqueues it.
func (c *Client) Connect() error {
	if err := c.server.Initialize(c.local, c.serverPublicKey); err != nil {
		return err
	}
	msg, err := c.server.WriteFirst()
	if err != nil {
		return err
	}
	return c.enqueue(relay.NewServerHandshakeRequest(msg))
}

// ConnectPeer begins a Noise handshake toward peerKey as initiator.
func (c *Client) ConnectPeer(peerKey []byte) error {
	msg, err := c.peers.BeginInitiator(peerKey)
	if err != nil {
		return err
	}
	return c.enqueue(relay.NewPeerHandshakeRequest(peerKey, msg))
}

// Send JSON-encodes value and relays it to peerKey.
func (c *Client) Send(peerKey []byte, value any, session relay.SessionId, hasSession bool) error {
	b, err := json.Marshal(value)
	if err != nil {
		return &relay.CodecError{Op: "marshal json payload", Err: err}
	}
	return c.relay(peerKey, b, relay.EncodingJson, false, session, hasSession)
}

// SendBlob relays raw bytes to peerKey.
func (c *Client) SendBlob(peerKey []byte, payload []byte, session relay.SessionId, hasSession bool) error {
	return c.relay(peerKey, payload, relay.EncodingBlob, false, session, hasSession)
}

// Broadcast JSON-encodes value once and relays it to every recipient.
func (c *Client) Broadcast(session relay.SessionId, recipients [][]byte, value any) error {
	b, err := json.Marshal(value)
	if err != nil {
		return &relay.CodecError{Op: "marshal json payload", Err: err}
	}
	for _, peerKey := range recipients {
		if err := c.relay(peerKey, b, relay.EncodingJson, true, session, true); err != nil {
			return err
		}
	}
	return nil
}

// BroadcastBlob relays raw bytes to every recipient.
func (c *Client) BroadcastBlob(session relay.SessionId, recipients [][]byte, payload []byte) error {
	for _, peerKey := range recipients {
		if err := c.relay(peerKey, payload, relay.EncodingBlob, true, session, true); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) relay(peerKey []byte, payload []byte, encoding relay.Encoding, broadcast bool, session relay.SessionId, hasSession bool) error {
	req, err := c.peers.Encrypt(peerKey, payload, encoding, broadcast, session, hasSession)
	if err != nil {
		return err
	}
	return c.enqueue(req)
}

// NewSession asks the server to create a session for participants.
func (c *Client) NewSession(participants [][]byte) error {
	return c.request(relay.ServerMessage{
		Kind:       relay.SMNewSession,
		NewSession: relay.SessionRequest{Participants: participants},
	})
}

func (c *Client) SessionReadyNotify(id relay.SessionId) error {
	return c.request(relay.ServerMessage{Kind: relay.SMSessionReadyNotify, SessionId: id})
}

func (c *Client) SessionActiveNotify(id relay.SessionId) error {
	return c.request(relay.ServerMessage{Kind: relay.SMSessionActiveNotify, SessionId: id})
}

func (c *Client) RegisterSessionConnection(id relay.SessionId, peerKey []byte) error {
	return c.request(relay.ServerMessage{Kind: relay.SMSessionConnection, SessionId: id, PeerKey: peerKey})
}

func (c *Client) CloseSession(id relay.SessionId) error {
	return c.request(relay.ServerMessage{Kind: relay.SMCloseSession, SessionId: id})
}

// request encodes a ServerMessage, encrypts it on the server channel, and
// enqueues the resulting envelope. Fails NotTransportState if the server
// channel has not completed its handshake yet.
func (c *Client) request(msg relay.ServerMessage) error {
	plaintext, err := wire.EncodeServerMessage(msg)
	if err != nil {
		return &relay.CodecError{Op: "encode server message", Err: err}
	}
	env, err := c.server.Encrypt(plaintext)
	if err != nil {
		return err
	}
	env.Encoding = relay.EncodingBlob
	return c.enqueue(relay.NewServerMessageRequest(env))
}
