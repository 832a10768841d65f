package client

import (
	"context"
	"errors"
	"fmt"
	"tungo/domain/relay"
	"tungo/domain/relay/wire"

	applicationrelay "tungo/application/relay"

	"golang.org/x/sync/errgroup"
)

// EventLoop is the single cooperative task (component E) that owns the
// transport and drives every state machine. It multiplexes three sources:
// inbound frames from the transport, outbound requests from the facade,
// and decoded messages awaiting dispatch.
type EventLoop struct {
	client *Client

	outbound chan relay.RequestMessage
	decoded  chan relay.ResponseMessage
	events   chan relay.EventOrError

	logger applicationrelay.Logger
}

func newEventLoop(client *Client, outbound chan relay.RequestMessage, logger applicationrelay.Logger) *EventLoop {
	return &EventLoop{
		client:   client,
		outbound: outbound,
		decoded:  make(chan relay.ResponseMessage, 32),
		events:   make(chan relay.EventOrError, 32),
		logger:   logger,
	}
}

type readResult struct {
	frame []byte
	err   error
}

// Run drives the loop over transport until ctx is cancelled or the
// transport closes, returning the consumer-visible event stream. Dropping
// the returned channel's consumer has no special effect; cancelling ctx is
// what stops the loop, matching "cancellation" in the concurrency model.
func (l *EventLoop) Run(ctx context.Context, t applicationrelay.Transport) <-chan relay.EventOrError {
	go l.run(ctx, t)
	return l.events
}

func (l *EventLoop) run(ctx context.Context, t applicationrelay.Transport) {
	defer close(l.events)
	defer func() { _ = t.Close() }()

	group, gctx := errgroup.WithContext(ctx)
	inbox := make(chan readResult)

	group.Go(func() error {
		for {
			frame, err := t.ReadFrame(gctx)
			select {
			case inbox <- readResult{frame: frame, err: err}:
			case <-gctx.Done():
				return nil
			}
			if err != nil {
				return nil
			}
		}
	})

	for {
		select {
		case <-ctx.Done():
			_ = group.Wait()
			return

		case rr := <-inbox:
			if rr.err != nil {
				l.emit(ctx, relay.EventOrError{Err: fmt.Errorf("relay: transport closed: %w", rr.err)})
				return
			}
			resp, err := wire.Decode(rr.frame)
			if err != nil {
				l.emit(ctx, relay.EventOrError{Err: &relay.CodecError{Op: "decode response frame", Err: err}})
				continue
			}
			select {
			case l.decoded <- resp:
			case <-ctx.Done():
				return
			}

		case req := <-l.outbound:
			encoded, err := wire.Encode(req)
			if err != nil {
				l.emit(ctx, relay.EventOrError{Err: &relay.CodecError{Op: "encode request frame", Err: err}})
				continue
			}
			if err := t.WriteFrame(ctx, encoded); err != nil {
				l.emit(ctx, relay.EventOrError{Err: fmt.Errorf("relay: transport write: %w", err)})
				continue
			}

		case resp := <-l.decoded:
			ev, has, err := l.dispatch(ctx, resp)
			if err != nil {
				l.emit(ctx, relay.EventOrError{Err: err})
			}
			if has {
				l.emit(ctx, relay.EventOrError{Event: ev})
			}
		}
	}
}

func (l *EventLoop) emit(ctx context.Context, item relay.EventOrError) {
	select {
	case l.events <- item:
	case <-ctx.Done():
	}
}

// dispatch implements the ResponseMessage -> Event? table.
func (l *EventLoop) dispatch(ctx context.Context, resp relay.ResponseMessage) (relay.Event, bool, error) {
	switch resp.Kind {
	case relay.RespServerHandshake:
		return l.dispatchServerHandshake(resp)
	case relay.RespPeerHandshake:
		return l.dispatchPeerHandshake(ctx, resp)
	case relay.RespPeerMessage:
		return l.dispatchPeerMessage(resp)
	case relay.RespServerMessage:
		return l.dispatchServerEnvelope(resp)
	default:
		return relay.Event{}, false, &relay.CodecError{Op: "dispatch", Err: errors.New("unknown response kind")}
	}
}

func (l *EventLoop) dispatchServerHandshake(resp relay.ResponseMessage) (relay.Event, bool, error) {
	if resp.Handshake.Role != relay.RoleResponder {
		return relay.Event{}, false, &relay.ProtocolError{Op: "server handshake dispatch", Err: errors.New("expected responder message")}
	}
	if err := l.client.server.Complete(resp.Handshake); err != nil {
		return relay.Event{}, false, err
	}
	return relay.Event{Kind: relay.EventServerConnected, ServerKey: l.client.serverPublicKey}, true, nil
}

func (l *EventLoop) dispatchPeerHandshake(ctx context.Context, resp relay.ResponseMessage) (relay.Event, bool, error) {
	if resp.Handshake.Role == relay.RoleInitiator {
		reply, err := l.client.peers.BeginResponder(resp.PeerKey, resp.Handshake)
		if err != nil {
			// PeerAlreadyExistsMaybeRace and any other registry error:
			// surfaced as an error, no PeerConnected event, local state
			// untouched.
			return relay.Event{}, false, err
		}
		select {
		case l.outbound <- relay.NewPeerHandshakeRequest(resp.PeerKey, reply):
		case <-ctx.Done():
			return relay.Event{}, false, relay.ErrOutboundClosed
		}
		return relay.Event{Kind: relay.EventPeerConnected, PeerKey: resp.PeerKey}, true, nil
	}

	if err := l.client.peers.CompleteInitiator(resp.PeerKey, resp.Handshake); err != nil {
		return relay.Event{}, false, err
	}
	return relay.Event{Kind: relay.EventPeerConnected, PeerKey: resp.PeerKey}, true, nil
}

func (l *EventLoop) dispatchPeerMessage(resp relay.ResponseMessage) (relay.Event, bool, error) {
	plaintext, err := l.client.peers.Decrypt(resp.PeerKey, resp.Envelope)
	if err != nil {
		return relay.Event{}, false, err
	}
	switch resp.Envelope.Encoding {
	case relay.EncodingBlob:
		return relay.Event{
			Kind:          relay.EventBinaryMessage,
			PeerKey:       resp.PeerKey,
			BinaryMessage: plaintext,
			Session:       resp.Session,
			HasSession:    resp.HasSession,
		}, true, nil
	case relay.EncodingJson:
		return relay.Event{
			Kind:        relay.EventJsonMessage,
			PeerKey:     resp.PeerKey,
			JsonMessage: relay.JsonMessage{Contents: plaintext},
			Session:     resp.Session,
			HasSession:  resp.HasSession,
		}, true, nil
	default:
		return relay.Event{}, false, &relay.ProtocolError{Op: "peer message dispatch", Err: errors.New("noop encoding is not a valid peer message")}
	}
}

func (l *EventLoop) dispatchServerEnvelope(resp relay.ResponseMessage) (relay.Event, bool, error) {
	plaintext, err := l.client.server.Decrypt(resp.Envelope)
	if err != nil {
		return relay.Event{}, false, err
	}
	if resp.Envelope.Encoding != relay.EncodingBlob {
		return relay.Event{}, false, &relay.ProtocolError{Op: "server envelope dispatch", Err: errors.New("expected blob-encoded server message")}
	}
	sm, err := wire.DecodeServerMessage(plaintext)
	if err != nil {
		return relay.Event{}, false, &relay.CodecError{Op: "decode server message", Err: err}
	}
	return l.dispatchServerMessage(sm)
}

func (l *EventLoop) dispatchServerMessage(sm relay.ServerMessage) (relay.Event, bool, error) {
	switch sm.Kind {
	case relay.SMError:
		return relay.Event{}, false, &relay.ServerError{Code: sm.ErrorCode, Text: sm.ErrorText}
	case relay.SMSessionCreated:
		return relay.Event{Kind: relay.EventSessionCreated, SessionResult: sm.Result}, true, nil
	case relay.SMSessionReady:
		return relay.Event{Kind: relay.EventSessionReady, SessionResult: sm.Result}, true, nil
	case relay.SMSessionActive:
		return relay.Event{Kind: relay.EventSessionActive, SessionResult: sm.Result}, true, nil
	case relay.SMSessionFinished:
		return relay.Event{Kind: relay.EventSessionFinished, Session: sm.SessionId}, true, nil
	default:
		return relay.Event{}, false, nil
	}
}
