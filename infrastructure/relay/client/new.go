package client

import (
	"context"
	"tungo/domain/relay"

	applicationrelay "tungo/application/relay"
)

// New constructs the paired facade and event loop (native.rs's
// NativeClient::new returns the same pair). ctx governs both: cancelling
// it unblocks any facade call waiting to enqueue and stops the event loop.
func New(ctx context.Context, local relay.Keypair, serverPublicKey []byte, logger applicationrelay.Logger) (*Client, *EventLoop) {
	if logger == nil {
		logger = applicationrelay.NopLogger{}
	}
	outbound := make(chan relay.RequestMessage, 32)
	c := newClient(ctx, local, serverPublicKey, outbound, logger)
	el := newEventLoop(c, outbound, logger)
	return c, el
}
