package transport

import (
	"context"
	"net/http"
	"tungo/domain/relay"

	"github.com/coder/websocket"
)

// DialOptions configures the relay websocket dial.
type DialOptions struct {
	// Subprotocols, if set, is offered during the HTTP upgrade.
	Subprotocols []string
}

// Dial performs the HTTP upgrade against url and returns a WSTransport.
// The upgrade must complete with 101 Switching Protocols; any other status
// fails construction with a relay.HttpError.
func Dial(ctx context.Context, url string, opts DialOptions) (*WSTransport, error) {
	conn, resp, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		Subprotocols: opts.Subprotocols,
	})
	if err != nil {
		if resp != nil && resp.StatusCode != http.StatusSwitchingProtocols {
			return nil, &relay.HttpError{Code: resp.StatusCode, Text: resp.Status}
		}
		return nil, err
	}
	if resp.StatusCode != http.StatusSwitchingProtocols {
		_ = conn.Close(websocket.StatusProtocolError, "unexpected upgrade status")
		return nil, &relay.HttpError{Code: resp.StatusCode, Text: resp.Status}
	}
	return NewWSTransport(conn), nil
}
