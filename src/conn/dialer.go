package conn

import (
	"context"
	"time"

	"github.com/fasthttp/websocket"
	"github.com/schedulr/realtime/src/types"
)

// wsDialer adapts fasthttp/websocket's client dialer to types.Dialer.
type wsDialer struct {
	d *websocket.Dialer
}

// NewDialer returns the production WebSocket dialer.
func NewDialer(handshakeTimeout time.Duration) types.Dialer {
	return &wsDialer{
		d: &websocket.Dialer{
			HandshakeTimeout: handshakeTimeout,
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
		},
	}
}

func (w *wsDialer) Dial(ctx context.Context, url string) (types.Conn, error) {
	c, resp, err := w.d.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		return nil, err
	}
	return c, nil
}
