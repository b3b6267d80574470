package chat

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/coder/websocket"
)

// Conn is one established duplex connection.
type Conn interface {
	// Read blocks for the next text frame. A peer closure is reported as a
	// *CloseFrame.
	Read(ctx context.Context) ([]byte, error)
	Write(ctx context.Context, data []byte) error
	Close(code int, reason string) error
}

// Dialer opens connections.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WebsocketDialer dials with coder/websocket.
type WebsocketDialer struct {
	HTTPClient *http.Client
	// ReadLimit caps a single inbound frame. Zero keeps the library default.
	ReadLimit int64
}

// Dial implements Dialer.
func (d WebsocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	c, resp, err := websocket.Dial(ctx, url, &websocket.DialOptions{HTTPClient: d.HTTPClient})
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("handshake rejected with HTTP %d: %w", resp.StatusCode, err)
		}
		return nil, err
	}
	if d.ReadLimit > 0 {
		c.SetReadLimit(d.ReadLimit)
	}
	return &websocketConn{c: c}, nil
}

type websocketConn struct {
	c *websocket.Conn
}

func (w *websocketConn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := w.c.Read(ctx)
	if err != nil {
		var ce websocket.CloseError
		if errors.As(err, &ce) {
			return nil, &CloseFrame{Code: int(ce.Code), Reason: ce.Reason}
		}
		return nil, err
	}
	return data, nil
}

func (w *websocketConn) Write(ctx context.Context, data []byte) error {
	return w.c.Write(ctx, websocket.MessageText, data)
}

func (w *websocketConn) Close(code int, reason string) error {
	return w.c.Close(websocket.StatusCode(code), reason)
}

// closeFrameOf extracts the close status from a read error. Errors without a
// close frame (network loss, reset) count as an abnormal closure.
func closeFrameOf(err error) *CloseFrame {
	var cf *CloseFrame
	if errors.As(err, &cf) {
		return cf
	}
	return &CloseFrame{Code: CodeAbnormal, Reason: err.Error()}
}
