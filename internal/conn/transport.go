package conn

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/aelexs/realtime-chat-client/internal/domain"
)

// Transport is a duplex message connection. *websocket.Conn satisfies it;
// WebSocketDialer returns one with write deadlines applied.
type Transport interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Dialer opens a Transport to a realtime address.
type Dialer interface {
	Dial(ctx context.Context, u *url.URL) (Transport, error)
}

// WebSocketDialer dials with gorilla/websocket.
type WebSocketDialer struct {
	// HandshakeTimeout bounds the opening handshake. Zero means domain.DialTimeout.
	HandshakeTimeout time.Duration
	// WriteTimeout is the per-frame write deadline. Zero means domain.WriteTimeout.
	WriteTimeout time.Duration
}

// Dial opens the connection. Handshake failures include the HTTP status
// when the server answered.
func (d WebSocketDialer) Dial(ctx context.Context, u *url.URL) (Transport, error) {
	handshake := d.HandshakeTimeout
	if handshake <= 0 {
		handshake = domain.DialTimeout
	}
	writeTimeout := d.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = domain.WriteTimeout
	}

	dialer := websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: handshake,
	}

	header := http.Header{}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(header))

	c, resp, err := dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w (status %d)", u.Redacted(), err, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", u.Redacted(), err)
	}
	c.SetReadLimit(domain.MaxFrameSize)

	return &wsTransport{conn: c, writeTimeout: writeTimeout}, nil
}

// wsTransport applies a write deadline to every frame. Callers serialize
// writes; gorilla allows one concurrent writer.
type wsTransport struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
}

func (t *wsTransport) ReadMessage() (int, []byte, error) {
	return t.conn.ReadMessage()
}

func (t *wsTransport) WriteMessage(messageType int, data []byte) error {
	if err := t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout)); err != nil {
		return err
	}
	return t.conn.WriteMessage(messageType, data)
}

func (t *wsTransport) Close() error {
	return t.conn.Close()
}
