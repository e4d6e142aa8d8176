package gridsocket

import (
	"context"
	"net/http"
	"net/url"
	"sync"

	"github.com/coder/websocket"
)

// DefaultURL is the address of the simulation backend in a local deployment.
const DefaultURL = "ws://localhost:9998"

// Transport carries text frames between the client and the server.
// Implementations must be safe for concurrent use.
type Transport interface {
	Send(ctx context.Context, data []byte) error
	Receive(ctx context.Context) ([]byte, error)
	Close() error
}

// Dialer opens a new Transport. The client calls it once per connection
// attempt. Returning an error wrapping ErrTransportUnsupported stops the
// client from retrying.
type Dialer func(ctx context.Context) (Transport, error)

// DialOptions configures the WebSocket connection.
type DialOptions struct {
	// HTTPHeader specifies additional HTTP headers to send during handshake.
	HTTPHeader http.Header

	// HTTPClient is the HTTP client used for the handshake.
	// If nil, http.DefaultClient is used.
	HTTPClient *http.Client

	// ReadLimit caps the size of a single inbound message in bytes.
	// Zero means 32MB.
	ReadLimit int64
}

// NewDialer returns a Dialer that connects to a WebSocket endpoint.
func NewDialer(rawURL string, opts *DialOptions) Dialer {
	return func(ctx context.Context) (Transport, error) {
		return Dial(ctx, rawURL, opts)
	}
}

// Dial connects to the backend and returns a Transport.
func Dial(ctx context.Context, rawURL string, opts *DialOptions) (Transport, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, &ConnectionError{Op: "dial", URL: rawURL, Err: err}
	}
	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, &ConnectionError{Op: "dial", URL: rawURL, Err: ErrTransportUnsupported}
	}

	dialOpts := &websocket.DialOptions{}
	if opts != nil {
		if opts.HTTPHeader != nil {
			dialOpts.HTTPHeader = opts.HTTPHeader.Clone()
		}
		dialOpts.HTTPClient = opts.HTTPClient
	}

	conn, _, err := websocket.Dial(ctx, rawURL, dialOpts)
	if err != nil {
		return nil, &ConnectionError{Op: "dial", URL: rawURL, Err: err}
	}

	limit := int64(32 * 1024 * 1024) // 32MB
	if opts != nil && opts.ReadLimit > 0 {
		limit = opts.ReadLimit
	}
	conn.SetReadLimit(limit)

	return &wsTransport{conn: conn}, nil
}

// wsTransport implements Transport over WebSocket.
type wsTransport struct {
	conn   *websocket.Conn
	mu     sync.Mutex
	closed bool
}

// Send writes one text frame.
func (t *wsTransport) Send(ctx context.Context, data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return ErrConnectionClosed
	}

	if err := t.conn.Write(ctx, websocket.MessageText, data); err != nil {
		return &ConnectionError{Op: "write", Err: err}
	}

	return nil
}

// Receive reads the next frame.
func (t *wsTransport) Receive(ctx context.Context) ([]byte, error) {
	_, data, err := t.conn.Read(ctx)
	if err != nil {
		t.mu.Lock()
		closed := t.closed
		t.mu.Unlock()
		if closed {
			return nil, ErrConnectionClosed
		}
		return nil, &ConnectionError{Op: "read", Err: err}
	}
	return data, nil
}

// Close closes the transport.
func (t *wsTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true

	return t.conn.Close(websocket.StatusNormalClosure, "")
}
