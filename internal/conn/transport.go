package conn

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const defaultWriteTimeout = 10 * time.Second

// Transport is one established link to the backend. ReadFrame blocks until a
// frame arrives or the link fails. Only one goroutine reads and only one
// writes at a time; Close may be called concurrently with both.
type Transport interface {
	ReadFrame() ([]byte, error)
	WriteFrame(payload []byte) error
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context, sessionID string) (Transport, error)
}

type DialerFunc func(ctx context.Context, sessionID string) (Transport, error)

func (f DialerFunc) Dial(ctx context.Context, sessionID string) (Transport, error) {
	return f(ctx, sessionID)
}

// WebsocketDialer connects to <BaseURL>/<session id>.
type WebsocketDialer struct {
	BaseURL      string
	Dialer       *websocket.Dialer
	WriteTimeout time.Duration
}

func (d WebsocketDialer) Dial(ctx context.Context, sessionID string) (Transport, error) {
	base := strings.TrimRight(strings.TrimSpace(d.BaseURL), "/")
	if base == "" {
		return nil, errors.New("websocket base url is required")
	}
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	wsURL := base + "/" + url.PathEscape(sessionID)
	ws, resp, err := dialer.DialContext(ctx, wsURL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, err
	}
	timeout := d.WriteTimeout
	if timeout <= 0 {
		timeout = defaultWriteTimeout
	}
	return &websocketTransport{conn: ws, writeTimeout: timeout}, nil
}

type websocketTransport struct {
	conn         *websocket.Conn
	writeTimeout time.Duration
}

func (t *websocketTransport) ReadFrame() ([]byte, error) {
	for {
		kind, data, err := t.conn.ReadMessage()
		if err != nil {
			return nil, err
		}
		if kind == websocket.TextMessage || kind == websocket.BinaryMessage {
			return data, nil
		}
	}
}

func (t *websocketTransport) WriteFrame(payload []byte) error {
	_ = t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
	return t.conn.WriteMessage(websocket.TextMessage, payload)
}

func (t *websocketTransport) Close() error {
	_ = t.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	return t.conn.Close()
}

// StreamClient is the HTTP side of the server-sent events transport.
type StreamClient interface {
	MessageStream(ctx context.Context, sessionID string) (<-chan json.RawMessage, func(), error)
	SendRaw(ctx context.Context, sessionID string, payload json.RawMessage) error
}

// SSEDialer receives over a server-sent event stream and sends with one
// POST per frame.
type SSEDialer struct {
	Client       StreamClient
	WriteTimeout time.Duration
}

func (d SSEDialer) Dial(ctx context.Context, sessionID string) (Transport, error) {
	if d.Client == nil {
		return nil, errors.New("stream client is required")
	}
	frames, cancel, err := d.Client.MessageStream(context.WithoutCancel(ctx), sessionID)
	if err != nil {
		return nil, err
	}
	timeout := d.WriteTimeout
	if timeout <= 0 {
		timeout = defaultWriteTimeout
	}
	return &sseTransport{
		client:       d.Client,
		sessionID:    sessionID,
		frames:       frames,
		cancel:       cancel,
		writeTimeout: timeout,
		closed:       make(chan struct{}),
	}, nil
}

type sseTransport struct {
	client       StreamClient
	sessionID    string
	frames       <-chan json.RawMessage
	cancel       func()
	writeTimeout time.Duration

	closeOnce sync.Once
	closed    chan struct{}
}

func (t *sseTransport) ReadFrame() ([]byte, error) {
	select {
	case frame, ok := <-t.frames:
		if !ok {
			return nil, io.EOF
		}
		return frame, nil
	case <-t.closed:
		return nil, errTransportClosed
	}
}

func (t *sseTransport) WriteFrame(payload []byte) error {
	select {
	case <-t.closed:
		return errTransportClosed
	default:
	}
	ctx, cancel := context.WithTimeout(context.Background(), t.writeTimeout)
	defer cancel()
	return t.client.SendRaw(ctx, t.sessionID, json.RawMessage(payload))
}

func (t *sseTransport) Close() error {
	t.closeOnce.Do(func() {
		close(t.closed)
		if t.cancel != nil {
			t.cancel()
		}
	})
	return nil
}

var errTransportClosed = errors.New("transport closed")
