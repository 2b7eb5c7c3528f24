package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"mcm-alerts-backend/internal/model"
)

const handshakeTimeout = 10 * time.Second

// WebSocketTransport connects to the server's websocket feed endpoint.
type WebSocketTransport struct {
	url    string
	dialer *websocket.Dialer
}

// NewWebSocketTransport creates a transport for the given ws:// or wss:// URL.
func NewWebSocketTransport(url string) *WebSocketTransport {
	return &WebSocketTransport{
		url:    url,
		dialer: websocket.DefaultDialer,
	}
}

func (t *WebSocketTransport) Name() string { return "websocket" }

// Connect dials the feed and waits for the subscribed acknowledgment frame.
func (t *WebSocketTransport) Connect(ctx context.Context) (Conn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, handshakeTimeout)
	defer cancel()

	ws, resp, err := t.dialer.DialContext(dialCtx, t.url, nil)
	if err != nil {
		return nil, err
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	ws.SetReadDeadline(time.Now().Add(handshakeTimeout))
	var ack Frame
	if err := ws.ReadJSON(&ack); err != nil {
		ws.Close()
		return nil, err
	}
	if ack.Type != FrameSubscribed {
		ws.Close()
		return nil, errNoAck
	}
	ws.SetReadDeadline(time.Time{})

	conn := &wsConn{
		ws:     ws,
		events: make(chan model.Event, 16),
		errs:   make(chan error, 1),
		done:   make(chan struct{}),
	}
	go conn.readLoop()
	return conn, nil
}

type wsConn struct {
	ws     *websocket.Conn
	events chan model.Event
	errs   chan error
	done   chan struct{}
	once   sync.Once
}

func (c *wsConn) Events() <-chan model.Event { return c.events }
func (c *wsConn) Err() <-chan error          { return c.errs }

func (c *wsConn) Close() error {
	var err error
	c.once.Do(func() {
		close(c.done)
		err = c.ws.Close()
	})
	return err
}

func (c *wsConn) readLoop() {
	defer close(c.events)
	for {
		var f Frame
		if err := c.ws.ReadJSON(&f); err != nil {
			select {
			case c.errs <- err:
			default:
			}
			return
		}
		if f.Type != FrameEvent || f.Event == nil {
			continue
		}
		select {
		case c.events <- *f.Event:
		case <-c.done:
			return
		}
	}
}
