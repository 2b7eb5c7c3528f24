package realtime

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"mcm-alerts-backend/internal/model"
)

// SSETransport connects to the server's server-sent-events stream endpoint.
type SSETransport struct {
	url    string
	client *http.Client
}

// NewSSETransport creates a transport for the given stream URL.
func NewSSETransport(url string) *SSETransport {
	return &SSETransport{
		url: url,
		// No overall timeout: the stream is long-lived.
		client: &http.Client{},
	}
}

func (t *SSETransport) Name() string { return "sse" }

// Connect opens the stream and waits for the subscribed acknowledgment event.
func (t *SSETransport) Connect(ctx context.Context) (Conn, error) {
	streamCtx, cancel := context.WithCancel(context.Background())

	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, t.url, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := t.client.Do(req)
	if err != nil {
		cancel()
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("stream returned status %d", resp.StatusCode)
	}

	conn := &sseConn{
		cancel: cancel,
		events: make(chan model.Event, 16),
		errs:   make(chan error, 1),
		ready:  make(chan struct{}),
		done:   make(chan struct{}),
	}
	go conn.readLoop(resp)

	select {
	case <-conn.ready:
		return conn, nil
	case err := <-conn.errs:
		conn.Close()
		return nil, err
	case <-time.After(handshakeTimeout):
		conn.Close()
		return nil, errNoAck
	case <-ctx.Done():
		conn.Close()
		return nil, ctx.Err()
	}
}

type sseConn struct {
	cancel context.CancelFunc
	events chan model.Event
	errs   chan error
	ready  chan struct{}
	done   chan struct{}
	once   sync.Once
}

func (c *sseConn) Events() <-chan model.Event { return c.events }
func (c *sseConn) Err() <-chan error          { return c.errs }

func (c *sseConn) Close() error {
	c.once.Do(func() {
		close(c.done)
		c.cancel()
	})
	return nil
}

// readLoop parses the text/event-stream wire format: "event:"/"data:" lines
// accumulate until a blank line terminates one event.
func (c *sseConn) readLoop(resp *http.Response) {
	defer resp.Body.Close()
	defer close(c.events)

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var eventName string
	var data strings.Builder
	subscribed := false

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if eventName == FrameSubscribed && !subscribed {
				subscribed = true
				close(c.ready)
			} else if eventName == "notification" && data.Len() > 0 {
				var event model.Event
				if err := json.Unmarshal([]byte(data.String()), &event); err == nil {
					select {
					case c.events <- event:
					case <-c.done:
						return
					}
				}
			}
			eventName = ""
			data.Reset()
		case strings.HasPrefix(line, ":"):
			// comment / keep-alive
		case strings.HasPrefix(line, "event:"):
			eventName = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
	}

	err := scanner.Err()
	if err == nil {
		err = fmt.Errorf("stream closed")
	}
	select {
	case c.errs <- err:
	default:
	}
}
