package realtime

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"mcm-alerts-backend/internal/model"
)

// Listener receives feed events as they arrive, whichever transport carried
// them.
type Listener func(model.Event)

// Options configures a Client.
type Options struct {
	// Transports are tried in order; each gets MaxAttempts reconnects before
	// the client falls through to the next one.
	Transports []Transport
	// Poller is the terminal fallback once every streaming transport has
	// given up. Optional.
	Poller *Poller
	// BaseDelay is the first reconnect delay; it doubles per failed attempt
	// up to MaxDelay.
	BaseDelay time.Duration
	MaxDelay  time.Duration
	// MaxAttempts is the reconnect ceiling per transport.
	MaxAttempts int
	// OnStateChange, when set, observes every state transition together with
	// the active connection type ("websocket", "sse", "polling" or "").
	OnStateChange func(state ConnState, connType string)
}

// Client follows the server's change feed. It walks a transport ladder with
// exponential-backoff reconnects and keeps a polling fallback alive once the
// streaming transports are exhausted.
type Client struct {
	opts Options

	mu           sync.Mutex
	listeners    map[int64]Listener
	nextListener int64
	state        ConnState
	connType     string
	visible      bool
	started      bool
	cancel       context.CancelFunc
	doneCh       chan struct{}
	wake         chan struct{}
	lastEvent    time.Time

	// sleep waits out a reconnect delay; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient creates a client. Start must be called before events flow.
func NewClient(opts Options) *Client {
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = time.Second
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 30 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	return &Client{
		opts:      opts,
		listeners: make(map[int64]Listener),
		state:     StateDisconnected,
		visible:   true,
		wake:      make(chan struct{}, 1),
		sleep:     sleepCtx,
	}
}

// AddListener registers a listener and returns a function that removes it.
func (c *Client) AddListener(fn Listener) func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextListener
	c.nextListener++
	c.listeners[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

// State returns the current connection state.
func (c *Client) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ConnectionType names the transport currently in use, or "" when none is.
func (c *Client) ConnectionType() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connType
}

// Start begins following the feed. Calling Start on a running client is an
// error.
func (c *Client) Start() error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return errors.New("realtime client already started")
	}
	if len(c.opts.Transports) == 0 && c.opts.Poller == nil {
		c.mu.Unlock()
		return errors.New("realtime client has no transports")
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.started = true
	c.cancel = cancel
	c.doneCh = make(chan struct{})
	done := c.doneCh
	c.mu.Unlock()

	go func() {
		defer close(done)
		c.run(ctx)
	}()
	return nil
}

// Stop tears down any live connection, cancels pending reconnect timers,
// clears all listeners and returns once the run loop has exited. Safe to call
// from any state, including repeatedly.
func (c *Client) Stop() {
	c.mu.Lock()
	if !c.started {
		c.mu.Unlock()
		return
	}
	c.started = false
	cancel := c.cancel
	done := c.doneCh
	c.mu.Unlock()

	cancel()
	<-done

	c.mu.Lock()
	c.listeners = make(map[int64]Listener)
	c.state = StateDisconnected
	c.connType = ""
	c.mu.Unlock()
}

// SetVisible reports tab/window visibility. A hidden-to-visible transition
// while disconnected or given up triggers an immediate reconnect attempt with
// the counter reset.
func (c *Client) SetVisible(visible bool) {
	c.mu.Lock()
	wasVisible := c.visible
	c.visible = visible
	state := c.state
	c.mu.Unlock()

	if visible && !wasVisible && (state == StateGivenUp || state == StateDisconnected) {
		select {
		case c.wake <- struct{}{}:
		default:
		}
	}
}

func (c *Client) run(ctx context.Context) {
	for {
		exhausted := c.runLadder(ctx)
		if !exhausted {
			// Context cancelled.
			return
		}

		c.setState(StateGivenUp, "")
		log.Printf("realtime: all streaming transports exhausted, engaging polling fallback")

		pollCtx, cancelPoll := context.WithCancel(ctx)
		pollDone := make(chan struct{})
		if c.opts.Poller != nil {
			// Seed the cursor with the newest event the stream delivered, so
			// events committed during the reconnect window are recovered.
			if last := c.lastEventTime(); !last.IsZero() {
				c.opts.Poller.SetSince(last)
			}
			c.setConnType("polling")
			go func() {
				defer close(pollDone)
				c.opts.Poller.Run(pollCtx, c.forward)
			}()
		} else {
			close(pollDone)
		}

		select {
		case <-ctx.Done():
			cancelPoll()
			<-pollDone
			return
		case <-c.wake:
			// Visibility returned: retry the streaming ladder from the top.
			cancelPoll()
			<-pollDone
		}
	}
}

// runLadder walks the transport list. It returns true when every transport
// has hit its reconnect ceiling and false when the context was cancelled.
func (c *Client) runLadder(ctx context.Context) bool {
	for _, transport := range c.opts.Transports {
		if !c.runTransport(ctx, transport) {
			return false
		}
		log.Printf("realtime: giving up on %s after %d attempts", transport.Name(), c.opts.MaxAttempts)
	}
	return true
}

// runTransport drives one transport's connect/consume/backoff loop until the
// reconnect ceiling is hit (returns true) or the context is cancelled
// (returns false).
func (c *Client) runTransport(ctx context.Context, transport Transport) bool {
	attempts := 0
	bo := c.newBackoff()

	for {
		c.setState(StateConnecting, transport.Name())
		conn, err := transport.Connect(ctx)
		if err == nil {
			c.setState(StateConnected, transport.Name())
			err = c.consume(ctx, conn, func(event model.Event) {
				// Receiving traffic proves the link is healthy.
				attempts = 0
				bo.Reset()
				c.forward(event)
			})
		}
		if ctx.Err() != nil {
			c.setState(StateDisconnected, "")
			return false
		}
		log.Printf("realtime: %s connection lost: %v", transport.Name(), err)

		if attempts >= c.opts.MaxAttempts {
			return true
		}
		delay := bo.NextBackOff()
		attempts++
		c.setState(StateReconnectScheduled, transport.Name())
		if err := c.sleep(ctx, delay); err != nil {
			c.setState(StateDisconnected, "")
			return false
		}
	}
}

// consume forwards connection events until the connection dies or the context
// is cancelled.
func (c *Client) consume(ctx context.Context, conn Conn, onEvent func(model.Event)) error {
	defer conn.Close()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-conn.Events():
			if !ok {
				return errors.New("feed connection closed")
			}
			onEvent(event)
		case err := <-conn.Err():
			return err
		}
	}
}

func (c *Client) lastEventTime() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastEvent
}

func (c *Client) forward(event model.Event) {
	c.mu.Lock()
	if event.CreatedAt.After(c.lastEvent) {
		c.lastEvent = event.CreatedAt
	}
	fns := make([]Listener, 0, len(c.listeners))
	for _, fn := range c.listeners {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(event)
	}
}

func (c *Client) setState(state ConnState, connType string) {
	c.mu.Lock()
	c.state = state
	c.connType = connType
	handler := c.opts.OnStateChange
	c.mu.Unlock()

	if handler != nil {
		handler(state, connType)
	}
}

func (c *Client) setConnType(connType string) {
	c.mu.Lock()
	c.connType = connType
	handler := c.opts.OnStateChange
	state := c.state
	c.mu.Unlock()

	if handler != nil {
		handler(state, connType)
	}
}

// newBackoff builds the deterministic doubling schedule
// min(base*2^k, maxDelay).
func (c *Client) newBackoff() *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.opts.BaseDelay
	bo.RandomizationFactor = 0
	bo.Multiplier = 2
	bo.MaxInterval = c.opts.MaxDelay
	bo.MaxElapsedTime = 0
	bo.Reset()
	return bo
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
