package realtime

import (
	"context"
	"errors"

	"mcm-alerts-backend/internal/model"
)

// Frame is the wire envelope used on the websocket feed. The server sends a
// "subscribed" frame immediately after the upgrade and an "event" frame per
// newly created event.
type Frame struct {
	Type  string       `json:"type"`
	Event *model.Event `json:"event,omitempty"`
}

const (
	FrameSubscribed = "subscribed"
	FrameEvent      = "event"
)

// Conn is an established feed connection.
type Conn interface {
	// Events yields feed events until the connection dies.
	Events() <-chan model.Event
	// Err yields the terminal connection error.
	Err() <-chan error
	Close() error
}

// Transport establishes a live connection to the change feed. Connect returns
// only after the server has acknowledged the subscription; ctx bounds the
// handshake, not the connection's lifetime.
type Transport interface {
	Name() string
	Connect(ctx context.Context) (Conn, error)
}

var errNoAck = errors.New("feed did not acknowledge subscription")
