package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"mcm-alerts-backend/internal/realtime"
)

const heartbeatInterval = 15 * time.Second

// StreamEvents serves the change feed as server-sent events. The first frame
// is a subscribed acknowledgment so clients know the feed is live before any
// event arrives.
func (h *Handler) StreamEvents(c *gin.Context) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming unsupported"})
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.WriteHeader(http.StatusOK)

	events, cancel := h.broker.Subscribe()
	defer cancel()

	fmt.Fprintf(c.Writer, "event: %s\ndata: {}\n\n", realtime.FrameSubscribed)
	flusher.Flush()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-c.Request.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprint(c.Writer, ": ping\n\n")
			flusher.Flush()
		case event, open := <-events:
			if !open {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(c.Writer, "event: notification\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WebSocketEvents serves the change feed over a websocket, the preferred
// client transport. A subscribed frame is sent immediately after the upgrade.
func (h *Handler) WebSocketEvents(c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}
	defer ws.Close()

	if err := ws.WriteJSON(realtime.Frame{Type: realtime.FrameSubscribed}); err != nil {
		return
	}

	events, cancel := h.broker.Subscribe()
	defer cancel()

	// Read pump: the client never sends data, but reading is how we learn
	// the peer went away.
	go func() {
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-heartbeat.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		case event, open := <-events:
			if !open {
				return
			}
			if err := ws.WriteJSON(realtime.Frame{Type: realtime.FrameEvent, Event: &event}); err != nil {
				return
			}
		}
	}
}
