package api

import (
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"mcm-alerts-backend/internal/dispatch"
	"mcm-alerts-backend/internal/model"
	"mcm-alerts-backend/internal/store"
)

type postEventRequest struct {
	Title    string         `json:"title"`
	Body     string         `json:"body"`
	Type     string         `json:"type"`
	Priority model.Priority `json:"priority"`
	Metadata model.JSONMap  `json:"metadata"`
	// A nil pointer means "all subscriptions"; an explicit empty list means
	// "no recipients".
	TargetSubscriptionIDs *[]string `json:"targetSubscriptionIds"`
}

// PostEvent creates an event, publishes it on the change feed and fans it out
// to the push subscriptions, returning the dispatch report.
func (h *Handler) PostEvent(c *gin.Context) {
	var req postEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	event, err := h.store.CreateEvent(c.Request.Context(), store.NewEvent{
		Title:    req.Title,
		Body:     req.Body,
		Type:     req.Type,
		Priority: req.Priority,
		Metadata: req.Metadata,
	})
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	h.broker.Publish(event)

	if req.TargetSubscriptionIDs != nil && len(*req.TargetSubscriptionIDs) == 0 {
		c.JSON(http.StatusOK, dispatch.Report{EventID: event.ID})
		return
	}
	var targets []string
	if req.TargetSubscriptionIDs != nil {
		targets = *req.TargetSubscriptionIDs
	}

	report, err := h.dispatcher.Dispatch(c.Request.Context(), event, targets)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "eventId": event.ID})
		return
	}

	c.JSON(http.StatusOK, report)
}

// GetEvents returns recent events, most recent first.
func (h *Handler) GetEvents(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}

	events, err := h.store.ListRecentEvents(c.Request.Context(), limit)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, events)
}

// PollEvents is the polling fallback: it returns events created strictly
// after the "since" cursor, oldest first.
func (h *Handler) PollEvents(c *gin.Context) {
	raw := c.Query("since")
	if raw == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "since is required"})
		return
	}
	since, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid 'since' timestamp, use RFC3339"})
		return
	}

	events, err := h.store.ListEventsSince(c.Request.Context(), since)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, events)
}

// AckEvent marks a single event acknowledged.
func (h *Handler) AckEvent(c *gin.Context) {
	if err := h.store.AcknowledgeEvent(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"acknowledged": true})
}

type ackEventsRequest struct {
	AcknowledgeAll bool `json:"acknowledgeAll"`
}

// AckEvents handles the bulk acknowledge operation. Persistence trouble here
// is logged but not surfaced to the caller.
func (h *Handler) AckEvents(c *gin.Context) {
	var req ackEventsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !req.AcknowledgeAll {
		c.JSON(http.StatusBadRequest, gin.H{"error": "acknowledgeAll must be true"})
		return
	}

	if err := h.store.AcknowledgeAll(c.Request.Context()); err != nil {
		log.Printf("api: acknowledge all failed: %v", err)
	}
	c.JSON(http.StatusOK, gin.H{"acknowledged": true})
}
