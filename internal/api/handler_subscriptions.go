package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"mcm-alerts-backend/internal/store"
)

type postSubscriptionRequest struct {
	Endpoint  string     `json:"endpoint"`
	Keys      store.Keys `json:"keys"`
	UserAgent string     `json:"userAgent"`
}

// PostSubscription registers a push endpoint. Re-registering an existing
// endpoint touches the stored row instead of creating a duplicate.
func (h *Handler) PostSubscription(c *gin.Context) {
	var req postSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sub, created, err := h.store.RegisterSubscription(c.Request.Context(), req.Endpoint, req.Keys, req.UserAgent)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{"id": sub.ID})
}

// DeleteSubscription removes a subscription by id. Removing an absent one is
// a no-op.
func (h *Handler) DeleteSubscription(c *gin.Context) {
	if err := h.store.RemoveSubscription(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}
