package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetTopics lists the notification topics.
func (h *Handler) GetTopics(c *gin.Context) {
	topics, err := h.store.ListTopics(c.Request.Context())
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, topics)
}

type postTopicRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// PostTopic creates a topic.
func (h *Handler) PostTopic(c *gin.Context) {
	var req postTopicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	topic, err := h.store.CreateTopic(c.Request.Context(), req.Name, req.Description)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, topic)
}

type putTopicRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Enabled     *bool   `json:"enabled"`
}

// PutTopic updates the provided fields of a topic.
func (h *Handler) PutTopic(c *gin.Context) {
	var req putTopicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	topic, err := h.store.UpdateTopic(c.Request.Context(), c.Param("id"), req.Name, req.Description, req.Enabled)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, topic)
}

// DeleteTopic removes a topic.
func (h *Handler) DeleteTopic(c *gin.Context) {
	if err := h.store.DeleteTopic(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}
