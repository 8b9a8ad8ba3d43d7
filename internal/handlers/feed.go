package handlers

import (
	"net/http"
	"time"

	"steadystream/internal/feeds"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// FeedHandler handles HTTP requests for feeds
type FeedHandler struct {
	feedService *feeds.FeedService
	log         logrus.FieldLogger
}

// NewFeedHandler creates a new feed handler
func NewFeedHandler(feedService *feeds.FeedService, log logrus.FieldLogger) *FeedHandler {
	return &FeedHandler{feedService: feedService, log: log}
}

// GetFeed handles GET /api/feed
func (h *FeedHandler) GetFeed(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	items, err := h.feedService.ComposeFeed(c.Request.Context(), userID)
	if err != nil {
		h.log.WithError(err).WithField("user_id", userID).Error("Failed to compose feed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":     "Failed to load feed",
			"details":   err.Error(),
			"retryable": true,
		})
		return
	}

	c.JSON(http.StatusOK, feeds.NewFeedResponse(items, time.Now().UTC()))
}

// HealthCheck handles GET /health
func (h *FeedHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "steadystream",
	})
}
