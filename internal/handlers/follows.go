package handlers

import (
	"errors"
	"net/http"

	"steadystream/internal/services"

	"github.com/gin-gonic/gin"
)

// FollowHandler handles HTTP requests for the follow graph
type FollowHandler struct {
	follows *services.UserFollowsService
}

// NewFollowHandler creates a new follow handler
func NewFollowHandler(follows *services.UserFollowsService) *FollowHandler {
	return &FollowHandler{follows: follows}
}

// Follow handles POST /api/users/:id/follow
func (h *FollowHandler) Follow(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	targetID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	err := h.follows.Follow(c.Request.Context(), userID, targetID)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"following": true})
	case errors.Is(err, services.ErrSelfFollow):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrAlreadyFollowing):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		internalError(c, "Failed to follow user", err)
	}
}

// Unfollow handles DELETE /api/users/:id/follow
func (h *FollowHandler) Unfollow(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	targetID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	err := h.follows.Unfollow(c.Request.Context(), userID, targetID)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"following": false})
	case errors.Is(err, services.ErrNotFollowing):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		internalError(c, "Failed to unfollow user", err)
	}
}

// Connections handles GET /api/users/:id/connections
func (h *FollowHandler) Connections(c *gin.Context) {
	targetID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	conns, err := h.follows.Connections(c.Request.Context(), targetID)
	if err != nil {
		internalError(c, "Failed to load connections", err)
		return
	}

	c.JSON(http.StatusOK, conns)
}
