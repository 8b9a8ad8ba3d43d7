package handlers

import (
	"errors"
	"net/http"

	"steadystream/internal/services"

	"github.com/gin-gonic/gin"
)

// InviteHandler handles HTTP requests for invite codes
type InviteHandler struct {
	invites *services.InviteService
}

// NewInviteHandler creates a new invite handler
func NewInviteHandler(invites *services.InviteService) *InviteHandler {
	return &InviteHandler{invites: invites}
}

// RequireEnabled hides the invite routes while the feature is off
func (h *InviteHandler) RequireEnabled() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !h.invites.Enabled() {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Not found"})
			return
		}
		c.Next()
	}
}

// CreateInvite handles POST /api/invites
func (h *InviteHandler) CreateInvite(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	invite, err := h.invites.Generate(c.Request.Context(), userID)
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, gin.H{"invite": invite})
	case errors.Is(err, services.ErrInvitesDisabled):
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	default:
		internalError(c, "Failed to create invite", err)
	}
}

// ListInvites handles GET /api/invites
func (h *InviteHandler) ListInvites(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	invites, err := h.invites.List(c.Request.Context(), userID)
	if err != nil {
		internalError(c, "Failed to load invites", err)
		return
	}
	summary, err := h.invites.Summary(c.Request.Context(), userID)
	if err != nil {
		internalError(c, "Failed to load invites", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"invites": invites, "summary": summary})
}

// ValidateInvite handles GET /api/invites/:code
func (h *InviteHandler) ValidateInvite(c *gin.Context) {
	_, err := h.invites.Validate(c.Request.Context(), c.Param("code"))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"valid": true})
	case errors.Is(err, services.ErrInvalidInvite):
		c.JSON(http.StatusOK, gin.H{"valid": false, "error": err.Error()})
	default:
		internalError(c, "Failed to validate invite", err)
	}
}
