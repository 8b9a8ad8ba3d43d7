package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"steadystream/internal/services"
	"steadystream/internal/throws"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ThrowHandler handles HTTP requests for throws
type ThrowHandler struct {
	manager  *throws.Manager
	profiles *services.ProfileService
}

// NewThrowHandler creates a new throw handler
func NewThrowHandler(manager *throws.Manager, profiles *services.ProfileService) *ThrowHandler {
	return &ThrowHandler{manager: manager, profiles: profiles}
}

// SendThrowRequest is the body of POST /api/throws
type SendThrowRequest struct {
	PostID      uuid.UUID `json:"post_id" binding:"required"`
	RecipientID uuid.UUID `json:"recipient_id" binding:"required"`
	Message     string    `json:"message"`
	IsPublic    bool      `json:"is_public"`
}

// SendThrow handles POST /api/throws
func (h *ThrowHandler) SendThrow(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req SendThrowRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	throw, err := h.manager.SendThrow(c.Request.Context(), throws.SendRequest{
		PostID:      req.PostID,
		ThrowerID:   userID,
		RecipientID: req.RecipientID,
		Message:     req.Message,
		IsPublic:    req.IsPublic,
	})

	var persistErr *throws.PersistError
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, gin.H{"throw": throw, "has_thrown": true})
	case errors.Is(err, throws.ErrDuplicateThrow):
		c.JSON(http.StatusConflict, gin.H{"error": h.duplicateMessage(c, req.RecipientID)})
	case errors.Is(err, throws.ErrMessageTooLong), errors.Is(err, throws.ErrMarkup),
		errors.Is(err, throws.ErrInvalidRecipient):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, throws.ErrPostNotFound), errors.Is(err, throws.ErrRecipientNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, throws.ErrNotMutual), errors.Is(err, throws.ErrThrowsDisabled):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.As(err, &persistErr):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to share post. Please try again."})
	default:
		internalError(c, "Failed to share post. Please try again.", err)
	}
}

func (h *ThrowHandler) duplicateMessage(c *gin.Context, recipientID uuid.UUID) string {
	profile, err := h.profiles.Get(c.Request.Context(), recipientID)
	if err != nil {
		return "You've already shared this post with this person."
	}
	return fmt.Sprintf("You've already shared this post with %s.", profile.Name)
}

// HasThrown handles GET /api/posts/:id/thrown
func (h *ThrowHandler) HasThrown(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	postID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	thrown, err := h.manager.HasThrown(c.Request.Context(), postID, userID)
	if err != nil {
		internalError(c, "Failed to check throw", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"post_id": postID, "has_thrown": thrown})
}

// Recipients handles GET /api/throws/recipients
func (h *ThrowHandler) Recipients(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	recipients, err := h.manager.Recipients(c.Request.Context(), userID)
	if err != nil {
		internalError(c, "Failed to load recipients", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"recipients": recipients})
}

// Sent handles GET /api/throws/sent
func (h *ThrowHandler) Sent(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	sent, err := h.manager.Sent(c.Request.Context(), userID)
	if err != nil {
		internalError(c, "Failed to load throws", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"throws": sent})
}

// Received handles GET /api/throws/received
func (h *ThrowHandler) Received(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	received, err := h.manager.Received(c.Request.Context(), userID)
	if err != nil {
		internalError(c, "Failed to load throws", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"throws": received})
}

// MarkReadRequest is the body of POST /api/throws/read
type MarkReadRequest struct {
	ThrowIDs []uuid.UUID `json:"throw_ids" binding:"required"`
}

// MarkRead handles POST /api/throws/read
func (h *ThrowHandler) MarkRead(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req MarkReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	updated, err := h.manager.MarkRead(c.Request.Context(), userID, req.ThrowIDs)
	if err != nil {
		internalError(c, "Failed to mark throws read", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"updated": updated})
}
