package handlers

import (
	"errors"
	"net/http"

	"steadystream/internal/sanitize"
	"steadystream/internal/services"

	"github.com/gin-gonic/gin"
)

// ProfileHandler handles HTTP requests for profiles
type ProfileHandler struct {
	profiles *services.ProfileService
}

// NewProfileHandler creates a new profile handler
func NewProfileHandler(profiles *services.ProfileService) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

// GetMe handles GET /api/profile
func (h *ProfileHandler) GetMe(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	profile, err := h.profiles.Get(c.Request.Context(), userID)
	if errors.Is(err, services.ErrProfileNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		internalError(c, "Failed to load profile", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"profile": profile})
}

// CreateMe handles POST /api/profile
func (h *ProfileHandler) CreateMe(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req services.CreateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	profile, err := h.profiles.Create(c.Request.Context(), userID, req)
	if err != nil {
		h.writeError(c, "Failed to create profile", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"profile": profile})
}

// UpdateMe handles PUT /api/profile
func (h *ProfileHandler) UpdateMe(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req services.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	profile, err := h.profiles.Update(c.Request.Context(), userID, req)
	if err != nil {
		h.writeError(c, "Failed to update profile", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"profile": profile})
}

// GetUser handles GET /api/users/:id
func (h *ProfileHandler) GetUser(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	targetID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	view, err := h.profiles.View(c.Request.Context(), userID, targetID)
	if err != nil {
		h.writeError(c, "Failed to load user", err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// Discover handles GET /api/users, with ?suggested=true for people followed
// by the viewer's follows
func (h *ProfileHandler) Discover(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	suggested := c.Query("suggested") == "true"
	result, err := h.profiles.Discover(c.Request.Context(), userID, suggested)
	if err != nil {
		internalError(c, "Failed to load users", err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *ProfileHandler) writeError(c *gin.Context, message string, err error) {
	switch {
	case errors.Is(err, services.ErrProfileNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrProfileExists):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrInvalidName),
		errors.Is(err, services.ErrBioTooLong),
		errors.Is(err, sanitize.ErrMarkup),
		errors.Is(err, services.ErrInvalidAvatar),
		errors.Is(err, services.ErrInvalidPrivacy),
		errors.Is(err, services.ErrInviteRequired),
		errors.Is(err, services.ErrInvalidInvite):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		internalError(c, message, err)
	}
}
