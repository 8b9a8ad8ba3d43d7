package handlers

import (
	"errors"
	"net/http"

	"steadystream/internal/services"

	"github.com/gin-gonic/gin"
)

// StatusReporter describes the state of the background workers
type StatusReporter interface {
	GetStatus() map[string]interface{}
}

// AdminHandler handles the admin endpoints
type AdminHandler struct {
	profiles  *services.ProfileService
	analytics *services.AnalyticsService
	invites   *services.InviteService
	workers   StatusReporter
}

// NewAdminHandler creates a new admin handler. workers may be nil.
func NewAdminHandler(profiles *services.ProfileService, analytics *services.AnalyticsService, invites *services.InviteService, workers StatusReporter) *AdminHandler {
	return &AdminHandler{
		profiles:  profiles,
		analytics: analytics,
		invites:   invites,
		workers:   workers,
	}
}

// RequireAdmin rejects callers whose profile is not flagged as admin
func (h *AdminHandler) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := currentUser(c)
		if !ok {
			c.Abort()
			return
		}

		profile, err := h.profiles.Get(c.Request.Context(), userID)
		if err != nil && !errors.Is(err, services.ErrProfileNotFound) {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"error":   "Failed to load profile",
				"details": err.Error(),
			})
			return
		}
		if profile == nil || !profile.IsAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			return
		}

		c.Next()
	}
}

// GetAnalytics handles GET /api/admin/analytics
func (h *AdminHandler) GetAnalytics(c *gin.Context) {
	summary, err := h.analytics.Summary(c.Request.Context())
	if err != nil {
		internalError(c, "Failed to load analytics", err)
		return
	}

	c.JSON(http.StatusOK, summary)
}

// ExpireInvites handles POST /api/admin/invites/expire, running the expiry
// sweep immediately instead of waiting for the background worker
func (h *AdminHandler) ExpireInvites(c *gin.Context) {
	expired, err := h.invites.ExpireStale(c.Request.Context())
	if err != nil {
		internalError(c, "Failed to expire invites", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Invite expiry completed",
		"expired": expired,
	})
}

// WorkerStatus handles GET /api/admin/workers
func (h *AdminHandler) WorkerStatus(c *gin.Context) {
	if h.workers == nil {
		c.JSON(http.StatusOK, gin.H{"running": false})
		return
	}
	c.JSON(http.StatusOK, h.workers.GetStatus())
}
