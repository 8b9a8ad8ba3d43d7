package handlers

import (
	"errors"
	"net/http"

	"steadystream/internal/sanitize"
	"steadystream/internal/services"

	"github.com/gin-gonic/gin"
)

// PostHandler handles HTTP requests for posts
type PostHandler struct {
	posts *services.PostService
}

// NewPostHandler creates a new post handler
func NewPostHandler(posts *services.PostService) *PostHandler {
	return &PostHandler{posts: posts}
}

// CreatePostRequest is the body of POST /api/posts
type CreatePostRequest struct {
	ImageURL string `json:"image_url" binding:"required"`
	Caption  string `json:"caption"`
}

// CreatePost handles POST /api/posts
func (h *PostHandler) CreatePost(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req CreatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body", "details": err.Error()})
		return
	}

	post, err := h.posts.Create(c.Request.Context(), userID, req.ImageURL, req.Caption)
	switch {
	case err == nil:
		c.JSON(http.StatusCreated, gin.H{"post": post})
	case errors.Is(err, services.ErrInvalidImageURL), errors.Is(err, services.ErrCaptionTooLong),
		errors.Is(err, sanitize.ErrMarkup):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrProfileNotFound):
		c.JSON(http.StatusForbidden, gin.H{"error": "Create a profile before posting"})
	default:
		internalError(c, "Failed to create post", err)
	}
}

// ListUserPosts handles GET /api/users/:id/posts
func (h *PostHandler) ListUserPosts(c *gin.Context) {
	targetID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	posts, err := h.posts.ListByUser(c.Request.Context(), targetID)
	if err != nil {
		internalError(c, "Failed to load posts", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"posts": posts, "total": len(posts)})
}
