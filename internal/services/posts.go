package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"steadystream/internal/models"
	"steadystream/internal/sanitize"
	"steadystream/internal/store"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// MaxCaptionLength is the maximum number of characters in a post caption
const MaxCaptionLength = 500

var (
	ErrInvalidImageURL = errors.New("image url must be an absolute http(s) url")
	ErrCaptionTooLong  = fmt.Errorf("caption exceeds %d characters", MaxCaptionLength)
	ErrPostNotFound    = errors.New("post not found")
)

// PostService creates and lists posts. Images are uploaded elsewhere; posts
// only reference them by url.
type PostService struct {
	store  *store.Store
	events *AnalyticsService
	log    logrus.FieldLogger
}

// NewPostService creates a new PostService
func NewPostService(st *store.Store, events *AnalyticsService, log logrus.FieldLogger) *PostService {
	return &PostService{store: st, events: events, log: log}
}

// Create publishes a post for userID
func (s *PostService) Create(ctx context.Context, userID uuid.UUID, imageURL, caption string) (*models.Post, error) {
	if !validHTTPURL(imageURL) {
		return nil, ErrInvalidImageURL
	}

	caption, err := sanitize.PlainText(caption)
	if err != nil {
		return nil, fmt.Errorf("caption: %w", err)
	}
	if sanitize.Length(caption) > MaxCaptionLength {
		return nil, ErrCaptionTooLong
	}

	if _, err := s.store.GetProfile(ctx, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrProfileNotFound
		}
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	post := &models.Post{UserID: userID, ImageURL: imageURL, Caption: caption}
	if err := s.store.DB().WithContext(ctx).Omit("Author").Create(post).Error; err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}

	s.events.LogEvent(ctx, userID, "post_created", map[string]interface{}{
		"post_id":     post.ID.String(),
		"has_caption": caption != "",
	})
	s.log.WithFields(logrus.Fields{"user_id": userID, "post_id": post.ID}).Info("Post created")

	return post, nil
}

// Get loads a post with its author
func (s *PostService) Get(ctx context.Context, postID uuid.UUID) (*models.Post, error) {
	post, err := s.store.GetPost(ctx, postID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrPostNotFound
	}
	return post, err
}

// ListByUser returns userID's posts, newest first
func (s *PostService) ListByUser(ctx context.Context, userID uuid.UUID) ([]models.Post, error) {
	posts, err := s.store.PostsByAuthors(ctx, []uuid.UUID{userID})
	if err != nil {
		return nil, fmt.Errorf("failed to load posts: %w", err)
	}
	if posts == nil {
		posts = []models.Post{}
	}
	return posts, nil
}

func validHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
