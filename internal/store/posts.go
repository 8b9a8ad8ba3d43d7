package store

import (
	"context"

	"steadystream/internal/models"

	"github.com/google/uuid"
)

// PostsByAuthors returns every post written by one of authorIDs, newest first,
// with the author profile preloaded
func (s *Store) PostsByAuthors(ctx context.Context, authorIDs []uuid.UUID) ([]models.Post, error) {
	if len(authorIDs) == 0 {
		return nil, nil
	}

	var posts []models.Post
	err := s.conn(ctx).Preload("Author").
		Where("user_id IN ?", authorIDs).
		Order("created_at DESC").
		Find(&posts).Error
	return posts, err
}

// GetPost loads a single post with its author
func (s *Store) GetPost(ctx context.Context, postID uuid.UUID) (*models.Post, error) {
	var post models.Post
	if err := s.conn(ctx).Preload("Author").First(&post, "id = ?", postID).Error; err != nil {
		return nil, notFound(err)
	}
	return &post, nil
}

// GetProfile loads a single profile
func (s *Store) GetProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	var profile models.Profile
	if err := s.conn(ctx).First(&profile, "id = ?", userID).Error; err != nil {
		return nil, notFound(err)
	}
	return &profile, nil
}

// ProfilesByIDs loads the profiles with the given ids, ordered by name
func (s *Store) ProfilesByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Profile, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	var profiles []models.Profile
	err := s.conn(ctx).Where("id IN ?", ids).Order("name ASC").Find(&profiles).Error
	return profiles, err
}
