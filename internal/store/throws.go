package store

import (
	"context"

	"steadystream/internal/models"

	"github.com/google/uuid"
)

// ThrowsToRecipient returns throws addressed to recipientID with post, post
// author and thrower preloaded
func (s *Store) ThrowsToRecipient(ctx context.Context, recipientID uuid.UUID) ([]models.Throw, error) {
	var throws []models.Throw
	err := s.conn(ctx).
		Preload("Post.Author").
		Preload("Thrower").
		Where("recipient_id = ?", recipientID).
		Order("created_at DESC").
		Find(&throws).Error
	return throws, err
}

// PublicThrowsForOwners returns public throws of posts owned by one of ownerIDs
func (s *Store) PublicThrowsForOwners(ctx context.Context, ownerIDs []uuid.UUID) ([]models.Throw, error) {
	if len(ownerIDs) == 0 {
		return nil, nil
	}

	var throws []models.Throw
	err := s.conn(ctx).
		Preload("Post.Author").
		Preload("Thrower").
		Where("is_public = ? AND post_owner_id IN ?", true, ownerIDs).
		Order("created_at DESC").
		Find(&throws).Error
	return throws, err
}

// ThrowsByThrower returns throws sent by throwerID, newest first
func (s *Store) ThrowsByThrower(ctx context.Context, throwerID uuid.UUID) ([]models.Throw, error) {
	var throws []models.Throw
	err := s.conn(ctx).
		Preload("Post.Author").
		Preload("Thrower").
		Where("thrower_id = ?", throwerID).
		Order("created_at DESC").
		Find(&throws).Error
	return throws, err
}

// ThrownPostIDs returns the subset of postIDs that throwerID has thrown at least once
func (s *Store) ThrownPostIDs(ctx context.Context, throwerID uuid.UUID, postIDs []uuid.UUID) (map[uuid.UUID]bool, error) {
	thrown := make(map[uuid.UUID]bool)
	if len(postIDs) == 0 {
		return thrown, nil
	}

	var ids []uuid.UUID
	err := s.conn(ctx).Model(&models.Throw{}).
		Where("thrower_id = ? AND post_id IN ?", throwerID, postIDs).
		Distinct().
		Pluck("post_id", &ids).Error
	if err != nil {
		return nil, err
	}

	for _, id := range ids {
		thrown[id] = true
	}
	return thrown, nil
}

// HasThrown reports whether throwerID has thrown postID to anyone
func (s *Store) HasThrown(ctx context.Context, postID, throwerID uuid.UUID) (bool, error) {
	var count int64
	err := s.conn(ctx).Model(&models.Throw{}).
		Where("post_id = ? AND thrower_id = ?", postID, throwerID).
		Count(&count).Error
	return count > 0, err
}

// FindThrow looks up the throw with the given composite key
func (s *Store) FindThrow(ctx context.Context, postID, throwerID, recipientID uuid.UUID) (*models.Throw, error) {
	var t models.Throw
	err := s.conn(ctx).
		Where("post_id = ? AND thrower_id = ? AND recipient_id = ?", postID, throwerID, recipientID).
		First(&t).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

// InsertThrow persists a throw. A uniqueness violation is reported as ErrDuplicateThrow.
func (s *Store) InsertThrow(ctx context.Context, t *models.Throw) error {
	err := s.conn(ctx).Omit("Post", "Thrower").Create(t).Error
	if isUniqueViolation(err) {
		return ErrDuplicateThrow
	}
	return err
}

// MarkThrowsRead flags the recipient's throws as read. Ids of throws addressed to
// someone else are ignored.
func (s *Store) MarkThrowsRead(ctx context.Context, recipientID uuid.UUID, throwIDs []uuid.UUID) (int64, error) {
	if len(throwIDs) == 0 {
		return 0, nil
	}

	result := s.conn(ctx).Model(&models.Throw{}).
		Where("recipient_id = ? AND id IN ?", recipientID, throwIDs).
		Update("is_read", true)
	return result.RowsAffected, result.Error
}
