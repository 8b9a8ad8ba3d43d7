package store

import (
	"context"

	"steadystream/internal/models"

	"github.com/google/uuid"
)

// FollowingIDs returns the ids of the accounts userID follows
func (s *Store) FollowingIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := s.conn(ctx).Model(&models.Follow{}).
		Where("follower_id = ?", userID).
		Pluck("following_id", &ids).Error
	return ids, err
}

// FollowerIDs returns the ids of the accounts following userID
func (s *Store) FollowerIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := s.conn(ctx).Model(&models.Follow{}).
		Where("following_id = ?", userID).
		Pluck("follower_id", &ids).Error
	return ids, err
}

// MutualIDs returns the accounts that userID follows and that follow userID back
func (s *Store) MutualIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	followingIDs, err := s.FollowingIDs(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(followingIDs) == 0 {
		return nil, nil
	}

	var ids []uuid.UUID
	err = s.conn(ctx).Model(&models.Follow{}).
		Where("following_id = ? AND follower_id IN ?", userID, followingIDs).
		Pluck("follower_id", &ids).Error
	return ids, err
}

// IsFollowing reports whether followerID follows followingID
func (s *Store) IsFollowing(ctx context.Context, followerID, followingID uuid.UUID) (bool, error) {
	var count int64
	err := s.conn(ctx).Model(&models.Follow{}).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Count(&count).Error
	return count > 0, err
}

// IsMutual reports whether a and b follow each other
func (s *Store) IsMutual(ctx context.Context, a, b uuid.UUID) (bool, error) {
	var count int64
	err := s.conn(ctx).Model(&models.Follow{}).
		Where("(follower_id = ? AND following_id = ?) OR (follower_id = ? AND following_id = ?)", a, b, b, a).
		Count(&count).Error
	return count == 2, err
}

// InsertFollow creates a follow edge
func (s *Store) InsertFollow(ctx context.Context, follow *models.Follow) error {
	err := s.conn(ctx).Create(follow).Error
	if isUniqueViolation(err) {
		return ErrDuplicateFollow
	}
	return err
}

// DeleteFollow removes a follow edge and reports whether one existed
func (s *Store) DeleteFollow(ctx context.Context, followerID, followingID uuid.UUID) (bool, error) {
	result := s.conn(ctx).
		Where("follower_id = ? AND following_id = ?", followerID, followingID).
		Delete(&models.Follow{})
	return result.RowsAffected > 0, result.Error
}
