package services

import (
	"context"
	"errors"
	"fmt"

	"steadystream/internal/metrics"
	"steadystream/internal/models"
	"steadystream/internal/store"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrSelfFollow       = errors.New("cannot follow yourself")
	ErrAlreadyFollowing = errors.New("already following this user")
	ErrNotFollowing     = errors.New("not following this user")
	ErrUserNotFound     = errors.New("user not found")
)

// Connections is a user's follow graph neighbourhood
type Connections struct {
	Following []models.Profile `json:"following"`
	Followers []models.Profile `json:"followers"`
	Mutuals   []models.Profile `json:"mutuals"`
}

// UserFollowsService manages the follow graph
type UserFollowsService struct {
	store   *store.Store
	cache   ConnectionsCache
	events  *AnalyticsService
	metrics *metrics.Metrics
	log     logrus.FieldLogger
}

// NewUserFollowsService creates a new UserFollowsService. cache, events and m may be nil.
func NewUserFollowsService(st *store.Store, cache ConnectionsCache, events *AnalyticsService, m *metrics.Metrics, log logrus.FieldLogger) *UserFollowsService {
	if cache == nil {
		cache = NoopConnectionsCache{}
	}
	return &UserFollowsService{
		store:   st,
		cache:   cache,
		events:  events,
		metrics: m,
		log:     log,
	}
}

// Follow makes followerID follow followingID
func (s *UserFollowsService) Follow(ctx context.Context, followerID, followingID uuid.UUID) error {
	if followerID == followingID {
		return ErrSelfFollow
	}

	if _, err := s.store.GetProfile(ctx, followingID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to load user: %w", err)
	}

	err := s.store.InsertFollow(ctx, &models.Follow{FollowerID: followerID, FollowingID: followingID})
	if errors.Is(err, store.ErrDuplicateFollow) {
		return ErrAlreadyFollowing
	}
	if err != nil {
		return fmt.Errorf("failed to follow user: %w", err)
	}

	s.cache.Invalidate(ctx, followerID, followingID)
	s.metrics.ObserveFollow("follow")
	s.events.LogEvent(ctx, followerID, "follow_user", map[string]interface{}{
		"following_id": followingID.String(),
	})

	s.log.WithFields(logrus.Fields{
		"follower_id":  followerID,
		"following_id": followingID,
	}).Info("User followed")
	return nil
}

// Unfollow removes the follow edge from followerID to followingID
func (s *UserFollowsService) Unfollow(ctx context.Context, followerID, followingID uuid.UUID) error {
	existed, err := s.store.DeleteFollow(ctx, followerID, followingID)
	if err != nil {
		return fmt.Errorf("failed to unfollow user: %w", err)
	}
	if !existed {
		return ErrNotFollowing
	}

	s.cache.Invalidate(ctx, followerID, followingID)
	s.metrics.ObserveFollow("unfollow")
	return nil
}

// IsFollowing reports whether followerID follows followingID
func (s *UserFollowsService) IsFollowing(ctx context.Context, followerID, followingID uuid.UUID) (bool, error) {
	return s.store.IsFollowing(ctx, followerID, followingID)
}

// IsMutual reports whether a and b follow each other
func (s *UserFollowsService) IsMutual(ctx context.Context, a, b uuid.UUID) (bool, error) {
	return s.store.IsMutual(ctx, a, b)
}

// Connections returns who userID follows, who follows them and the overlap.
// Results are cached until either side of a follow changes.
func (s *UserFollowsService) Connections(ctx context.Context, userID uuid.UUID) (*Connections, error) {
	if cached, ok := s.cache.Get(ctx, userID); ok {
		return cached, nil
	}

	followingIDs, err := s.store.FollowingIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load following: %w", err)
	}
	followerIDs, err := s.store.FollowerIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load followers: %w", err)
	}

	following, err := s.store.ProfilesByIDs(ctx, followingIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load profiles: %w", err)
	}
	followers, err := s.store.ProfilesByIDs(ctx, followerIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load profiles: %w", err)
	}

	followerSet := make(map[uuid.UUID]bool, len(followers))
	for _, p := range followers {
		followerSet[p.ID] = true
	}

	conns := &Connections{
		Following: nonNil(following),
		Followers: nonNil(followers),
		Mutuals:   []models.Profile{},
	}
	for _, p := range following {
		if followerSet[p.ID] {
			conns.Mutuals = append(conns.Mutuals, p)
		}
	}

	s.cache.Set(ctx, userID, conns)
	return conns, nil
}

func nonNil(profiles []models.Profile) []models.Profile {
	if profiles == nil {
		return []models.Profile{}
	}
	return profiles
}
