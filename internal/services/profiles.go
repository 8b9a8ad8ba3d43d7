package services

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"steadystream/internal/models"
	"steadystream/internal/sanitize"
	"steadystream/internal/store"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	MaxNameLength    = 50
	MaxBioLength     = 300
	discoverPreviews = 4
)

var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrProfileExists   = errors.New("profile already exists")
	ErrInvalidName     = fmt.Errorf("name must be 1 to %d characters", MaxNameLength)
	ErrBioTooLong      = fmt.Errorf("bio exceeds %d characters", MaxBioLength)
	ErrInvalidAvatar   = errors.New("avatar url must be an absolute http(s) url")
	ErrInvalidPrivacy  = errors.New("unknown throw privacy setting")
	ErrInviteRequired  = errors.New("invite code is required")
)

// CreateProfileRequest is the signup payload
type CreateProfileRequest struct {
	Name       string `json:"name"`
	InviteCode string `json:"invite_code"`
}

// UpdateProfileRequest changes the fields that are set
type UpdateProfileRequest struct {
	Name         *string              `json:"name"`
	Bio          *string              `json:"bio"`
	AvatarURL    *string              `json:"avatar_url"`
	ThrowPrivacy *models.ThrowPrivacy `json:"throw_privacy"`
}

// UserView is a profile as seen by another user
type UserView struct {
	Profile              models.Profile `json:"profile"`
	IsFollowing          bool           `json:"is_following"`
	IsMutual             bool           `json:"is_mutual"`
	MutualFollowersCount int            `json:"mutual_followers_count"`
}

// DiscoverUser is an entry of the discover listing
type DiscoverUser struct {
	models.Profile
	IsFollowing   bool          `json:"is_following"`
	RecentPosts   []models.Post `json:"recent_posts"`
	PostCount     int           `json:"post_count"`
	FollowerCount int           `json:"follower_count"`
	MutualCount   int           `json:"mutual_count"`
}

// DiscoverResult is the discover listing. Fallback is set when suggestions were
// requested but none exist and every user is listed instead.
type DiscoverResult struct {
	Users    []DiscoverUser `json:"users"`
	Fallback bool           `json:"fallback"`
}

// ProfileService manages user profiles
type ProfileService struct {
	store   *store.Store
	invites *InviteService
	events  *AnalyticsService
	log     logrus.FieldLogger
}

// NewProfileService creates a new ProfileService
func NewProfileService(st *store.Store, invites *InviteService, events *AnalyticsService, log logrus.FieldLogger) *ProfileService {
	return &ProfileService{store: st, invites: invites, events: events, log: log}
}

// Get loads userID's profile
func (s *ProfileService) Get(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	profile, err := s.store.GetProfile(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrProfileNotFound
	}
	return profile, err
}

// Create registers the profile of a newly signed up user. With invites enabled
// a valid code is required and one use of it is consumed.
func (s *ProfileService) Create(ctx context.Context, userID uuid.UUID, req CreateProfileRequest) (*models.Profile, error) {
	name, err := cleanName(req.Name)
	if err != nil {
		return nil, err
	}

	profile := &models.Profile{ID: userID, Name: name}

	err = s.store.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if s.invites.Enabled() {
			if req.InviteCode == "" {
				return ErrInviteRequired
			}
			if err := s.invites.redeem(tx, req.InviteCode); err != nil {
				return err
			}
			code := normalizeCode(req.InviteCode)
			profile.InviteCode = &code
		}

		err := tx.Create(profile).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrProfileExists
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	s.events.LogEvent(ctx, userID, "signup", nil)
	s.log.WithField("user_id", userID).Info("Profile created")
	return profile, nil
}

// Update applies the set fields of req to userID's profile
func (s *ProfileService) Update(ctx context.Context, userID uuid.UUID, req UpdateProfileRequest) (*models.Profile, error) {
	profile, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		name, err := cleanName(*req.Name)
		if err != nil {
			return nil, err
		}
		updates["name"] = name
	}
	if req.Bio != nil {
		bio, err := sanitize.PlainText(*req.Bio)
		if err != nil {
			return nil, fmt.Errorf("bio: %w", err)
		}
		if sanitize.Length(bio) > MaxBioLength {
			return nil, ErrBioTooLong
		}
		updates["bio"] = bio
	}
	if req.AvatarURL != nil {
		if *req.AvatarURL == "" {
			updates["avatar_url"] = nil
		} else if !validHTTPURL(*req.AvatarURL) {
			return nil, ErrInvalidAvatar
		} else {
			updates["avatar_url"] = *req.AvatarURL
		}
	}
	if req.ThrowPrivacy != nil {
		if !req.ThrowPrivacy.Valid() {
			return nil, ErrInvalidPrivacy
		}
		updates["throw_privacy"] = *req.ThrowPrivacy
	}

	if len(updates) == 0 {
		return profile, nil
	}

	if err := s.store.DB().WithContext(ctx).Model(profile).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}
	return s.Get(ctx, userID)
}

// View returns userID's profile with its relation to viewerID
func (s *ProfileService) View(ctx context.Context, viewerID, userID uuid.UUID) (*UserView, error) {
	profile, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	view := &UserView{Profile: *profile}
	if viewerID == userID {
		return view, nil
	}

	viewerFollowing, err := s.store.FollowingIDs(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load following: %w", err)
	}
	followers, err := s.store.FollowerIDs(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load followers: %w", err)
	}

	following := toSet(viewerFollowing)
	view.IsFollowing = following[userID]
	for _, id := range followers {
		if following[id] {
			view.MutualFollowersCount++
		}
	}

	if view.IsFollowing {
		view.IsMutual, err = s.store.IsFollowing(ctx, userID, viewerID)
		if err != nil {
			return nil, fmt.Errorf("failed to check follow: %w", err)
		}
	}
	return view, nil
}

// Discover lists every other user with follow information and recent posts.
// With suggested set only users viewerID does not follow yet but people they follow
// do are listed, most shared connections first.
func (s *ProfileService) Discover(ctx context.Context, viewerID uuid.UUID, suggested bool) (*DiscoverResult, error) {
	db := s.store.DB().WithContext(ctx)

	var profiles []models.Profile
	if err := db.Where("id <> ?", viewerID).Order("name ASC").Find(&profiles).Error; err != nil {
		return nil, fmt.Errorf("failed to load profiles: %w", err)
	}
	if len(profiles) == 0 {
		return &DiscoverResult{Users: []DiscoverUser{}}, nil
	}

	ids := make([]uuid.UUID, len(profiles))
	for i, p := range profiles {
		ids[i] = p.ID
	}

	viewerFollowing, err := s.store.FollowingIDs(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load following: %w", err)
	}
	following := toSet(viewerFollowing)

	posts, err := s.store.PostsByAuthors(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load posts: %w", err)
	}

	var edges []models.Follow
	if err := db.Where("following_id IN ?", ids).Find(&edges).Error; err != nil {
		return nil, fmt.Errorf("failed to load follows: %w", err)
	}

	users := make([]DiscoverUser, len(profiles))
	index := make(map[uuid.UUID]*DiscoverUser, len(profiles))
	for i, p := range profiles {
		users[i] = DiscoverUser{
			Profile:     p,
			IsFollowing: following[p.ID],
			RecentPosts: []models.Post{},
		}
		index[p.ID] = &users[i]
	}

	for _, post := range posts {
		u := index[post.UserID]
		u.PostCount++
		if len(u.RecentPosts) < discoverPreviews {
			post.Author = nil
			u.RecentPosts = append(u.RecentPosts, post)
		}
	}

	for _, edge := range edges {
		u := index[edge.FollowingID]
		u.FollowerCount++
		if following[edge.FollowerID] {
			u.MutualCount++
		}
	}

	result := &DiscoverResult{Users: users}
	if !suggested {
		return result, nil
	}

	var suggestions []DiscoverUser
	for _, u := range users {
		if u.MutualCount > 0 && !u.IsFollowing {
			suggestions = append(suggestions, u)
		}
	}
	if len(suggestions) == 0 {
		result.Fallback = true
		return result, nil
	}

	sort.SliceStable(suggestions, func(i, j int) bool {
		return suggestions[i].MutualCount > suggestions[j].MutualCount
	})
	result.Users = suggestions
	return result, nil
}

func cleanName(name string) (string, error) {
	name, err := sanitize.PlainText(name)
	if err != nil {
		return "", fmt.Errorf("name: %w", err)
	}
	if n := sanitize.Length(name); n == 0 || n > MaxNameLength {
		return "", ErrInvalidName
	}
	return name, nil
}

func toSet(ids []uuid.UUID) map[uuid.UUID]bool {
	set := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
