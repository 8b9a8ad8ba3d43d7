package feeds

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"steadystream/internal/metrics"
	"steadystream/internal/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DefaultSlowThreshold is the compose duration above which a slow_feed_load event is recorded
const DefaultSlowThreshold = 2 * time.Second

// Store is the subset of the relational store the composer reads from
type Store interface {
	FollowingIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	PostsByAuthors(ctx context.Context, authorIDs []uuid.UUID) ([]models.Post, error)
	ThrowsToRecipient(ctx context.Context, recipientID uuid.UUID) ([]models.Throw, error)
	PublicThrowsForOwners(ctx context.Context, ownerIDs []uuid.UUID) ([]models.Throw, error)
	ThrownPostIDs(ctx context.Context, throwerID uuid.UUID, postIDs []uuid.UUID) (map[uuid.UUID]bool, error)
}

// EventLogger records product analytics events
type EventLogger interface {
	LogEvent(ctx context.Context, userID uuid.UUID, name string, metadata map[string]interface{})
}

// FeedService composes viewer feeds
type FeedService struct {
	store   Store
	log     logrus.FieldLogger
	metrics *metrics.Metrics
	events  EventLogger

	SlowThreshold time.Duration
	now           func() time.Time
}

// NewFeedService creates a new feed service. metrics and events may be nil.
func NewFeedService(store Store, log logrus.FieldLogger, m *metrics.Metrics, events EventLogger) *FeedService {
	return &FeedService{
		store:         store,
		log:           log,
		metrics:       m,
		events:        events,
		SlowThreshold: DefaultSlowThreshold,
		now:           time.Now,
	}
}

// ThrowData describes one throw attached to a feed entry
type ThrowData struct {
	ThrowID     uuid.UUID      `json:"throw_id"`
	Thrower     models.Profile `json:"thrower"`
	RecipientID uuid.UUID      `json:"recipient_id"`
	Message     *string        `json:"message,omitempty"`
	IsPublic    bool           `json:"is_public"`
}

// FeedItem is a post as it appears in a viewer's feed
type FeedItem struct {
	Post            models.Post      `json:"post"`
	Author          models.Profile   `json:"author"`
	ThrownBy        []models.Profile `json:"thrown_by"`
	ThrowData       []ThrowData      `json:"throw_data"`
	ThrowID         *uuid.UUID       `json:"throw_id,omitempty"`
	HasViewerThrown bool             `json:"has_viewer_thrown"`
}

// CreatedAt is the post's creation time, the feed sort key
func (i FeedItem) CreatedAt() time.Time {
	return i.Post.CreatedAt
}

// VisibleMessages returns the throws on the item whose message viewerID may read:
// public ones, and private ones the viewer sent or received
func (i FeedItem) VisibleMessages(viewerID uuid.UUID) []ThrowData {
	var visible []ThrowData
	for _, td := range i.ThrowData {
		if td.Message == nil || strings.TrimSpace(*td.Message) == "" {
			continue
		}
		if td.IsPublic || td.Thrower.ID == viewerID || td.RecipientID == viewerID {
			visible = append(visible, td)
		}
	}
	return visible
}

// FeedResponse represents the structure returned by feed endpoints
type FeedResponse struct {
	Items []FeedItem `json:"items"`
	Meta  FeedMeta   `json:"meta"`
}

// FeedMeta contains metadata about the feed
type FeedMeta struct {
	TotalItems int       `json:"total_items"`
	ComposedAt time.Time `json:"composed_at"`
}

// NewFeedResponse wraps composed items
func NewFeedResponse(items []FeedItem, composedAt time.Time) FeedResponse {
	if items == nil {
		items = []FeedItem{}
	}
	return FeedResponse{
		Items: items,
		Meta:  FeedMeta{TotalItems: len(items), ComposedAt: composedAt},
	}
}

// ComposeFeed builds the viewer's chronological feed: posts by the viewer and the
// accounts they follow, merged with throws addressed to the viewer and public throws
// of those same accounts' posts.
//
// Failing to load follows or posts is an error. Failing to load throws degrades the
// feed to regular posts, and failing to load the viewer's own throws leaves every
// HasViewerThrown false.
func (fs *FeedService) ComposeFeed(ctx context.Context, viewerID uuid.UUID) ([]FeedItem, error) {
	start := fs.now()
	log := fs.log.WithField("viewer_id", viewerID)

	followingIDs, err := fs.store.FollowingIDs(ctx, viewerID)
	if err != nil {
		fs.metrics.ObserveComposeError("follows")
		return nil, fmt.Errorf("failed to load follows: %w", err)
	}
	ownAndFollowed := append([]uuid.UUID{viewerID}, followingIDs...)

	posts, err := fs.store.PostsByAuthors(ctx, ownAndFollowed)
	if err != nil {
		fs.metrics.ObserveComposeError("posts")
		return nil, fmt.Errorf("failed to load posts: %w", err)
	}

	thrownToViewer, err := fs.store.ThrowsToRecipient(ctx, viewerID)
	if err != nil {
		fs.metrics.ObserveComposeError("received_throws")
		log.WithError(err).Warn("Failed to load throws to viewer")
		thrownToViewer = nil
	}

	publicThrows, err := fs.store.PublicThrowsForOwners(ctx, ownAndFollowed)
	if err != nil {
		fs.metrics.ObserveComposeError("public_throws")
		log.WithError(err).Warn("Failed to load public throws")
		publicThrows = nil
	}

	items := merge(posts, uniqueThrows(thrownToViewer, publicThrows))

	if len(items) > 0 {
		postIDs := make([]uuid.UUID, len(items))
		for i := range items {
			postIDs[i] = items[i].Post.ID
		}

		thrown, err := fs.store.ThrownPostIDs(ctx, viewerID, postIDs)
		if err != nil {
			fs.metrics.ObserveComposeError("viewer_throws")
			log.WithError(err).Warn("Failed to load viewer throws")
		} else {
			for i := range items {
				items[i].HasViewerThrown = thrown[items[i].Post.ID]
			}
		}
	}

	elapsed := fs.now().Sub(start)
	fs.metrics.ObserveCompose(elapsed)
	if elapsed > fs.SlowThreshold && fs.events != nil {
		fs.events.LogEvent(ctx, viewerID, "slow_feed_load", map[string]interface{}{
			"duration_ms": elapsed.Milliseconds(),
		})
	}

	return items, nil
}

// uniqueThrows concatenates the throw lists keeping the first occurrence of each id
func uniqueThrows(lists ...[]models.Throw) []models.Throw {
	seen := make(map[uuid.UUID]bool)
	var out []models.Throw
	for _, list := range lists {
		for _, t := range list {
			if seen[t.ID] {
				continue
			}
			seen[t.ID] = true
			out = append(out, t)
		}
	}
	return out
}

// merge folds throws into the regular posts by post id and sorts the result newest
// first. Entries without a resolvable post or author are dropped.
func merge(posts []models.Post, throws []models.Throw) []FeedItem {
	items := make([]FeedItem, 0, len(posts)+len(throws))
	index := make(map[uuid.UUID]int, len(posts)+len(throws))

	for _, p := range posts {
		if p.Author == nil {
			continue
		}
		if _, ok := index[p.ID]; ok {
			continue
		}
		index[p.ID] = len(items)
		items = append(items, newItem(p))
	}

	for _, t := range throws {
		if t.Post == nil || t.Post.Author == nil || t.Thrower == nil {
			continue
		}
		data := ThrowData{
			ThrowID:     t.ID,
			Thrower:     *t.Thrower,
			RecipientID: t.RecipientID,
			Message:     t.Message,
			IsPublic:    t.IsPublic,
		}

		if i, ok := index[t.PostID]; ok {
			item := &items[i]
			if !hasThrower(item.ThrownBy, t.ThrowerID) {
				item.ThrownBy = append(item.ThrownBy, *t.Thrower)
			}
			item.ThrowData = append(item.ThrowData, data)
			continue
		}

		item := newItem(*t.Post)
		throwID := t.ID
		item.ThrowID = &throwID
		item.ThrownBy = []models.Profile{*t.Thrower}
		item.ThrowData = []ThrowData{data}
		index[t.PostID] = len(items)
		items = append(items, item)
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].CreatedAt().After(items[j].CreatedAt())
	})

	return items
}

func newItem(p models.Post) FeedItem {
	author := *p.Author
	p.Author = nil
	return FeedItem{
		Post:      p,
		Author:    author,
		ThrownBy:  []models.Profile{},
		ThrowData: []ThrowData{},
	}
}

func hasThrower(profiles []models.Profile, id uuid.UUID) bool {
	for _, p := range profiles {
		if p.ID == id {
			return true
		}
	}
	return false
}

// ApplyThrow returns a copy of items with HasViewerThrown set on postID. Callers
// apply it only after a throw was persisted.
func ApplyThrow(items []FeedItem, postID uuid.UUID) []FeedItem {
	out := make([]FeedItem, len(items))
	copy(out, items)
	for i := range out {
		if out[i].Post.ID == postID {
			out[i].HasViewerThrown = true
		}
	}
	return out
}
