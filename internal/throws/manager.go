// Package throws records directed shares of posts between mutual connections
package throws

import (
	"context"
	"errors"
	"fmt"

	"steadystream/internal/metrics"
	"steadystream/internal/models"
	"steadystream/internal/realtime"
	"steadystream/internal/sanitize"
	"steadystream/internal/store"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	// ErrDuplicateThrow means the thrower already shared this post with this recipient.
	// It is informational, not a failure.
	ErrDuplicateThrow = errors.New("post already thrown to this recipient")
	// ErrMessageTooLong is returned for messages over models.MaxThrowMessageLength characters
	ErrMessageTooLong = fmt.Errorf("message exceeds %d characters", models.MaxThrowMessageLength)
	// ErrMarkup is returned for messages containing HTML elements
	ErrMarkup = sanitize.ErrMarkup
	// ErrInvalidRecipient is returned when a user throws to themselves
	ErrInvalidRecipient = errors.New("cannot throw a post to yourself")
	// ErrPostNotFound is returned when the post does not exist
	ErrPostNotFound = errors.New("post not found")
	// ErrRecipientNotFound is returned when the recipient has no profile
	ErrRecipientNotFound = errors.New("recipient not found")
	// ErrThrowsDisabled is returned when the recipient turned throws off
	ErrThrowsDisabled = errors.New("recipient does not accept throws")
	// ErrNotMutual is returned when thrower and recipient do not follow each other
	ErrNotMutual = errors.New("throws are limited to mutual connections")
)

// PersistError is a non-duplicate failure to store a throw
type PersistError struct {
	Err error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("failed to persist throw: %v", e.Err)
}

func (e *PersistError) Unwrap() error {
	return e.Err
}

// Store is the persistence the manager needs
type Store interface {
	GetPost(ctx context.Context, postID uuid.UUID) (*models.Post, error)
	GetProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error)
	ProfilesByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Profile, error)
	IsMutual(ctx context.Context, a, b uuid.UUID) (bool, error)
	MutualIDs(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	FindThrow(ctx context.Context, postID, throwerID, recipientID uuid.UUID) (*models.Throw, error)
	InsertThrow(ctx context.Context, t *models.Throw) error
	HasThrown(ctx context.Context, postID, throwerID uuid.UUID) (bool, error)
	ThrowsByThrower(ctx context.Context, throwerID uuid.UUID) ([]models.Throw, error)
	ThrowsToRecipient(ctx context.Context, recipientID uuid.UUID) ([]models.Throw, error)
	MarkThrowsRead(ctx context.Context, recipientID uuid.UUID, throwIDs []uuid.UUID) (int64, error)
}

// EventLogger records product analytics events
type EventLogger interface {
	LogEvent(ctx context.Context, userID uuid.UUID, name string, metadata map[string]interface{})
}

// SendRequest describes a throw to send
type SendRequest struct {
	PostID      uuid.UUID
	ThrowerID   uuid.UUID
	RecipientID uuid.UUID
	Message     string
	IsPublic    bool
}

// Manager sends throws and answers throw queries
type Manager struct {
	store     Store
	publisher realtime.Publisher
	events    EventLogger
	metrics   *metrics.Metrics
	log       logrus.FieldLogger
}

// NewManager creates a throw manager. publisher, events and m may be nil.
func NewManager(st Store, publisher realtime.Publisher, events EventLogger, m *metrics.Metrics, log logrus.FieldLogger) *Manager {
	if publisher == nil {
		publisher = realtime.NopPublisher{}
	}
	return &Manager{
		store:     st,
		publisher: publisher,
		events:    events,
		metrics:   m,
		log:       log,
	}
}

// NormalizeMessage trims a message and checks it is plain text within the length limit
func NormalizeMessage(message string) (string, error) {
	message, err := sanitize.PlainText(message)
	if err != nil {
		return "", err
	}
	if sanitize.Length(message) > models.MaxThrowMessageLength {
		return "", ErrMessageTooLong
	}
	return message, nil
}

// SendThrow shares a post with a mutual connection. A throw without a message is
// always private. Sending the same (post, thrower, recipient) twice returns
// ErrDuplicateThrow, including when two sends race past the existence check.
func (m *Manager) SendThrow(ctx context.Context, req SendRequest) (*models.Throw, error) {
	message, err := NormalizeMessage(req.Message)
	if err != nil {
		return nil, err
	}

	if req.ThrowerID == req.RecipientID {
		return nil, ErrInvalidRecipient
	}

	post, err := m.store.GetPost(ctx, req.PostID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrPostNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load post: %w", err)
	}

	recipient, err := m.store.GetProfile(ctx, req.RecipientID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrRecipientNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load recipient: %w", err)
	}
	if recipient.ThrowPrivacy == models.ThrowPrivacyOff {
		return nil, ErrThrowsDisabled
	}

	mutual, err := m.store.IsMutual(ctx, req.ThrowerID, req.RecipientID)
	if err != nil {
		return nil, fmt.Errorf("failed to check connection: %w", err)
	}
	if !mutual {
		return nil, ErrNotMutual
	}

	log := m.log.WithFields(logrus.Fields{
		"post_id":      req.PostID,
		"thrower_id":   req.ThrowerID,
		"recipient_id": req.RecipientID,
	})

	existing, err := m.store.FindThrow(ctx, req.PostID, req.ThrowerID, req.RecipientID)
	switch {
	case err == nil && existing != nil:
		m.metrics.ObserveDuplicateThrow()
		return nil, ErrDuplicateThrow
	case err != nil && !errors.Is(err, store.ErrNotFound):
		// the unique index still guards the insert
		log.WithError(err).Warn("Duplicate throw check failed")
	}

	throw := models.NewThrow(post, req.ThrowerID, req.RecipientID, message, req.IsPublic)
	if err := m.store.InsertThrow(ctx, throw); err != nil {
		if errors.Is(err, store.ErrDuplicateThrow) {
			m.metrics.ObserveDuplicateThrow()
			return nil, ErrDuplicateThrow
		}
		log.WithError(err).Error("Failed to insert throw")
		return nil, &PersistError{Err: err}
	}

	throw.Post = post
	m.afterSend(ctx, throw, log)

	return throw, nil
}

func (m *Manager) afterSend(ctx context.Context, t *models.Throw, log logrus.FieldLogger) {
	err := m.publisher.Publish(ctx, realtime.Event{
		Type:        realtime.EventThrowInserted,
		ThrowID:     t.ID,
		PostID:      t.PostID,
		ThrowerID:   t.ThrowerID,
		RecipientID: t.RecipientID,
	})
	if err != nil {
		log.WithError(err).Warn("Failed to publish throw event")
	}

	m.metrics.ObserveThrow(t.HasMessage())

	if m.events != nil {
		name := "throw"
		if t.HasMessage() {
			name = "throw_with_message"
		}
		m.events.LogEvent(ctx, t.ThrowerID, name, map[string]interface{}{
			"post_id":      t.PostID.String(),
			"recipient_id": t.RecipientID.String(),
			"is_public":    t.IsPublic,
		})
	}

	log.WithField("throw_id", t.ID).Info("Throw sent")
}

// HasThrown reports whether viewerID has thrown postID to anyone
func (m *Manager) HasThrown(ctx context.Context, postID, viewerID uuid.UUID) (bool, error) {
	thrown, err := m.store.HasThrown(ctx, postID, viewerID)
	if err != nil {
		return false, fmt.Errorf("failed to check throw: %w", err)
	}
	return thrown, nil
}

// Recipients lists the mutual connections of throwerID that accept throws
func (m *Manager) Recipients(ctx context.Context, throwerID uuid.UUID) ([]models.Profile, error) {
	ids, err := m.store.MutualIDs(ctx, throwerID)
	if err != nil {
		return nil, fmt.Errorf("failed to load mutuals: %w", err)
	}

	profiles, err := m.store.ProfilesByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load profiles: %w", err)
	}

	recipients := make([]models.Profile, 0, len(profiles))
	for _, p := range profiles {
		if p.ThrowPrivacy != models.ThrowPrivacyOff {
			recipients = append(recipients, p)
		}
	}
	return recipients, nil
}

// Sent returns the throws userID has sent, newest first
func (m *Manager) Sent(ctx context.Context, userID uuid.UUID) ([]models.Throw, error) {
	throws, err := m.store.ThrowsByThrower(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load sent throws: %w", err)
	}
	return throws, nil
}

// Received returns the throws addressed to userID, newest first
func (m *Manager) Received(ctx context.Context, userID uuid.UUID) ([]models.Throw, error) {
	throws, err := m.store.ThrowsToRecipient(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load received throws: %w", err)
	}
	return throws, nil
}

// MarkRead flags throws addressed to recipientID as read and returns how many changed
func (m *Manager) MarkRead(ctx context.Context, recipientID uuid.UUID, throwIDs []uuid.UUID) (int64, error) {
	n, err := m.store.MarkThrowsRead(ctx, recipientID, throwIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to mark throws read: %w", err)
	}
	return n, nil
}
