// Package realtime delivers "throw inserted" notifications to the open sessions
// of the throw's recipient. Events are recompute triggers; their payload is
// informational only.
package realtime

import (
	"context"

	"github.com/google/uuid"
)

// EventThrowInserted is published after a throw is persisted
const EventThrowInserted = "throw_inserted"

// Event is a change notification addressed to RecipientID
type Event struct {
	Type        string    `json:"type"`
	ThrowID     uuid.UUID `json:"throw_id"`
	PostID      uuid.UUID `json:"post_id"`
	ThrowerID   uuid.UUID `json:"thrower_id"`
	RecipientID uuid.UUID `json:"recipient_id"`
}

// Publisher announces events to subscribers
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Subscriber hands out per-recipient event streams
type Subscriber interface {
	Subscribe(recipientID uuid.UUID) (<-chan Event, func())
}

// Listener feeds events from an external source into the local broker until ctx is done
type Listener interface {
	Run(ctx context.Context) error
}

// NopPublisher discards events. Used when the database trigger is the event source.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
