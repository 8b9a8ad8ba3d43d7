package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// MaxThrowMessageLength is the maximum number of characters in a throw message
const MaxThrowMessageLength = 200

// Throw is a directed share of a post from one user to another
type Throw struct {
	ID          uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	PostID      uuid.UUID `json:"post_id" gorm:"type:uuid;not null;uniqueIndex:idx_throws_unique"`
	ThrowerID   uuid.UUID `json:"thrower_id" gorm:"type:uuid;not null;uniqueIndex:idx_throws_unique;index"`
	RecipientID uuid.UUID `json:"recipient_id" gorm:"type:uuid;not null;uniqueIndex:idx_throws_unique;index"`
	// PostOwnerID is the post's UserID at send time. Post ownership is immutable,
	// so this never drifts from the post.
	PostOwnerID uuid.UUID `json:"post_owner_id" gorm:"type:uuid;not null;index"`
	Message     *string   `json:"message" gorm:"size:200"`
	IsPublic    bool      `json:"is_public" gorm:"default:false"`
	IsRead      bool      `json:"is_read" gorm:"default:false"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`

	// Relationships
	Post    *Post    `json:"post,omitempty" gorm:"foreignKey:PostID;references:ID"`
	Thrower *Profile `json:"thrower,omitempty" gorm:"foreignKey:ThrowerID;references:ID"`
}

// TableName sets the table name for the Throw model
func (Throw) TableName() string {
	return "throws"
}

// NewThrow builds a throw of post from thrower to recipient. The post owner is
// taken from the post and a throw without a message is always private.
func NewThrow(post *Post, throwerID, recipientID uuid.UUID, message string, isPublic bool) *Throw {
	t := &Throw{
		ID:          uuid.New(),
		PostID:      post.ID,
		ThrowerID:   throwerID,
		RecipientID: recipientID,
		PostOwnerID: post.UserID,
	}

	message = strings.TrimSpace(message)
	if message != "" {
		t.Message = &message
		t.IsPublic = isPublic
	}

	return t
}

// HasMessage reports whether the throw carries a non-blank message
func (t *Throw) HasMessage() bool {
	return t.Message != nil && strings.TrimSpace(*t.Message) != ""
}

func (t *Throw) BeforeCreate(tx *gorm.DB) error {
	assignID(&t.ID)
	if !t.HasMessage() {
		t.Message = nil
		t.IsPublic = false
	}
	return nil
}
