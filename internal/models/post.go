package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrPostOwnerImmutable is returned when an update tries to move a post to another owner.
// Throw.PostOwnerID is copied from the post at send time and relies on this.
var ErrPostOwnerImmutable = errors.New("post owner cannot be changed")

// Post is an image with a caption. Posts are immutable once created.
type Post struct {
	ID        uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	UserID    uuid.UUID `json:"user_id" gorm:"type:uuid;not null;index"`
	ImageURL  string    `json:"image_url" gorm:"not null"`
	Caption   string    `json:"caption" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime;index"`

	// Relationships
	Author *Profile `json:"author,omitempty" gorm:"foreignKey:UserID;references:ID"`
}

// TableName sets the table name for the Post model
func (Post) TableName() string {
	return "posts"
}

func (p *Post) BeforeCreate(tx *gorm.DB) error {
	assignID(&p.ID)
	return nil
}

func (p *Post) BeforeUpdate(tx *gorm.DB) error {
	if tx.Statement.Changed("UserID") {
		return ErrPostOwnerImmutable
	}
	return nil
}
