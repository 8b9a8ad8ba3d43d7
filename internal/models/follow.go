package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Follow is a directed edge: FollowerID follows FollowingID
type Follow struct {
	ID          uuid.UUID `json:"id" gorm:"primaryKey;type:uuid"`
	FollowerID  uuid.UUID `json:"follower_id" gorm:"type:uuid;not null;uniqueIndex:idx_follows_pair;index"`
	FollowingID uuid.UUID `json:"following_id" gorm:"type:uuid;not null;uniqueIndex:idx_follows_pair;index"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`

	// Relationships
	Follower  *Profile `json:"follower,omitempty" gorm:"foreignKey:FollowerID;references:ID"`
	Following *Profile `json:"following,omitempty" gorm:"foreignKey:FollowingID;references:ID"`
}

// TableName sets the table name for the Follow model
func (Follow) TableName() string {
	return "follows"
}

func (f *Follow) BeforeCreate(tx *gorm.DB) error {
	assignID(&f.ID)
	return nil
}
