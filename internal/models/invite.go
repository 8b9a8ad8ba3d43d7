package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultInviteMaxUses is how many signups a generated invite code allows
const DefaultInviteMaxUses = 5

// Invite is a signup code created by an existing member
type Invite struct {
	ID        uuid.UUID  `json:"id" gorm:"primaryKey;type:uuid"`
	Code      string     `json:"code" gorm:"uniqueIndex;not null"`
	CreatedBy uuid.UUID  `json:"created_by" gorm:"type:uuid;not null;index"`
	MaxUses   int        `json:"max_uses" gorm:"not null;default:5"`
	UsedCount int        `json:"used_count" gorm:"not null;default:0"`
	Active    bool       `json:"active" gorm:"not null;default:true"`
	ExpiresAt *time.Time `json:"expires_at"`
	CreatedAt time.Time  `json:"created_at" gorm:"autoCreateTime"`
}

// TableName sets the table name for the Invite model
func (Invite) TableName() string {
	return "invites"
}

func (i *Invite) BeforeCreate(tx *gorm.DB) error {
	assignID(&i.ID)
	return nil
}

// Usable reports whether the invite can still be redeemed at now
func (i *Invite) Usable(now time.Time) bool {
	if !i.Active {
		return false
	}
	if i.ExpiresAt != nil && i.ExpiresAt.Before(now) {
		return false
	}
	return i.UsedCount < i.MaxUses
}
