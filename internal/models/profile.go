package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ThrowPrivacy controls who may throw posts to a profile
type ThrowPrivacy string

const (
	ThrowPrivacyMutualsOnly ThrowPrivacy = "mutuals_only"
	ThrowPrivacyFollowers   ThrowPrivacy = "followers"
	ThrowPrivacyFollowing   ThrowPrivacy = "following"
	ThrowPrivacyOff         ThrowPrivacy = "off"
)

// Valid reports whether p is one of the known settings
func (p ThrowPrivacy) Valid() bool {
	switch p {
	case ThrowPrivacyMutualsOnly, ThrowPrivacyFollowers, ThrowPrivacyFollowing, ThrowPrivacyOff:
		return true
	}
	return false
}

// Profile represents a user account. The ID is the identity provider's user id.
type Profile struct {
	ID           uuid.UUID    `json:"id" gorm:"primaryKey;type:uuid"`
	Name         string       `json:"name" gorm:"not null"`
	AvatarURL    *string      `json:"avatar_url"`
	Bio          string       `json:"bio" gorm:"type:text"`
	InviteCode   *string      `json:"invite_code,omitempty"`
	ThrowPrivacy ThrowPrivacy `json:"throw_privacy" gorm:"type:varchar(16);not null;default:'mutuals_only'"`
	IsAdmin      bool         `json:"is_admin" gorm:"default:false"`
	CreatedAt    time.Time    `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time    `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName sets the table name for the Profile model
func (Profile) TableName() string {
	return "profiles"
}

func (p *Profile) BeforeCreate(tx *gorm.DB) error {
	assignID(&p.ID)
	if p.ThrowPrivacy == "" {
		p.ThrowPrivacy = ThrowPrivacyMutualsOnly
	}
	return nil
}
