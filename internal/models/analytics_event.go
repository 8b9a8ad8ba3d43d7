package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AnalyticsEvent is a product analytics record
type AnalyticsEvent struct {
	ID        uuid.UUID         `json:"id" gorm:"primaryKey;type:uuid"`
	UserID    uuid.UUID         `json:"user_id" gorm:"type:uuid;not null;index"`
	EventName string            `json:"event_name" gorm:"not null;index"`
	Metadata  datatypes.JSONMap `json:"metadata"`
	CreatedAt time.Time         `json:"created_at" gorm:"autoCreateTime;index"`

	// Relationships
	Profile *Profile `json:"profile,omitempty" gorm:"foreignKey:UserID;references:ID"`
}

// TableName sets the table name for the AnalyticsEvent model
func (AnalyticsEvent) TableName() string {
	return "analytics_events"
}

func (e *AnalyticsEvent) BeforeCreate(tx *gorm.DB) error {
	assignID(&e.ID)
	return nil
}
