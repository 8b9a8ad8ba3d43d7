package services

import (
	"context"
	"fmt"
	"time"

	"steadystream/internal/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	activeUsersWindow  = 7 * 24 * time.Hour
	recentEventsLimit  = 100
	DefaultEventMaxAge = 90 * 24 * time.Hour
)

// AnalyticsService records product events. Logging never fails the caller.
type AnalyticsService struct {
	db      *gorm.DB
	enabled bool
	log     logrus.FieldLogger
	now     func() time.Time
}

// NewAnalyticsService creates a new AnalyticsService. When enabled is false
// LogEvent does nothing.
func NewAnalyticsService(db *gorm.DB, enabled bool, log logrus.FieldLogger) *AnalyticsService {
	return &AnalyticsService{db: db, enabled: enabled, log: log, now: time.Now}
}

// LogEvent stores an analytics event for userID. Safe to call on a nil service.
func (s *AnalyticsService) LogEvent(ctx context.Context, userID uuid.UUID, name string, metadata map[string]interface{}) {
	if s == nil || !s.enabled {
		return
	}

	event := &models.AnalyticsEvent{
		UserID:    userID,
		EventName: name,
		Metadata:  datatypes.JSONMap(metadata),
	}
	if err := s.db.WithContext(ctx).Omit("Profile").Create(event).Error; err != nil {
		s.log.WithError(err).WithField("event", name).Warn("Failed to log analytics event")
	}
}

// RecentEvent is an analytics event joined with its user's name
type RecentEvent struct {
	ID          uuid.UUID         `json:"id"`
	UserID      uuid.UUID         `json:"user_id"`
	ProfileName string            `json:"profile_name"`
	EventName   string            `json:"event_name"`
	Metadata    datatypes.JSONMap `json:"metadata"`
	CreatedAt   time.Time         `json:"created_at"`
}

// AnalyticsSummary is the admin dashboard overview
type AnalyticsSummary struct {
	TotalProfiles int64            `json:"total_profiles"`
	ActiveUsers   int64            `json:"active_users_7d"`
	EventsByName  map[string]int64 `json:"events_by_name"`
	RecentEvents  []RecentEvent    `json:"recent_events"`
}

// Summary aggregates totals for the admin dashboard
func (s *AnalyticsService) Summary(ctx context.Context) (*AnalyticsSummary, error) {
	db := s.db.WithContext(ctx)
	summary := &AnalyticsSummary{EventsByName: make(map[string]int64)}

	if err := db.Model(&models.Profile{}).Count(&summary.TotalProfiles).Error; err != nil {
		return nil, fmt.Errorf("failed to count profiles: %w", err)
	}

	var counts []struct {
		EventName string
		Count     int64
	}
	err := db.Model(&models.AnalyticsEvent{}).
		Select("event_name, COUNT(*) AS count").
		Group("event_name").
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count events: %w", err)
	}
	for _, c := range counts {
		summary.EventsByName[c.EventName] = c.Count
	}

	since := s.now().Add(-activeUsersWindow)
	err = db.Model(&models.AnalyticsEvent{}).
		Where("created_at >= ?", since).
		Distinct("user_id").
		Count(&summary.ActiveUsers).Error
	if err != nil {
		return nil, fmt.Errorf("failed to count active users: %w", err)
	}

	var events []models.AnalyticsEvent
	err = db.Preload("Profile").
		Order("created_at DESC").
		Limit(recentEventsLimit).
		Find(&events).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load recent events: %w", err)
	}

	summary.RecentEvents = make([]RecentEvent, len(events))
	for i, e := range events {
		name := "Unknown"
		if e.Profile != nil {
			name = e.Profile.Name
		}
		summary.RecentEvents[i] = RecentEvent{
			ID:          e.ID,
			UserID:      e.UserID,
			ProfileName: name,
			EventName:   e.EventName,
			Metadata:    e.Metadata,
			CreatedAt:   e.CreatedAt,
		}
	}

	return summary, nil
}

// Prune deletes events older than maxAge and returns how many were removed
func (s *AnalyticsService) Prune(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := s.now().Add(-maxAge)
	result := s.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&models.AnalyticsEvent{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to prune analytics events: %w", result.Error)
	}
	return result.RowsAffected, nil
}
