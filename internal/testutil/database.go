// Package testutil provides an in-memory database and fixtures for package tests
package testutil

import (
	"testing"
	"time"

	"steadystream/internal/models"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SetupTestDB opens a private in-memory SQLite database with every model migrated
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get sql.DB: %v", err)
	}
	// every connection to :memory: is a separate database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	if err := models.AutoMigrate(db); err != nil {
		t.Fatalf("Failed to migrate database: %v", err)
	}

	return db
}

// CreateProfile inserts a profile with the default throw privacy
func CreateProfile(t *testing.T, db *gorm.DB, name string) *models.Profile {
	t.Helper()

	profile := &models.Profile{ID: uuid.New(), Name: name}
	if err := db.Create(profile).Error; err != nil {
		t.Fatalf("Failed to create profile %s: %v", name, err)
	}
	return profile
}

// CreatePost inserts a post by owner created at createdAt
func CreatePost(t *testing.T, db *gorm.DB, owner *models.Profile, caption string, createdAt time.Time) *models.Post {
	t.Helper()

	post := &models.Post{
		UserID:    owner.ID,
		ImageURL:  "https://images.example.com/" + caption + ".jpg",
		Caption:   caption,
		CreatedAt: createdAt,
	}
	if err := db.Create(post).Error; err != nil {
		t.Fatalf("Failed to create post %s: %v", caption, err)
	}
	return post
}

// Follow makes follower follow following
func Follow(t *testing.T, db *gorm.DB, follower, following *models.Profile) {
	t.Helper()

	if err := db.Create(&models.Follow{FollowerID: follower.ID, FollowingID: following.ID}).Error; err != nil {
		t.Fatalf("Failed to create follow %s -> %s: %v", follower.Name, following.Name, err)
	}
}

// Mutual makes a and b follow each other
func Mutual(t *testing.T, db *gorm.DB, a, b *models.Profile) {
	t.Helper()

	Follow(t, db, a, b)
	Follow(t, db, b, a)
}

// CreateThrow inserts a throw of post from thrower to recipient
func CreateThrow(t *testing.T, db *gorm.DB, post *models.Post, thrower, recipient *models.Profile, message string, isPublic bool) *models.Throw {
	t.Helper()

	throw := models.NewThrow(post, thrower.ID, recipient.ID, message, isPublic)
	if err := db.Omit("Post", "Thrower").Create(throw).Error; err != nil {
		t.Fatalf("Failed to create throw: %v", err)
	}
	return throw
}
