package main

import (
	"errors"
	"flag"
	"fmt"
	"time"

	"steadystream/internal/auth"
	"steadystream/internal/config"
	"steadystream/internal/database"
	"steadystream/internal/logging"
	"steadystream/internal/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// demoUser ids are fixed so reseeding is idempotent and tokens stay valid
type demoUser struct {
	id      uuid.UUID
	name    string
	bio     string
	isAdmin bool
}

var demoUsers = []demoUser{
	{uuid.MustParse("00000000-0000-4000-8000-000000000001"), "Ada", "Film cameras and long walks", true},
	{uuid.MustParse("00000000-0000-4000-8000-000000000002"), "Ben", "Mostly bread", false},
	{uuid.MustParse("00000000-0000-4000-8000-000000000003"), "Cleo", "Hills, lakes, the occasional goat", false},
}

// follows as [follower, following] index pairs; Ada and Ben are mutual
var demoFollows = [][2]int{{0, 1}, {1, 0}, {0, 2}, {2, 1}}

func main() {
	tokenTTL := flag.Duration("token-ttl", 24*time.Hour, "Lifetime of the printed demo tokens")
	flag.Parse()

	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Connect(cfg.Database, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to database")
	}
	defer database.Close(db)

	if err := database.Migrate(db, log); err != nil {
		log.WithError(err).Fatal("Failed to run migrations")
	}

	if err := seed(db, log); err != nil {
		log.WithError(err).Fatal("Seeding failed")
	}
	log.Info("Database seeding completed")

	if cfg.JWTSecret == "" {
		log.Warn("JWT_SECRET not set, skipping demo tokens")
		return
	}

	verifier := auth.NewJWTVerifier(cfg.JWTSecret, log)
	fmt.Println("Demo tokens:")
	for _, u := range demoUsers {
		token, err := verifier.IssueToken(u.id, *tokenTTL)
		if err != nil {
			log.WithError(err).Fatal("Failed to issue token")
		}
		fmt.Printf("  %-5s %s\n", u.name, token)
	}
}

func seed(db *gorm.DB, log logrus.FieldLogger) error {
	now := time.Now()

	for i, u := range demoUsers {
		profile := models.Profile{ID: u.id, Name: u.name, Bio: u.bio, IsAdmin: u.isAdmin}
		if err := db.Where(models.Profile{ID: u.id}).FirstOrCreate(&profile).Error; err != nil {
			return fmt.Errorf("failed to seed profile %s: %w", u.name, err)
		}

		var count int64
		if err := db.Model(&models.Post{}).Where("user_id = ?", u.id).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		post := models.Post{
			UserID:    u.id,
			ImageURL:  fmt.Sprintf("https://picsum.photos/seed/steadystream-%d/800/800", i),
			Caption:   "First post from " + u.name,
			CreatedAt: now.Add(-time.Duration(i) * time.Hour),
		}
		if err := db.Omit("Author").Create(&post).Error; err != nil {
			return fmt.Errorf("failed to seed post for %s: %w", u.name, err)
		}
	}

	for _, pair := range demoFollows {
		follow := models.Follow{
			FollowerID:  demoUsers[pair[0]].id,
			FollowingID: demoUsers[pair[1]].id,
		}
		err := db.Create(&follow).Error
		if err != nil && !errors.Is(err, gorm.ErrDuplicatedKey) {
			return fmt.Errorf("failed to seed follow: %w", err)
		}
	}

	log.WithField("profiles", len(demoUsers)).Info("Seeded demo profiles, posts and follows")
	return nil
}
