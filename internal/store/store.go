// Package store implements the relational queries the feed and throw logic run
// against. Driver-specific errors are translated here; callers only see the
// sentinel errors declared below.
package store

import (
	"context"
	"errors"
	"strings"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when a lookup matches no row
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateThrow is returned when a (post, thrower, recipient) throw already exists
	ErrDuplicateThrow = errors.New("duplicate throw")
	// ErrDuplicateFollow is returned when the follow edge already exists
	ErrDuplicateFollow = errors.New("duplicate follow")
)

// Store wraps a GORM connection
type Store struct {
	db *gorm.DB
}

// New creates a store over db. db should be opened with TranslateError enabled.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying connection for services that build their own queries
func (s *Store) DB() *gorm.DB {
	return s.db
}

func (s *Store) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

// isUniqueViolation matches translated GORM errors first, then the raw lib/pq and
// sqlite forms for connections opened without translation.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}
