package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"steadystream/internal/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const (
	inviteCodeLength   = 8
	inviteCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	inviteCodeAttempts = 5
)

var (
	ErrInvalidInvite    = errors.New("invalid or expired invite code")
	ErrInvitesDisabled  = errors.New("invites are disabled")
	ErrInviteCodeExists = errors.New("could not allocate a unique invite code")
)

// InviteSummary counts a member's invites
type InviteSummary struct {
	TotalInvites     int64 `json:"total_invites"`
	AvailableInvites int64 `json:"available_invites"`
}

// InviteService generates and redeems signup codes
type InviteService struct {
	db      *gorm.DB
	enabled bool
	log     logrus.FieldLogger
	now     func() time.Time
}

// NewInviteService creates a new InviteService
func NewInviteService(db *gorm.DB, enabled bool, log logrus.FieldLogger) *InviteService {
	return &InviteService{db: db, enabled: enabled, log: log, now: time.Now}
}

// Enabled reports whether the invite feature is on
func (s *InviteService) Enabled() bool {
	return s != nil && s.enabled
}

// Generate creates a new active code owned by userID
func (s *InviteService) Generate(ctx context.Context, userID uuid.UUID) (*models.Invite, error) {
	if !s.Enabled() {
		return nil, ErrInvitesDisabled
	}

	for attempt := 0; attempt < inviteCodeAttempts; attempt++ {
		code, err := newInviteCode()
		if err != nil {
			return nil, fmt.Errorf("failed to generate invite code: %w", err)
		}

		invite := &models.Invite{
			Code:      code,
			CreatedBy: userID,
			MaxUses:   models.DefaultInviteMaxUses,
			Active:    true,
		}
		err = s.db.WithContext(ctx).Create(invite).Error
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to create invite: %w", err)
		}

		s.log.WithFields(logrus.Fields{"user_id": userID, "code": code}).Info("Invite generated")
		return invite, nil
	}

	return nil, ErrInviteCodeExists
}

func newInviteCode() (string, error) {
	var b strings.Builder
	limit := big.NewInt(int64(len(inviteCodeAlphabet)))
	for i := 0; i < inviteCodeLength; i++ {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		b.WriteByte(inviteCodeAlphabet[n.Int64()])
	}
	return b.String(), nil
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate returns the invite for code if it can still be redeemed
func (s *InviteService) Validate(ctx context.Context, code string) (*models.Invite, error) {
	var invite models.Invite
	err := s.db.WithContext(ctx).Where("code = ?", normalizeCode(code)).First(&invite).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrInvalidInvite
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load invite: %w", err)
	}

	if !invite.Usable(s.now()) {
		return nil, ErrInvalidInvite
	}
	return &invite, nil
}

// Redeem consumes one use of code
func (s *InviteService) Redeem(ctx context.Context, code string) error {
	return s.redeem(s.db.WithContext(ctx), code)
}

// redeem increments used_count only while uses remain, so concurrent signups
// cannot overdraw a code
func (s *InviteService) redeem(tx *gorm.DB, code string) error {
	result := tx.Model(&models.Invite{}).
		Where("code = ? AND active = ? AND used_count < max_uses", normalizeCode(code), true).
		Where("expires_at IS NULL OR expires_at > ?", s.now()).
		Update("used_count", gorm.Expr("used_count + 1"))
	if result.Error != nil {
		return fmt.Errorf("failed to redeem invite: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrInvalidInvite
	}
	return nil
}

// List returns the invites created by userID, newest first
func (s *InviteService) List(ctx context.Context, userID uuid.UUID) ([]models.Invite, error) {
	var invites []models.Invite
	err := s.db.WithContext(ctx).
		Where("created_by = ?", userID).
		Order("created_at DESC").
		Find(&invites).Error
	return invites, err
}

// Summary counts userID's invites and the signups they still allow
func (s *InviteService) Summary(ctx context.Context, userID uuid.UUID) (*InviteSummary, error) {
	invites, err := s.List(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load invites: %w", err)
	}

	summary := &InviteSummary{TotalInvites: int64(len(invites))}
	now := s.now()
	for _, invite := range invites {
		if invite.Usable(now) {
			summary.AvailableInvites += int64(invite.MaxUses - invite.UsedCount)
		}
	}
	return summary, nil
}

// ExpireStale deactivates active invites whose expiry has passed
func (s *InviteService) ExpireStale(ctx context.Context) (int64, error) {
	result := s.db.WithContext(ctx).Model(&models.Invite{}).
		Where("active = ? AND expires_at IS NOT NULL AND expires_at <= ?", true, s.now()).
		Update("active", false)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to expire invites: %w", result.Error)
	}
	return result.RowsAffected, nil
}
