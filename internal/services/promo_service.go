// Package services – PromoService
//
// Promo codes grant a user a one-shot percentage discount. Codes are
// generated from an unambiguous alphabet (no 0/O/1/I), expire 30 days after
// issuance by default, and are never deleted once spent.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jaevor/go-nanoid"
	"gorm.io/gorm"

	"github.com/mkovtun/go-exchange-backend/internal/domain"
	"github.com/mkovtun/go-exchange-backend/internal/repo"
)

const (
	// promoAlphabet avoids characters that read ambiguously in screenshots.
	promoAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	promoCodeLen  = 8

	// defaultPromoTTL is applied when the issuer does not pick an expiry.
	defaultPromoTTL = 30 * 24 * time.Hour

	codeAttempts = 5
)

// PromoRepo defines the repository contract required by PromoService.
type PromoRepo interface {
	CreatePromoCode(ctx context.Context, db *gorm.DB, pc *domain.PromoCode) error
	GetPromoCode(ctx context.Context, db *gorm.DB, id string) (*domain.PromoCode, error)
	GetActivePromoCodeByCode(ctx context.Context, db *gorm.DB, code string, now time.Time) (*domain.PromoCode, error)
	ListUserPromoCodes(ctx context.Context, db *gorm.DB, userID string, now time.Time) ([]domain.PromoCode, error)
	CountPromoCodes(ctx context.Context, db *gorm.DB, search, status string, now time.Time) (int64, error)
	ListPromoCodesPage(ctx context.Context, db *gorm.DB, search, status string, now time.Time, offset, limit int) ([]domain.PromoCode, error)
	DeletePromoCode(ctx context.Context, db *gorm.DB, id string) error
}

// PromoService provides promo code issuance, validation, and admin listing.
type PromoService struct {
	DB    *gorm.DB
	Repo  PromoRepo
	Users UserRepo

	genCode func() string
	now     func() time.Time
}

// NewPromoService constructs a PromoService.
func NewPromoService(db *gorm.DB, r PromoRepo, users UserRepo) (*PromoService, error) {
	gen, err := nanoid.CustomASCII(promoAlphabet, promoCodeLen)
	if err != nil {
		return nil, fmt.Errorf("promo code generator: %w", err)
	}
	return &PromoService{DB: db, Repo: r, Users: users, genCode: gen, now: time.Now}, nil
}

// Create issues a new code for userID. A nil expiresAt applies the default
// 30-day window. Generated code collisions are retried.
func (s *PromoService) Create(ctx context.Context, userID string, discount float64, expiresAt *time.Time, createdBy string) (*domain.PromoCode, error) {
	if discount < 1 || discount > 100 {
		return nil, ErrInvalidDiscount
	}
	if _, err := s.Users.GetUser(ctx, s.DB, userID); err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	now := s.now().UTC()
	exp := now.Add(defaultPromoTTL)
	if expiresAt != nil {
		if expiresAt.Before(now) {
			return nil, ErrPromoInvalid
		}
		exp = expiresAt.UTC()
	}

	pc := &domain.PromoCode{
		ID:        uuid.NewString(),
		Discount:  discount,
		UserID:    userID,
		CreatedBy: createdBy,
		CreatedAt: now,
		ExpiresAt: exp,
	}
	for i := 0; i < codeAttempts; i++ {
		pc.Code = s.genCode()
		err := s.Repo.CreatePromoCode(ctx, s.DB, pc)
		if err == nil {
			return pc, nil
		}
		if !errors.Is(err, repo.ErrDuplicate) {
			return nil, err
		}
	}
	return nil, errors.New("could not generate a unique promo code")
}

// Validate checks that code is usable by userID and returns it.
// The lookup is case-insensitive on the code.
func (s *PromoService) Validate(ctx context.Context, code, userID string) (*domain.PromoCode, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, ErrPromoInvalid
	}
	pc, err := s.Repo.GetActivePromoCodeByCode(ctx, s.DB, code, s.now().UTC())
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrPromoInvalid
		}
		return nil, err
	}
	if pc.UserID != userID {
		return nil, ErrPromoNotOwned
	}
	return pc, nil
}

// Get returns a code by id.
func (s *PromoService) Get(ctx context.Context, id string) (*domain.PromoCode, error) {
	pc, err := s.Repo.GetPromoCode(ctx, s.DB, id)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrPromoNotFound
		}
		return nil, err
	}
	return pc, nil
}

// ListForUser returns the user's currently usable codes.
func (s *PromoService) ListForUser(ctx context.Context, userID string) ([]domain.PromoCode, error) {
	return s.Repo.ListUserPromoCodes(ctx, s.DB, userID, s.now().UTC())
}

// ListPage returns a page of codes for the admin view, filtered by an
// optional search term and status bucket (active|used|expired).
func (s *PromoService) ListPage(ctx context.Context, search, status string, page, pageSize int) ([]domain.PromoCode, int64, error) {
	switch status {
	case "", "active", "used", "expired":
	default:
		return nil, 0, ErrInvalidStatus
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize
	now := s.now().UTC()

	total, err := s.Repo.CountPromoCodes(ctx, s.DB, search, status, now)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.PromoCode{}, 0, nil
	}
	items, err := s.Repo.ListPromoCodesPage(ctx, s.DB, search, status, now, offset, pageSize)
	return items, total, err
}

// Delete removes an unspent code. Spent codes stay for the audit trail.
func (s *PromoService) Delete(ctx context.Context, id string) error {
	err := s.Repo.DeletePromoCode(ctx, s.DB, id)
	if err == nil {
		return nil
	}
	if !repo.IsNotFound(err) {
		return err
	}
	// The conditional delete refuses both missing and spent codes;
	// disambiguate for the caller.
	pc, getErr := s.Repo.GetPromoCode(ctx, s.DB, id)
	if getErr != nil {
		if repo.IsNotFound(getErr) {
			return ErrPromoNotFound
		}
		return getErr
	}
	if pc.IsUsed {
		return ErrPromoUsed
	}
	return err
}
