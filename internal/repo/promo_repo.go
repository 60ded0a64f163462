// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the PromoCode
// model.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/mkovtun/go-exchange-backend/internal/domain"
)

// CreatePromoCode inserts a new promo code row. A code collision yields
// ErrDuplicate so the caller can regenerate.
func CreatePromoCode(ctx context.Context, db *gorm.DB, pc *domain.PromoCode) error {
	if err := db.WithContext(ctx).Create(pc).Error; err != nil {
		return asDuplicate(err)
	}
	return nil
}

// GetPromoCode fetches a promo code by primary key with owner and creator
// preloaded, or ErrNotFound.
func GetPromoCode(ctx context.Context, db *gorm.DB, id string) (*domain.PromoCode, error) {
	var pc domain.PromoCode
	err := db.WithContext(ctx).
		Preload("User").
		Preload("Creator").
		Where("id = ?", id).
		First(&pc).Error
	if err != nil {
		return nil, err
	}
	return &pc, nil
}

// GetActivePromoCodeByCode fetches an unused, unexpired promo code by its
// code value, or ErrNotFound. Code matching is exact; callers normalize case.
func GetActivePromoCodeByCode(ctx context.Context, db *gorm.DB, code string, now time.Time) (*domain.PromoCode, error) {
	var pc domain.PromoCode
	err := db.WithContext(ctx).
		Where("code = ? AND is_used = ? AND expires_at > ?", code, false, now).
		First(&pc).Error
	if err != nil {
		return nil, err
	}
	return &pc, nil
}

// ListUserPromoCodes returns the user's unused, unexpired codes, newest first.
func ListUserPromoCodes(ctx context.Context, db *gorm.DB, userID string, now time.Time) ([]domain.PromoCode, error) {
	var out []domain.PromoCode
	err := db.WithContext(ctx).
		Where("user_id = ? AND is_used = ? AND expires_at > ?", userID, false, now).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// promoFilter composes the admin list filters: a search term matching the
// code or the owning user's name/email/nickname, and a status bucket
// (active|used|expired).
func promoFilter(q *gorm.DB, db *gorm.DB, search, status string, now time.Time) *gorm.DB {
	if search != "" {
		like := "%" + search + "%"
		owners := db.Model(&domain.User{}).
			Select("id").
			Where("name LIKE ? OR email LIKE ? OR nickname LIKE ?", like, like, like)
		q = q.Where("code LIKE ? OR user_id IN (?)", like, owners)
	}
	switch status {
	case "active":
		q = q.Where("is_used = ? AND expires_at > ?", false, now)
	case "used":
		q = q.Where("is_used = ?", true)
	case "expired":
		q = q.Where("is_used = ? AND expires_at < ?", false, now)
	}
	return q
}

// CountPromoCodes returns the number of codes matching the admin filters.
func CountPromoCodes(ctx context.Context, db *gorm.DB, search, status string, now time.Time) (int64, error) {
	var total int64
	err := promoFilter(db.WithContext(ctx).Model(&domain.PromoCode{}), db, search, status, now).
		Count(&total).Error
	return total, err
}

// ListPromoCodesPage returns a page of codes matching the admin filters with
// owner and creator preloaded, newest first.
func ListPromoCodesPage(ctx context.Context, db *gorm.DB, search, status string, now time.Time, offset, limit int) ([]domain.PromoCode, error) {
	var out []domain.PromoCode
	err := promoFilter(db.WithContext(ctx), db, search, status, now).
		Preload("User").
		Preload("Creator").
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// DeletePromoCode removes an unused code. The is_used guard enforces the
// "used codes are never deleted" invariant at the store level; deleting a
// used or missing code returns ErrNotFound and the caller disambiguates.
func DeletePromoCode(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).
		Where("id = ? AND is_used = ?", id, false).
		Delete(&domain.PromoCode{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkPromoCodeUsed flags a code as consumed by an order. Conditional on
// is_used=false so a code can be spent at most once even under concurrent
// validation.
func MarkPromoCodeUsed(ctx context.Context, db *gorm.DB, id, orderID string, now time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.PromoCode{}).
		Where("id = ? AND is_used = ?", id, false).
		Updates(map[string]any{
			"is_used":          true,
			"used_at":          now,
			"used_in_order_id": orderID,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
