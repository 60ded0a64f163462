// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the legacy
// IntakeForm model.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/mkovtun/go-exchange-backend/internal/domain"
)

// CreateIntakeForm inserts a legacy intake form row.
func CreateIntakeForm(ctx context.Context, db *gorm.DB, f *domain.IntakeForm) error {
	return db.WithContext(ctx).Create(f).Error
}

// ListIntakeForms returns all intake forms, newest first.
func ListIntakeForms(ctx context.Context, db *gorm.DB) ([]domain.IntakeForm, error) {
	var out []domain.IntakeForm
	err := db.WithContext(ctx).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// MarkFormNotified records a confirmed Telegram delivery for an intake form.
func MarkFormNotified(ctx context.Context, db *gorm.DB, id string, messageID int, at time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.IntakeForm{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"sent_to_telegram":    true,
			"telegram_message_id": messageID,
			"telegram_sent_at":    at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
