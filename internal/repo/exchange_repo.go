// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// ExchangeRequest model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a request is not found, functions return ErrNotFound.
//   - Unique violations (duplicate order_id) are mapped to ErrDuplicate.
//   - On other DB errors the raw gorm error is propagated.
//
// Concurrency:
//   - CompleteByOrderID and UpdateExchangeStatus are conditional updates; the
//     WHERE clause is the only ordering guarantee between a racing admin
//     status update and a callback-driven completion. RowsAffected tells the
//     caller whether this invocation won the race.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/mkovtun/go-exchange-backend/internal/domain"
)

// CreateExchangeRequest inserts a new request row. The caller supplies a fully
// populated entity (ID, OrderID, economic fields, Status). Duplicate order ids
// yield ErrDuplicate.
func CreateExchangeRequest(ctx context.Context, db *gorm.DB, req *domain.ExchangeRequest) error {
	if err := db.WithContext(ctx).Create(req).Error; err != nil {
		return asDuplicate(err)
	}
	return nil
}

// GetExchangeRequest fetches a request by primary key, preloading the owning
// user. Returns ErrNotFound when absent.
func GetExchangeRequest(ctx context.Context, db *gorm.DB, id string) (*domain.ExchangeRequest, error) {
	var req domain.ExchangeRequest
	err := db.WithContext(ctx).
		Preload("User").
		Where("id = ?", id).
		First(&req).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// GetExchangeRequestByOrderID fetches a request by its external correlation
// key. Returns ErrNotFound when absent.
func GetExchangeRequestByOrderID(ctx context.Context, db *gorm.DB, orderID string) (*domain.ExchangeRequest, error) {
	var req domain.ExchangeRequest
	err := db.WithContext(ctx).
		Where("order_id = ?", orderID).
		First(&req).Error
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// ListRecentExchangeRequests returns the newest requests, capped at limit.
func ListRecentExchangeRequests(ctx context.Context, db *gorm.DB, limit int) ([]domain.ExchangeRequest, error) {
	var out []domain.ExchangeRequest
	err := db.WithContext(ctx).
		Order("created_at desc").
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ListUserExchangeRequests returns all requests owned by userID, newest first.
func ListUserExchangeRequests(ctx context.Context, db *gorm.DB, userID string) ([]domain.ExchangeRequest, error) {
	var out []domain.ExchangeRequest
	err := db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&out).Error
	return out, err
}

// CountExchangeRequests returns the number of requests matching the optional
// status filter ("" means all).
func CountExchangeRequests(ctx context.Context, db *gorm.DB, status string) (int64, error) {
	q := db.WithContext(ctx).Model(&domain.ExchangeRequest{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var total int64
	err := q.Count(&total).Error
	return total, err
}

// requestSortFields whitelists admin list sort columns; anything else falls
// back to created_at.
var requestSortFields = map[string]bool{
	"created_at":   true,
	"amount":       true,
	"status":       true,
	"completed_at": true,
	"order_id":     true,
}

// ListExchangeRequestsPage returns a page of requests with the owning user
// preloaded, filtered by optional status and ordered by a whitelisted sort
// field. Ascending order only when asc is true.
func ListExchangeRequestsPage(ctx context.Context, db *gorm.DB, status, sortField string, asc bool, offset, limit int) ([]domain.ExchangeRequest, error) {
	if !requestSortFields[sortField] {
		sortField = "created_at"
	}
	dir := "desc"
	if asc {
		dir = "asc"
	}
	q := db.WithContext(ctx).Preload("User")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	var out []domain.ExchangeRequest
	err := q.Order(sortField + " " + dir).
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// MarkNotified records a confirmed Telegram delivery: the message handle,
// delivery timestamp, and the sent flag commit together.
// Returns ErrNotFound if the request row is missing.
func MarkNotified(ctx context.Context, db *gorm.DB, id string, messageID int, at time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.ExchangeRequest{}).
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

// CompleteByOrderID atomically transitions a request into the completed
// state, keyed by the external correlation key. The conditional WHERE makes
// redelivered callbacks a no-op: the first call wins, later calls see zero
// affected rows.
//
// Returns (true, nil) when this call performed the transition, (false, nil)
// when the row exists but was already completed, and (false, ErrNotFound)
// when no such order exists.
//
// completed_at is set on the first completion only. A request that was
// completed, later failed by an admin, and then confirmed again keeps its
// original timestamp.
func CompleteByOrderID(ctx context.Context, db *gorm.DB, orderID string, now time.Time) (bool, error) {
	res := db.WithContext(ctx).
		Model(&domain.ExchangeRequest{}).
		Where("order_id = ? AND status <> ?", orderID, domain.StatusCompleted).
		Updates(map[string]any{
			"status":          domain.StatusCompleted,
			"admin_confirmed": true,
			"completed_at":    gorm.Expr("COALESCE(completed_at, ?)", now),
		})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}
	// Zero rows: either already completed (fine) or missing (ErrNotFound).
	var probe domain.ExchangeRequest
	err := db.WithContext(ctx).
		Select("id").
		Where("order_id = ?", orderID).
		First(&probe).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, ErrNotFound
	}
	return false, err
}

// UpdateExchangeStatus applies an admin-driven status transition. It keeps
// admin_confirmed in lockstep with the status and sets completed_at only on
// the first transition into completed; an already-set completed_at is never
// overwritten or cleared.
func UpdateExchangeStatus(ctx context.Context, db *gorm.DB, id, status, adminNote string) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		updates := map[string]any{
			"status":          status,
			"admin_confirmed": status == domain.StatusCompleted,
		}
		if adminNote != "" {
			updates["admin_note"] = adminNote
		}
		res := tx.Model(&domain.ExchangeRequest{}).
			Where("id = ?", id).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		if status == domain.StatusCompleted {
			// First completion only; the guard keeps the original timestamp
			// across repeated confirmations.
			return tx.Model(&domain.ExchangeRequest{}).
				Where("id = ? AND completed_at IS NULL", id).
				Update("completed_at", time.Now().UTC()).Error
		}
		return nil
	})
}

// CountOrdersByUser returns (total, completed) request counts for a user.
func CountOrdersByUser(ctx context.Context, db *gorm.DB, userID string) (int64, int64, error) {
	var total, completed int64
	if err := db.WithContext(ctx).
		Model(&domain.ExchangeRequest{}).
		Where("user_id = ?", userID).
		Count(&total).Error; err != nil {
		return 0, 0, err
	}
	err := db.WithContext(ctx).
		Model(&domain.ExchangeRequest{}).
		Where("user_id = ? AND status = ?", userID, domain.StatusCompleted).
		Count(&completed).Error
	return total, completed, err
}
