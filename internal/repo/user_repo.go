// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the User model.
package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/mkovtun/go-exchange-backend/internal/domain"
)

// CreateUser inserts a new user row. Duplicate email or nickname yields
// ErrDuplicate.
func CreateUser(ctx context.Context, db *gorm.DB, u *domain.User) error {
	if err := db.WithContext(ctx).Create(u).Error; err != nil {
		return asDuplicate(err)
	}
	return nil
}

// GetUser fetches a user by primary key, or ErrNotFound.
func GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUserByEmail fetches a user by email, or ErrNotFound.
func GetUserByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.User, error) {
	var u domain.User
	if err := db.WithContext(ctx).Where("email = ?", email).First(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

// NicknameTaken reports whether any user already holds nickname.
func NicknameTaken(ctx context.Context, db *gorm.DB, nickname string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("nickname = ?", nickname).
		Count(&n).Error
	return n > 0, err
}

// EmailTakenByOther reports whether a user other than excludeID holds email.
// Used by admin updates to keep emails unique without tripping on self.
func EmailTakenByOther(ctx context.Context, db *gorm.DB, email, excludeID string) (bool, error) {
	var n int64
	err := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("email = ? AND id <> ?", email, excludeID).
		Count(&n).Error
	return n > 0, err
}

// userSearch composes the case-insensitive search filter over email, name,
// and nickname shared by CountUsers and ListUsersPage.
func userSearch(q *gorm.DB, search string) *gorm.DB {
	if search == "" {
		return q
	}
	like := "%" + search + "%"
	return q.Where("email LIKE ? OR name LIKE ? OR nickname LIKE ?", like, like, like)
}

// CountUsers returns the number of users matching the optional search term.
func CountUsers(ctx context.Context, db *gorm.DB, search string) (int64, error) {
	var total int64
	err := userSearch(db.WithContext(ctx).Model(&domain.User{}), search).
		Count(&total).Error
	return total, err
}

// ListUsersPage returns a page of users matching the optional search term,
// newest first.
func ListUsersPage(ctx context.Context, db *gorm.DB, search string, offset, limit int) ([]domain.User, error) {
	var out []domain.User
	err := userSearch(db.WithContext(ctx), search).
		Order("created_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// UpdateUser applies the given field updates to a user row.
// Returns ErrNotFound when the row is missing, ErrDuplicate on a unique
// violation (email).
func UpdateUser(ctx context.Context, db *gorm.DB, id string, updates map[string]any) error {
	res := db.WithContext(ctx).
		Model(&domain.User{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return asDuplicate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteUser removes a user row. Returns ErrNotFound when the row is missing.
func DeleteUser(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&domain.User{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// IsNotFound reports whether err is the record-missing sentinel, unwrapping
// as needed.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
