package repo

import (
	"errors"
	"strings"

	"gorm.io/gorm"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// ErrDuplicate indicates a unique-constraint violation (duplicate order id,
// email, nickname, or promo code).
var ErrDuplicate = errors.New("duplicate")

// asDuplicate maps driver-specific unique-violation errors to ErrDuplicate.
// glebarez/sqlite often returns plain-text errors for UNIQUE violations;
// pgx reports SQLSTATE 23505.
func asDuplicate(err error) error {
	if err == nil {
		return nil
	}
	low := strings.ToLower(err.Error())
	if errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique") ||
		strings.Contains(low, "sqlstate 23505") ||
		strings.Contains(low, "duplicate key value") {
		return ErrDuplicate
	}
	return err
}
