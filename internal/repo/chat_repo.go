// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Chat and
// ChatMessage models.
//
// Chat status transitions are enforced with conditional updates: the WHERE
// clause names the expected current status, and zero affected rows means the
// transition was not legal (or the chat is gone). This keeps the
// active -> closed -> archived progression monotonic without table locks.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mkovtun/go-exchange-backend/internal/domain"
)

// CreateChat inserts a chat bound to an order. One chat per order: a second
// insert for the same order id yields ErrDuplicate.
func CreateChat(ctx context.Context, db *gorm.DB, orderID, userID string) (*domain.Chat, error) {
	c := &domain.Chat{
		ID:            uuid.NewString(),
		OrderID:       orderID,
		UserID:        userID,
		Status:        domain.ChatActive,
		LastMessageAt: time.Now().UTC(),
		CreatedAt:     time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, asDuplicate(err)
	}
	return c, nil
}

// GetChat fetches a chat by primary key with the user preloaded, or
// ErrNotFound.
func GetChat(ctx context.Context, db *gorm.DB, id string) (*domain.Chat, error) {
	var c domain.Chat
	err := db.WithContext(ctx).
		Preload("User").
		Where("id = ?", id).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetChatByOrderID fetches the chat attached to an order, or ErrNotFound.
func GetChatByOrderID(ctx context.Context, db *gorm.DB, orderID string) (*domain.Chat, error) {
	var c domain.Chat
	err := db.WithContext(ctx).
		Where("order_id = ?", orderID).
		First(&c).Error
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// CountChats returns the number of chats in the given status.
func CountChats(ctx context.Context, db *gorm.DB, status string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Chat{}).
		Where("status = ?", status).
		Count(&total).Error
	return total, err
}

// ListChatsPage returns a page of chats in the given status, most recently
// active first, with users preloaded.
func ListChatsPage(ctx context.Context, db *gorm.DB, status string, offset, limit int) ([]domain.Chat, error) {
	var out []domain.Chat
	err := db.WithContext(ctx).
		Preload("User").
		Where("status = ?", status).
		Order("last_message_at desc").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ListChatMessages returns a chat's messages in chronological order.
func ListChatMessages(ctx context.Context, db *gorm.DB, chatID string) ([]domain.ChatMessage, error) {
	var out []domain.ChatMessage
	err := db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("created_at asc").
		Find(&out).Error
	return out, err
}

// MarkUserMessagesRead flags all unread user-authored messages in a chat as
// read. Idempotent; affecting zero rows is not an error.
func MarkUserMessagesRead(ctx context.Context, db *gorm.DB, chatID string) error {
	return db.WithContext(ctx).
		Model(&domain.ChatMessage{}).
		Where("chat_id = ? AND sender = ? AND read = ?", chatID, domain.SenderUser, false).
		Update("read", true).Error
}

// AppendChatMessage inserts a message and bumps the chat's last_message_at in
// one transaction.
func AppendChatMessage(ctx context.Context, db *gorm.DB, chatID, sender, content string, read bool) (*domain.ChatMessage, error) {
	msg := &domain.ChatMessage{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		Sender:    sender,
		Content:   content,
		Read:      read,
		CreatedAt: time.Now().UTC(),
	}
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		return tx.Model(&domain.Chat{}).
			Where("id = ?", chatID).
			Update("last_message_at", msg.CreatedAt).Error
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// TransitionChatStatus moves a chat from the expected status to the next one.
// Returns ErrNotFound when the chat is missing or not in the expected status
// (i.e. the transition would not be monotonic). closedAt is recorded only on
// the transition into closed.
func TransitionChatStatus(ctx context.Context, db *gorm.DB, id, from, to string) error {
	updates := map[string]any{"status": to}
	if to == domain.ChatClosed {
		updates["closed_at"] = time.Now().UTC()
	}
	res := db.WithContext(ctx).
		Model(&domain.Chat{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
