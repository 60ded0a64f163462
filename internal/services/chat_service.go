// Package services – ChatService
//
// This file implements the support chat attached 1:1 to an exchange order.
// A chat progresses active -> closed -> archived and never moves backwards;
// only active chats accept messages, and fetching a chat as an admin marks
// the user's messages read.
package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/mkovtun/go-exchange-backend/internal/domain"
	"github.com/mkovtun/go-exchange-backend/internal/repo"
)

// ChatRepo defines the repository contract required by ChatService.
type ChatRepo interface {
	CreateChat(ctx context.Context, db *gorm.DB, orderID, userID string) (*domain.Chat, error)
	GetChat(ctx context.Context, db *gorm.DB, id string) (*domain.Chat, error)
	GetChatByOrderID(ctx context.Context, db *gorm.DB, orderID string) (*domain.Chat, error)
	CountChats(ctx context.Context, db *gorm.DB, status string) (int64, error)
	ListChatsPage(ctx context.Context, db *gorm.DB, status string, offset, limit int) ([]domain.Chat, error)
	ListChatMessages(ctx context.Context, db *gorm.DB, chatID string) ([]domain.ChatMessage, error)
	MarkUserMessagesRead(ctx context.Context, db *gorm.DB, chatID string) error
	AppendChatMessage(ctx context.Context, db *gorm.DB, chatID, sender, content string, read bool) (*domain.ChatMessage, error)
	TransitionChatStatus(ctx context.Context, db *gorm.DB, id, from, to string) error
}

// ChatService provides order chat operations.
type ChatService struct {
	DB   *gorm.DB
	Repo ChatRepo
}

// NewChatService constructs a ChatService.
func NewChatService(db *gorm.DB, r ChatRepo) *ChatService {
	return &ChatService{DB: db, Repo: r}
}

// OpenForOrder returns the chat bound to orderID, creating it on first use.
// Concurrent first opens converge on the single stored chat.
func (s *ChatService) OpenForOrder(ctx context.Context, orderID, userID string) (*domain.Chat, error) {
	c, err := s.Repo.CreateChat(ctx, s.DB, orderID, userID)
	if err == nil {
		return c, nil
	}
	if errors.Is(err, repo.ErrDuplicate) {
		return s.Repo.GetChatByOrderID(ctx, s.DB, orderID)
	}
	return nil, err
}

// Get returns a chat with its messages in chronological order. When the
// reader is an admin, the user's unread messages are marked read first.
func (s *ChatService) Get(ctx context.Context, id string, adminReader bool) (*domain.Chat, error) {
	c, err := s.Repo.GetChat(ctx, s.DB, id)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrChatNotFound
		}
		return nil, err
	}
	if adminReader {
		if err := s.Repo.MarkUserMessagesRead(ctx, s.DB, id); err != nil {
			return nil, err
		}
	}
	msgs, err := s.Repo.ListChatMessages(ctx, s.DB, id)
	if err != nil {
		return nil, err
	}
	c.Messages = msgs
	return c, nil
}

// SendMessage appends a message to an active chat. Admin messages are stored
// as already read; user messages start unread.
func (s *ChatService) SendMessage(ctx context.Context, chatID, sender, content string) (*domain.ChatMessage, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, ErrEmptyMessage
	}
	if sender != domain.SenderUser && sender != domain.SenderAdmin {
		return nil, ErrMissingFields
	}
	c, err := s.Repo.GetChat(ctx, s.DB, chatID)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrChatNotFound
		}
		return nil, err
	}
	if c.Status != domain.ChatActive {
		return nil, ErrChatNotActive
	}
	return s.Repo.AppendChatMessage(ctx, s.DB, chatID, sender, content, sender == domain.SenderAdmin)
}

// Close moves an active chat to closed.
func (s *ChatService) Close(ctx context.Context, id string) error {
	err := s.Repo.TransitionChatStatus(ctx, s.DB, id, domain.ChatActive, domain.ChatClosed)
	if repo.IsNotFound(err) {
		return s.transitionError(ctx, id, ErrChatNotActive)
	}
	return err
}

// Archive moves a closed chat to archived. Active chats must be closed first.
func (s *ChatService) Archive(ctx context.Context, id string) error {
	err := s.Repo.TransitionChatStatus(ctx, s.DB, id, domain.ChatClosed, domain.ChatArchived)
	if repo.IsNotFound(err) {
		return s.transitionError(ctx, id, ErrChatNotClosed)
	}
	return err
}

// transitionError distinguishes "chat missing" from "wrong current status"
// after a conditional transition affected no rows.
func (s *ChatService) transitionError(ctx context.Context, id string, stateErr error) error {
	if _, err := s.Repo.GetChat(ctx, s.DB, id); err != nil {
		if repo.IsNotFound(err) {
			return ErrChatNotFound
		}
		return err
	}
	return stateErr
}

// ListPage returns a page of chats in the given status with the total count,
// most recently active first.
func (s *ChatService) ListPage(ctx context.Context, status string, page, pageSize int) ([]domain.Chat, int64, error) {
	switch status {
	case domain.ChatActive, domain.ChatClosed, domain.ChatArchived:
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

	total, err := s.Repo.CountChats(ctx, s.DB, status)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Chat{}, 0, nil
	}
	items, err := s.Repo.ListChatsPage(ctx, s.DB, status, offset, pageSize)
	return items, total, err
}
