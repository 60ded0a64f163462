package services

import (
	"context"
	"errors"
	"testing"

	"gorm.io/gorm"

	"github.com/mkovtun/go-exchange-backend/internal/domain"
	"github.com/mkovtun/go-exchange-backend/internal/repo"
)

// ----- Fake repo -----

type fakeChatRepo struct {
	createErr error
	createdID string

	chat   *domain.Chat
	getErr error

	byOrder *domain.Chat

	msgs     []domain.ChatMessage
	readChat string

	appended     *domain.ChatMessage
	appendSender string
	appendRead   bool

	transFrom string
	transTo   string
	transErr  error

	countTotal int64
	pageItems  []domain.Chat
}

func (r *fakeChatRepo) CreateChat(ctx context.Context, db *gorm.DB, orderID, userID string) (*domain.Chat, error) {
	if r.createErr != nil {
		return nil, r.createErr
	}
	r.createdID = orderID
	return &domain.Chat{ID: "c1", OrderID: orderID, UserID: userID, Status: domain.ChatActive}, nil
}

func (r *fakeChatRepo) GetChat(ctx context.Context, db *gorm.DB, id string) (*domain.Chat, error) {
	return r.chat, r.getErr
}

func (r *fakeChatRepo) GetChatByOrderID(ctx context.Context, db *gorm.DB, orderID string) (*domain.Chat, error) {
	return r.byOrder, nil
}

func (r *fakeChatRepo) CountChats(ctx context.Context, db *gorm.DB, status string) (int64, error) {
	return r.countTotal, nil
}

func (r *fakeChatRepo) ListChatsPage(ctx context.Context, db *gorm.DB, status string, offset, limit int) ([]domain.Chat, error) {
	return r.pageItems, nil
}

func (r *fakeChatRepo) ListChatMessages(ctx context.Context, db *gorm.DB, chatID string) ([]domain.ChatMessage, error) {
	return r.msgs, nil
}

func (r *fakeChatRepo) MarkUserMessagesRead(ctx context.Context, db *gorm.DB, chatID string) error {
	r.readChat = chatID
	return nil
}

func (r *fakeChatRepo) AppendChatMessage(ctx context.Context, db *gorm.DB, chatID, sender, content string, read bool) (*domain.ChatMessage, error) {
	r.appendSender, r.appendRead = sender, read
	r.appended = &domain.ChatMessage{ID: "m1", ChatID: chatID, Sender: sender, Content: content, Read: read}
	return r.appended, nil
}

func (r *fakeChatRepo) TransitionChatStatus(ctx context.Context, db *gorm.DB, id, from, to string) error {
	r.transFrom, r.transTo = from, to
	return r.transErr
}

// ----- Tests -----

func TestOpenForOrder_CreatesThenConverges(t *testing.T) {
	r := &fakeChatRepo{}
	s := NewChatService(nil, r)

	c, err := s.OpenForOrder(context.Background(), "ORD-1", "u1")
	if err != nil || c.OrderID != "ORD-1" {
		t.Fatalf("open = (%+v, %v)", c, err)
	}

	// Second open: the unique index refuses, the existing chat is returned.
	r.createErr = repo.ErrDuplicate
	r.byOrder = &domain.Chat{ID: "c1", OrderID: "ORD-1"}
	c, err = s.OpenForOrder(context.Background(), "ORD-1", "u1")
	if err != nil || c.ID != "c1" {
		t.Fatalf("reopen = (%+v, %v)", c, err)
	}
}

func TestChatGet_AdminMarksRead(t *testing.T) {
	r := &fakeChatRepo{
		chat: &domain.Chat{ID: "c1", Status: domain.ChatActive},
		msgs: []domain.ChatMessage{{ID: "m1"}, {ID: "m2"}},
	}
	s := NewChatService(nil, r)

	c, err := s.Get(context.Background(), "c1", true)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if r.readChat != "c1" {
		t.Error("admin read did not mark user messages")
	}
	if len(c.Messages) != 2 {
		t.Errorf("messages = %d", len(c.Messages))
	}

	r.readChat = ""
	if _, err := s.Get(context.Background(), "c1", false); err != nil {
		t.Fatalf("get: %v", err)
	}
	if r.readChat != "" {
		t.Error("user read marked messages")
	}
}

func TestSendMessage(t *testing.T) {
	r := &fakeChatRepo{chat: &domain.Chat{ID: "c1", Status: domain.ChatActive}}
	s := NewChatService(nil, r)

	msg, err := s.SendMessage(context.Background(), "c1", domain.SenderAdmin, "  hello  ")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if msg.Content != "hello" {
		t.Errorf("content = %q; want trimmed", msg.Content)
	}
	if !r.appendRead {
		t.Error("admin message stored unread")
	}

	if _, err := s.SendMessage(context.Background(), "c1", domain.SenderUser, "hi"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if r.appendRead {
		t.Error("user message stored read")
	}

	if _, err := s.SendMessage(context.Background(), "c1", domain.SenderUser, "   "); !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("blank = %v; want ErrEmptyMessage", err)
	}

	r.chat = &domain.Chat{ID: "c1", Status: domain.ChatClosed}
	if _, err := s.SendMessage(context.Background(), "c1", domain.SenderUser, "hi"); !errors.Is(err, ErrChatNotActive) {
		t.Errorf("closed chat = %v; want ErrChatNotActive", err)
	}
}

func TestChatCloseAndArchive(t *testing.T) {
	r := &fakeChatRepo{chat: &domain.Chat{ID: "c1", Status: domain.ChatActive}}
	s := NewChatService(nil, r)

	if err := s.Close(context.Background(), "c1"); err != nil {
		t.Fatalf("close: %v", err)
	}
	if r.transFrom != domain.ChatActive || r.transTo != domain.ChatClosed {
		t.Errorf("transition = %s -> %s", r.transFrom, r.transTo)
	}

	// Archiving a chat that is not closed: transition misses, chat exists.
	r.transErr = gorm.ErrRecordNotFound
	if err := s.Archive(context.Background(), "c1"); !errors.Is(err, ErrChatNotClosed) {
		t.Errorf("archive active = %v; want ErrChatNotClosed", err)
	}

	// Transition misses and the chat is gone.
	r.chat, r.getErr = nil, gorm.ErrRecordNotFound
	if err := s.Close(context.Background(), "missing"); !errors.Is(err, ErrChatNotFound) {
		t.Errorf("close missing = %v; want ErrChatNotFound", err)
	}
}

func TestChatListPage(t *testing.T) {
	r := &fakeChatRepo{countTotal: 2, pageItems: []domain.Chat{{ID: "a"}, {ID: "b"}}}
	s := NewChatService(nil, r)

	items, total, err := s.ListPage(context.Background(), domain.ChatActive, 1, 10)
	if err != nil || total != 2 || len(items) != 2 {
		t.Fatalf("list = (%d items, %d, %v)", len(items), total, err)
	}

	if _, _, err := s.ListPage(context.Background(), "bogus", 1, 10); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("bogus status = %v; want ErrInvalidStatus", err)
	}
}
