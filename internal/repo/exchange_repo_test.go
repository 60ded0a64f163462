package repo

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mkovtun/go-exchange-backend/internal/domain"
)

// newTestDB opens a fresh in-memory database and migrates the full schema.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	// Unique DSN per call to avoid cross-test contamination
	dsn := fmt.Sprintf("file:repo_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newRequest(orderID string) *domain.ExchangeRequest {
	return &domain.ExchangeRequest{
		ID:               uuid.NewString(),
		OrderID:          orderID,
		FromCurrency:     "ETH",
		ToCurrency:       "BTC",
		Amount:           1.5,
		CalculatedAmount: 0.05,
		SenderWallet:     "0xabc",
		RecipientWallet:  "bc1xyz",
		Status:           domain.StatusPending,
		CreatedAt:        time.Now().UTC(),
	}
}

func TestCreateExchangeRequest_DuplicateOrderID(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if err := CreateExchangeRequest(ctx, db, newRequest("ORD-1")); err != nil {
		t.Fatalf("first create: %v", err)
	}
	err := CreateExchangeRequest(ctx, db, newRequest("ORD-1"))
	if !errors.Is(err, ErrDuplicate) {
		t.Fatalf("second create err = %v; want ErrDuplicate", err)
	}
}

func TestGetExchangeRequestByOrderID_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := GetExchangeRequestByOrderID(context.Background(), db, "NONEXISTENT")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v; want ErrNotFound", err)
	}
}

func TestMarkNotified(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	req := newRequest("ORD-2")
	if err := CreateExchangeRequest(ctx, db, req); err != nil {
		t.Fatalf("create: %v", err)
	}

	at := time.Now().UTC().Truncate(time.Second)
	if err := MarkNotified(ctx, db, req.ID, 4242, at); err != nil {
		t.Fatalf("MarkNotified: %v", err)
	}

	got, err := GetExchangeRequest(ctx, db, req.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.SentToTelegram {
		t.Errorf("SentToTelegram = false")
	}
	if got.TelegramMessageID == nil || *got.TelegramMessageID != 4242 {
		t.Errorf("TelegramMessageID = %v; want 4242", got.TelegramMessageID)
	}
	if got.TelegramSentAt == nil {
		t.Errorf("TelegramSentAt not set")
	}

	if err := MarkNotified(ctx, db, "missing", 1, at); !errors.Is(err, ErrNotFound) {
		t.Fatalf("MarkNotified(missing) = %v; want ErrNotFound", err)
	}
}

func TestCompleteByOrderID_IdempotentAndNotFound(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	req := newRequest("ORD-3")
	if err := CreateExchangeRequest(ctx, db, req); err != nil {
		t.Fatalf("create: %v", err)
	}

	now := time.Now().UTC()
	won, err := CompleteByOrderID(ctx, db, "ORD-3", now)
	if err != nil || !won {
		t.Fatalf("first complete = (%v, %v); want (true, nil)", won, err)
	}

	got, _ := GetExchangeRequest(ctx, db, req.ID)
	if got.Status != domain.StatusCompleted || !got.AdminConfirmed || got.CompletedAt == nil {
		t.Fatalf("after complete: status=%s adminConfirmed=%v completedAt=%v",
			got.Status, got.AdminConfirmed, got.CompletedAt)
	}
	firstCompletedAt := *got.CompletedAt

	// Redelivered callback: no-op, original timestamp preserved.
	won, err = CompleteByOrderID(ctx, db, "ORD-3", now.Add(time.Hour))
	if err != nil || won {
		t.Fatalf("second complete = (%v, %v); want (false, nil)", won, err)
	}
	got, _ = GetExchangeRequest(ctx, db, req.ID)
	if !got.CompletedAt.Equal(firstCompletedAt) {
		t.Fatalf("CompletedAt changed on redelivery: %v -> %v", firstCompletedAt, got.CompletedAt)
	}

	if _, err := CompleteByOrderID(ctx, db, "NONEXISTENT", now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("complete(missing) err = %v; want ErrNotFound", err)
	}
}

func TestCompleteByOrderID_PreservesCompletedAtAfterFailed(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	req := newRequest("ORD-3b")
	if err := CreateExchangeRequest(ctx, db, req); err != nil {
		t.Fatalf("create: %v", err)
	}

	now := time.Now().UTC()
	if won, err := CompleteByOrderID(ctx, db, "ORD-3b", now); err != nil || !won {
		t.Fatalf("first complete = (%v, %v); want (true, nil)", won, err)
	}
	got, _ := GetExchangeRequest(ctx, db, req.ID)
	first := *got.CompletedAt

	// An admin moves the order to failed, reopening the status guard.
	if err := UpdateExchangeStatus(ctx, db, req.ID, domain.StatusFailed, ""); err != nil {
		t.Fatalf("fail: %v", err)
	}

	// A redelivered callback completes the order again; the original
	// timestamp must survive.
	won, err := CompleteByOrderID(ctx, db, "ORD-3b", now.Add(time.Hour))
	if err != nil || !won {
		t.Fatalf("re-complete = (%v, %v); want (true, nil)", won, err)
	}
	got, _ = GetExchangeRequest(ctx, db, req.ID)
	if got.Status != domain.StatusCompleted || !got.AdminConfirmed {
		t.Fatalf("after re-complete: status=%s adminConfirmed=%v", got.Status, got.AdminConfirmed)
	}
	if got.CompletedAt == nil || !got.CompletedAt.Equal(first) {
		t.Fatalf("CompletedAt overwritten: %v -> %v", first, got.CompletedAt)
	}
}

func TestUpdateExchangeStatus_CompletedAtSetOnce(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	req := newRequest("ORD-4")
	if err := CreateExchangeRequest(ctx, db, req); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := UpdateExchangeStatus(ctx, db, req.ID, domain.StatusCompleted, "paid"); err != nil {
		t.Fatalf("complete: %v", err)
	}
	got, _ := GetExchangeRequest(ctx, db, req.ID)
	if got.CompletedAt == nil || !got.AdminConfirmed || got.AdminNote != "paid" {
		t.Fatalf("after complete: %+v", got)
	}
	first := *got.CompletedAt

	// Moving away from completed keeps the historical timestamp.
	if err := UpdateExchangeStatus(ctx, db, req.ID, domain.StatusFailed, ""); err != nil {
		t.Fatalf("fail: %v", err)
	}
	got, _ = GetExchangeRequest(ctx, db, req.ID)
	if got.Status != domain.StatusFailed || got.AdminConfirmed {
		t.Fatalf("after fail: status=%s adminConfirmed=%v", got.Status, got.AdminConfirmed)
	}
	if got.CompletedAt == nil || !got.CompletedAt.Equal(first) {
		t.Fatalf("CompletedAt = %v; want preserved %v", got.CompletedAt, first)
	}

	// Re-completing must not overwrite the original timestamp.
	if err := UpdateExchangeStatus(ctx, db, req.ID, domain.StatusCompleted, ""); err != nil {
		t.Fatalf("re-complete: %v", err)
	}
	got, _ = GetExchangeRequest(ctx, db, req.ID)
	if !got.CompletedAt.Equal(first) {
		t.Fatalf("CompletedAt overwritten: %v -> %v", first, got.CompletedAt)
	}

	if err := UpdateExchangeStatus(ctx, db, "missing", domain.StatusFailed, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("update(missing) = %v; want ErrNotFound", err)
	}
}

func TestListExchangeRequestsPage_FilterAndSortWhitelist(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	for i, st := range []string{domain.StatusPending, domain.StatusCompleted, domain.StatusPending} {
		r := newRequest(fmt.Sprintf("ORD-%d", i))
		r.Status = st
		r.Amount = float64(i + 1)
		if err := CreateExchangeRequest(ctx, db, r); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}

	pending, err := ListExchangeRequestsPage(ctx, db, domain.StatusPending, "amount", true, 0, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(pending) != 2 || pending[0].Amount > pending[1].Amount {
		t.Fatalf("pending asc by amount: %+v", pending)
	}

	// Hostile sort field falls back to created_at rather than erroring.
	if _, err := ListExchangeRequestsPage(ctx, db, "", "amount; DROP TABLE users", false, 0, 10); err != nil {
		t.Fatalf("whitelist fallback: %v", err)
	}

	total, err := CountExchangeRequests(ctx, db, domain.StatusPending)
	if err != nil || total != 2 {
		t.Fatalf("count pending = (%d, %v); want 2", total, err)
	}
}

func TestCountOrdersByUser(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	uid := seedUser(t, db)
	for i, st := range []string{domain.StatusPending, domain.StatusCompleted} {
		r := newRequest(fmt.Sprintf("ORD-U%d", i))
		r.UserID = &uid
		r.Status = st
		if err := CreateExchangeRequest(ctx, db, r); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	total, completed, err := CountOrdersByUser(ctx, db, uid)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if total != 2 || completed != 1 {
		t.Fatalf("counts = (%d, %d); want (2, 1)", total, completed)
	}
}
