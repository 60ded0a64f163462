// Package services – ExchangeService
//
// This file implements the ExchangeService, which owns the exchange request
// lifecycle: accepting and persisting new requests, mirroring them to the
// operator notification channel, reconciling asynchronous payment
// confirmations, and applying admin status transitions.
//
// The stored row is the source of truth at every step. Notification delivery
// is strictly best-effort: a request that could not be mirrored stays stored
// with SentToTelegram=false, and the create reports partial success instead of
// failing. Confirmation callbacks are idempotent; redeliveries collapse into
// no-ops at the persistence layer.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/mkovtun/go-exchange-backend/internal/domain"
	"github.com/mkovtun/go-exchange-backend/internal/metrics"
	"github.com/mkovtun/go-exchange-backend/internal/notify"
	"github.com/mkovtun/go-exchange-backend/internal/repo"
)

// ExchangeRepo defines the repository contract required by ExchangeService.
type ExchangeRepo interface {
	CreateExchangeRequest(ctx context.Context, db *gorm.DB, req *domain.ExchangeRequest) error
	GetExchangeRequest(ctx context.Context, db *gorm.DB, id string) (*domain.ExchangeRequest, error)
	GetExchangeRequestByOrderID(ctx context.Context, db *gorm.DB, orderID string) (*domain.ExchangeRequest, error)
	ListRecentExchangeRequests(ctx context.Context, db *gorm.DB, limit int) ([]domain.ExchangeRequest, error)
	ListUserExchangeRequests(ctx context.Context, db *gorm.DB, userID string) ([]domain.ExchangeRequest, error)
	CountExchangeRequests(ctx context.Context, db *gorm.DB, status string) (int64, error)
	ListExchangeRequestsPage(ctx context.Context, db *gorm.DB, status, sortField string, asc bool, offset, limit int) ([]domain.ExchangeRequest, error)
	MarkNotified(ctx context.Context, db *gorm.DB, id string, messageID int, at time.Time) error
	CompleteByOrderID(ctx context.Context, db *gorm.DB, orderID string, now time.Time) (bool, error)
	UpdateExchangeStatus(ctx context.Context, db *gorm.DB, id, status, adminNote string) error
	GetExchangeStats(ctx context.Context, db *gorm.DB, now time.Time) (*repo.ExchangeStats, error)
}

// PromoValidator is the slice of promo persistence the exchange flow needs to
// apply a discount during create.
type PromoValidator interface {
	GetActivePromoCodeByCode(ctx context.Context, db *gorm.DB, code string, now time.Time) (*domain.PromoCode, error)
	MarkPromoCodeUsed(ctx context.Context, db *gorm.DB, id, orderID string, now time.Time) error
}

// Notifier is the outbound operator channel used by ExchangeService.
type Notifier interface {
	Send(ctx context.Context, text, correlationKey string) (int, error)
	EditMessage(ctx context.Context, messageID int, text string) error
}

// ExchangeService provides exchange request operations.
type ExchangeService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the exchange repository used by this service.
	Repo ExchangeRepo
	// Promos validates and consumes promo codes during create.
	Promos PromoValidator
	// Notify is the operator notification channel.
	Notify Notifier
	// Log records best-effort failures that are not surfaced to callers.
	Log zerolog.Logger
}

// NewExchangeService constructs an ExchangeService.
func NewExchangeService(db *gorm.DB, r ExchangeRepo, p PromoValidator, n Notifier, log zerolog.Logger) *ExchangeService {
	return &ExchangeService{DB: db, Repo: r, Promos: p, Notify: n, Log: log}
}

// CreateRequestInput is the payload for ExchangeService.Create.
type CreateRequestInput struct {
	OrderID          string
	FromCurrency     string
	ToCurrency       string
	Amount           float64
	CalculatedAmount float64
	SenderWallet     string
	RecipientWallet  string
	SaveFromWallet   bool
	SaveToWallet     bool
	PromoCode        string
	UserID           *string
}

// CreateResult reports the outcome of a create: the stored request plus
// whether the operator notification went out. Notified=false with a nil error
// is the partial-success state.
//
// Notified reflects delivery, not bookkeeping: if the message reached the
// operator channel but recording the delivery failed, Notified stays true
// while the stored row keeps SentToTelegram=false (later message edits are
// then skipped for lack of a recorded handle).
type CreateResult struct {
	Request  *domain.ExchangeRequest
	Notified bool
}

// Create validates and persists a new exchange request, consumes an optional
// promo code, and mirrors the request to the operator channel.
//
// Persistence and notification are deliberately decoupled: once the row is
// committed, a failed delivery never unwinds it. The returned CreateResult
// carries Notified=false in that case and the caller reports partial success.
func (s *ExchangeService) Create(ctx context.Context, in CreateRequestInput) (*CreateResult, error) {
	if strings.TrimSpace(in.OrderID) == "" ||
		strings.TrimSpace(in.FromCurrency) == "" ||
		strings.TrimSpace(in.ToCurrency) == "" ||
		strings.TrimSpace(in.SenderWallet) == "" ||
		strings.TrimSpace(in.RecipientWallet) == "" {
		return nil, ErrMissingFields
	}
	if in.Amount <= 0 || in.CalculatedAmount <= 0 {
		return nil, ErrInvalidAmount
	}

	now := time.Now().UTC()
	req := &domain.ExchangeRequest{
		ID:               uuid.NewString(),
		OrderID:          strings.TrimSpace(in.OrderID),
		FromCurrency:     strings.ToUpper(strings.TrimSpace(in.FromCurrency)),
		ToCurrency:       strings.ToUpper(strings.TrimSpace(in.ToCurrency)),
		Amount:           in.Amount,
		CalculatedAmount: in.CalculatedAmount,
		SenderWallet:     strings.TrimSpace(in.SenderWallet),
		RecipientWallet:  strings.TrimSpace(in.RecipientWallet),
		SaveFromWallet:   in.SaveFromWallet,
		SaveToWallet:     in.SaveToWallet,
		UserID:           in.UserID,
		Status:           domain.StatusPending,
		CreatedAt:        now,
	}

	var promo *domain.PromoCode
	if code := strings.ToUpper(strings.TrimSpace(in.PromoCode)); code != "" {
		pc, err := s.Promos.GetActivePromoCodeByCode(ctx, s.DB, code, now)
		if err != nil {
			if repo.IsNotFound(err) {
				return nil, ErrPromoInvalid
			}
			return nil, err
		}
		if in.UserID == nil || pc.UserID != *in.UserID {
			return nil, ErrPromoNotOwned
		}
		promo = pc
		req.PromoApplied = true
		req.PromoDiscount = pc.Discount
		req.PromoID = &pc.ID
	}

	// Request row and promo consumption commit together; losing the
	// single-use race on the code aborts the whole create.
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.Repo.CreateExchangeRequest(ctx, tx, req); err != nil {
			return err
		}
		if promo != nil {
			return s.Promos.MarkPromoCodeUsed(ctx, tx, promo.ID, req.OrderID, now)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrOrderIDTaken
		}
		if errors.Is(err, repo.ErrNotFound) && promo != nil {
			return nil, ErrPromoInvalid
		}
		return nil, err
	}
	metrics.RequestsCreated.Inc()
	if promo != nil {
		metrics.PromoRedemptions.Inc()
	}

	res := &CreateResult{Request: req}
	msgID, err := s.Notify.Send(ctx, requestMessage(req), req.OrderID)
	if err != nil {
		metrics.Notifications.WithLabelValues("failed").Inc()
		s.Log.Error().Err(err).
			Str("order_id", req.OrderID).
			Msg("request stored but operator notification failed")
		return res, nil
	}
	metrics.Notifications.WithLabelValues("delivered").Inc()

	if err := s.Repo.MarkNotified(ctx, s.DB, req.ID, msgID, time.Now().UTC()); err != nil {
		// Delivery happened; the missing bookkeeping only disables later edits.
		s.Log.Error().Err(err).Str("order_id", req.OrderID).Msg("failed to record notification delivery")
	} else {
		req.SentToTelegram = true
		req.TelegramMessageID = &msgID
	}
	res.Notified = true
	return res, nil
}

// ReconcileCallback applies an asynchronous payment confirmation identified by
// its order id. The first delivery completes the request; redeliveries return
// the already-completed row with confirmed=false and no side effects.
func (s *ExchangeService) ReconcileCallback(ctx context.Context, orderID string) (*domain.ExchangeRequest, bool, error) {
	won, err := s.Repo.CompleteByOrderID(ctx, s.DB, orderID, time.Now().UTC())
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, false, ErrRequestNotFound
		}
		return nil, false, err
	}

	req, err := s.Repo.GetExchangeRequestByOrderID(ctx, s.DB, orderID)
	if err != nil {
		return nil, won, err
	}

	if !won {
		metrics.DuplicateCallbacks.Inc()
		return req, false, nil
	}
	metrics.Completions.WithLabelValues("callback").Inc()

	if req.TelegramMessageID != nil {
		text := fmt.Sprintf("✅ Payment confirmed\n\nOrder: <b>%s</b>\n%s", req.OrderID, pairLine(req))
		if err := s.Notify.EditMessage(ctx, *req.TelegramMessageID, text); err != nil {
			s.Log.Warn().Err(err).Str("order_id", orderID).Msg("failed to update operator message")
		}
	}
	return req, true, nil
}

// UpdateStatus applies an admin-driven status transition and returns the
// updated request.
func (s *ExchangeService) UpdateStatus(ctx context.Context, id, status, adminNote string) (*domain.ExchangeRequest, error) {
	if !domain.ValidStatus(status) {
		return nil, ErrInvalidStatus
	}
	if err := s.Repo.UpdateExchangeStatus(ctx, s.DB, id, status, adminNote); err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	if status == domain.StatusCompleted {
		metrics.Completions.WithLabelValues("admin").Inc()
	}
	return s.Get(ctx, id)
}

// Get returns a request by internal id.
func (s *ExchangeService) Get(ctx context.Context, id string) (*domain.ExchangeRequest, error) {
	req, err := s.Repo.GetExchangeRequest(ctx, s.DB, id)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	return req, nil
}

// GetByOrderID returns a request by its external order id.
func (s *ExchangeService) GetByOrderID(ctx context.Context, orderID string) (*domain.ExchangeRequest, error) {
	req, err := s.Repo.GetExchangeRequestByOrderID(ctx, s.DB, orderID)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	return req, nil
}

// ListRecent returns the newest requests, capped at limit (default 50).
func (s *ExchangeService) ListRecent(ctx context.Context, limit int) ([]domain.ExchangeRequest, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.Repo.ListRecentExchangeRequests(ctx, s.DB, limit)
}

// ListForUser returns all requests owned by userID, newest first.
func (s *ExchangeService) ListForUser(ctx context.Context, userID string) ([]domain.ExchangeRequest, error) {
	return s.Repo.ListUserExchangeRequests(ctx, s.DB, userID)
}

// ListPage returns a page of requests for the admin view with the total count.
// It applies defaults for invalid page/pageSize.
func (s *ExchangeService) ListPage(ctx context.Context, status, sortField, sortOrder string, page, pageSize int) ([]domain.ExchangeRequest, int64, error) {
	if status != "" && !domain.ValidStatus(status) {
		return nil, 0, ErrInvalidStatus
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := s.Repo.CountExchangeRequests(ctx, s.DB, status)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.ExchangeRequest{}, 0, nil
	}

	items, err := s.Repo.ListExchangeRequestsPage(ctx, s.DB, status, sortField, strings.EqualFold(sortOrder, "asc"), offset, pageSize)
	return items, total, err
}

// Stats returns the admin dashboard aggregates.
func (s *ExchangeService) Stats(ctx context.Context) (*repo.ExchangeStats, error) {
	return s.Repo.GetExchangeStats(ctx, s.DB, time.Now().UTC())
}

// requestMessage renders the operator notification for a new request.
func requestMessage(req *domain.ExchangeRequest) string {
	var b strings.Builder
	b.WriteString("🔄 <b>New exchange request</b>\n\n")
	fmt.Fprintf(&b, "Order: <b>%s</b>\n", req.OrderID)
	b.WriteString(pairLine(req))
	fmt.Fprintf(&b, "\nFrom wallet: <code>%s</code>\n", req.SenderWallet)
	fmt.Fprintf(&b, "To wallet: <code>%s</code>\n", req.RecipientWallet)
	if req.PromoApplied {
		fmt.Fprintf(&b, "Promo discount: %.0f%%\n", req.PromoDiscount)
	}
	return b.String()
}

// pairLine renders the "amount FROM -> amount TO" summary shared by the
// create notification and the confirmation edit.
func pairLine(req *domain.ExchangeRequest) string {
	return fmt.Sprintf("Exchange: %g %s → %g %s\n",
		req.Amount, req.FromCurrency, req.CalculatedAmount, req.ToCurrency)
}

// ensure the concrete channel satisfies the service contract.
var _ Notifier = (*notify.Channel)(nil)
