// Package services – IntakeService
//
// Legacy anonymous intake: the old landing page posts a stripped exchange
// form with no order correlation. Forms are persisted and relayed to the
// operator channel as plain text, with the same store-first semantics as the
// main exchange flow.
package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/mkovtun/go-exchange-backend/internal/domain"
)

// IntakeRepo defines the repository contract required by IntakeService.
type IntakeRepo interface {
	CreateIntakeForm(ctx context.Context, db *gorm.DB, f *domain.IntakeForm) error
	ListIntakeForms(ctx context.Context, db *gorm.DB) ([]domain.IntakeForm, error)
	MarkFormNotified(ctx context.Context, db *gorm.DB, id string, messageID int, at time.Time) error
}

// PlainNotifier is the plain-text slice of the operator channel.
type PlainNotifier interface {
	SendPlain(ctx context.Context, text string) (int, error)
}

// IntakeService handles the legacy form endpoint.
type IntakeService struct {
	DB     *gorm.DB
	Repo   IntakeRepo
	Notify PlainNotifier
	Log    zerolog.Logger
}

// NewIntakeService constructs an IntakeService.
func NewIntakeService(db *gorm.DB, r IntakeRepo, n PlainNotifier, log zerolog.Logger) *IntakeService {
	return &IntakeService{DB: db, Repo: r, Notify: n, Log: log}
}

// IntakeInput is the legacy form payload.
type IntakeInput struct {
	FromCurrency     string
	ToCurrency       string
	Amount           float64
	CalculatedAmount float64
	SenderWallet     string
}

// Submit persists a form and relays it to the operator channel. A failed
// relay leaves the form stored and is reported through the second result.
func (s *IntakeService) Submit(ctx context.Context, in IntakeInput) (*domain.IntakeForm, bool, error) {
	if strings.TrimSpace(in.FromCurrency) == "" ||
		strings.TrimSpace(in.ToCurrency) == "" ||
		strings.TrimSpace(in.SenderWallet) == "" {
		return nil, false, ErrMissingFields
	}
	if in.Amount <= 0 {
		return nil, false, ErrInvalidAmount
	}

	f := &domain.IntakeForm{
		ID:               uuid.NewString(),
		FromCurrency:     strings.ToUpper(strings.TrimSpace(in.FromCurrency)),
		ToCurrency:       strings.ToUpper(strings.TrimSpace(in.ToCurrency)),
		Amount:           in.Amount,
		CalculatedAmount: in.CalculatedAmount,
		SenderWallet:     strings.TrimSpace(in.SenderWallet),
		CreatedAt:        time.Now().UTC(),
	}
	if err := s.Repo.CreateIntakeForm(ctx, s.DB, f); err != nil {
		return nil, false, err
	}

	text := fmt.Sprintf("New form submission\n\nExchange: %g %s -> %g %s\nFrom wallet: %s",
		f.Amount, f.FromCurrency, f.CalculatedAmount, f.ToCurrency, f.SenderWallet)
	msgID, err := s.Notify.SendPlain(ctx, text)
	if err != nil {
		s.Log.Error().Err(err).Str("form_id", f.ID).Msg("form stored but operator notification failed")
		return f, false, nil
	}
	if err := s.Repo.MarkFormNotified(ctx, s.DB, f.ID, msgID, time.Now().UTC()); err != nil {
		s.Log.Error().Err(err).Str("form_id", f.ID).Msg("failed to record form notification delivery")
	} else {
		f.SentToTelegram = true
		f.TelegramMessageID = &msgID
	}
	return f, true, nil
}

// List returns all stored forms, newest first.
func (s *IntakeService) List(ctx context.Context) ([]domain.IntakeForm, error) {
	return s.Repo.ListIntakeForms(ctx, s.DB)
}
