// Package notify implements the operator notification channel on top of the
// Telegram Bot API. It owns the bot client lifecycle (lazy initialization,
// rebuild after credential failures), bounded send retries, and the
// confirm-payment callback payload format.
//
// Design notes:
//   - The channel never dials at construction time; a misconfigured or
//     unreachable Telegram endpoint surfaces on first use, not at startup.
//   - The stored record is authoritative; everything sent here is a
//     best-effort mirror. Callers persist delivery metadata only after Send
//     reports a confirmed delivery, and treat EditMessage failures as
//     log-only events.
package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/mkovtun/go-exchange-backend/internal/config"
)

// confirmPrefix is the callback-data prefix carried by the inline
// confirmation button. The remainder is the client-chosen order id, which is
// the only identity the callback path has access to.
const confirmPrefix = "confirm_payment:"

var (
	// ErrNotConfigured means the bot token or target chat id is missing.
	ErrNotConfigured = errors.New("telegram channel is not configured")

	// ErrDeliveryFailed means all bounded send attempts were exhausted.
	// Callers must treat "stored but not notified" as a valid state and
	// never roll back prior persistence on this error.
	ErrDeliveryFailed = errors.New("telegram delivery failed")
)

// ConfirmationData builds the callback payload for an order's confirm button.
func ConfirmationData(orderID string) string { return confirmPrefix + orderID }

// ParseConfirmation extracts the order id from a callback payload.
// The second result is false when the payload is not a confirm action.
func ParseConfirmation(data string) (string, bool) {
	orderID, found := strings.CutPrefix(data, confirmPrefix)
	if !found || orderID == "" {
		return "", false
	}
	return orderID, true
}

// botAPI is the slice of *tgbotapi.BotAPI the channel uses. The seam exists
// so tests can inject transport and auth failures.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Channel is the owned handle to the Telegram notification endpoint.
// It is safe for concurrent use.
type Channel struct {
	cfg config.TelegramConfig
	log zerolog.Logger

	mu  sync.Mutex
	api botAPI

	// newAPI and sleep are test seams.
	newAPI func(token string) (botAPI, error)
	sleep  func(time.Duration)
}

// NewChannel constructs a channel from configuration without dialing.
func NewChannel(cfg config.TelegramConfig, log zerolog.Logger) *Channel {
	return &Channel{
		cfg: cfg,
		log: log.With().Str("component", "telegram").Logger(),
		newAPI: func(token string) (botAPI, error) {
			return tgbotapi.NewBotAPI(token)
		},
		sleep: time.Sleep,
	}
}

// Configured reports whether the channel has credentials to work with.
func (ch *Channel) Configured() bool {
	return ch.cfg.BotToken != "" && ch.cfg.ChatID != 0
}

// client returns the cached bot client, lazily building it. A client that
// failed to build is not cached, so the next call retries from scratch.
func (ch *Channel) client() (botAPI, error) {
	if !ch.Configured() {
		return nil, ErrNotConfigured
	}
	ch.mu.Lock()
	defer ch.mu.Unlock()
	if ch.api != nil {
		return ch.api, nil
	}
	api, err := ch.newAPI(ch.cfg.BotToken)
	if err != nil {
		return nil, err
	}
	ch.api = api
	return api, nil
}

// drop discards the cached client so the next use rebuilds it.
func (ch *Channel) drop() {
	ch.mu.Lock()
	ch.api = nil
	ch.mu.Unlock()
}

// isAuthError reports whether err is a credential/session-class failure that
// warrants rebuilding the client before the next attempt.
func isAuthError(err error) bool {
	var tgErr *tgbotapi.Error
	if errors.As(err, &tgErr) {
		return tgErr.Code == http.StatusUnauthorized || tgErr.Code == http.StatusForbidden
	}
	low := strings.ToLower(err.Error())
	return strings.Contains(low, "unauthorized") || strings.Contains(low, "forbidden")
}

// Send delivers an HTML-formatted message carrying a single inline
// confirmation button whose payload embeds correlationKey. It returns the
// external message id used for later edits.
//
// Transient failures are retried up to the configured attempt bound with a
// fixed delay; auth-class failures additionally drop the cached client so
// the next attempt reconnects. Exhausting all attempts yields
// ErrDeliveryFailed (wrapped); a missing configuration yields
// ErrNotConfigured immediately.
func (ch *Channel) Send(ctx context.Context, text, correlationKey string) (int, error) {
	msg := tgbotapi.NewMessage(ch.cfg.ChatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Confirm payment", ConfirmationData(correlationKey)),
		),
	)
	return ch.sendWithRetry(ctx, msg)
}

// SendPlain delivers a plain-text message without controls, with the same
// retry behavior as Send. Used by the legacy intake relay.
func (ch *Channel) SendPlain(ctx context.Context, text string) (int, error) {
	return ch.sendWithRetry(ctx, tgbotapi.NewMessage(ch.cfg.ChatID, text))
}

func (ch *Channel) sendWithRetry(ctx context.Context, msg tgbotapi.MessageConfig) (int, error) {
	var lastErr error
	for attempt := 1; attempt <= ch.cfg.SendAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		api, err := ch.client()
		if err != nil {
			if errors.Is(err, ErrNotConfigured) {
				return 0, err
			}
			lastErr = err
		} else {
			sent, err := api.Send(msg)
			if err == nil {
				return sent.MessageID, nil
			}
			lastErr = err
			if isAuthError(err) {
				// Stale session: rebuild the client before the next attempt.
				ch.log.Warn().Err(err).Int("attempt", attempt).Msg("auth error, rebuilding bot client")
				ch.drop()
			}
		}

		ch.log.Warn().Err(lastErr).
			Int("attempt", attempt).
			Int("max_attempts", ch.cfg.SendAttempts).
			Msg("telegram send failed")
		if attempt < ch.cfg.SendAttempts {
			ch.sleep(ch.cfg.RetryDelay)
		}
	}
	return 0, fmt.Errorf("%w: %v", ErrDeliveryFailed, lastErr)
}

// EditMessage rewrites a previously sent message, removing its controls.
// Best-effort: the caller logs the returned error but never propagates it to
// the client whose action triggered the edit.
func (ch *Channel) EditMessage(ctx context.Context, messageID int, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	api, err := ch.client()
	if err != nil {
		return err
	}
	edit := tgbotapi.NewEditMessageText(ch.cfg.ChatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeHTML
	if _, err := api.Send(edit); err != nil {
		if isAuthError(err) {
			ch.drop()
		}
		return err
	}
	return nil
}

// AnswerCallback acknowledges a callback query so the Telegram client stops
// showing its progress indicator. Best-effort.
func (ch *Channel) AnswerCallback(ctx context.Context, callbackID, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	api, err := ch.client()
	if err != nil {
		return err
	}
	_, err = api.Request(tgbotapi.NewCallback(callbackID, text))
	return err
}
