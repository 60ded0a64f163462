// Telegram webhook handler.
//
// POST /telegram/webhook receives bot updates. The only update the backend
// acts on is the confirm-payment callback attached to request notifications;
// everything else is acknowledged and dropped.
//
// Telegram redelivers updates until it sees a 2xx, so the handler answers 200
// for every processable update, including unknown orders and duplicate
// confirmations. The completion itself is idempotent at the persistence
// layer, which makes redelivery harmless.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/mkovtun/go-exchange-backend/internal/http/middleware"
	"github.com/mkovtun/go-exchange-backend/internal/notify"
	"github.com/mkovtun/go-exchange-backend/internal/services"
)

// webhookSecretHeader is set by Telegram when the webhook was registered with
// a secret token.
const webhookSecretHeader = "X-Telegram-Bot-Api-Secret-Token"

// TelegramWebhook handles POST /telegram/webhook.
func (h *Handlers) TelegramWebhook(c *gin.Context) {
	if h.webhookSecret != "" && c.GetHeader(webhookSecretHeader) != h.webhookSecret {
		fail(c, http.StatusForbidden, ErrCodeForbidden, "invalid webhook secret")
		return
	}

	var update tgbotapi.Update
	if err := c.ShouldBindJSON(&update); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid update payload")
		return
	}

	cb := update.CallbackQuery
	if cb == nil {
		ok(c, http.StatusOK, gin.H{"handled": false})
		return
	}

	lg := middleware.LoggerFrom(c)

	orderID, isConfirm := notify.ParseConfirmation(cb.Data)
	if !isConfirm {
		h.ackCallback(c, cb.ID, "")
		ok(c, http.StatusOK, gin.H{"handled": false})
		return
	}

	req, confirmed, err := h.exSvc.ReconcileCallback(c.Request.Context(), orderID)
	if err != nil {
		if errors.Is(err, services.ErrRequestNotFound) {
			// Ack anyway: redelivering an unknown order never helps.
			lg.Warn().Str("order_id", orderID).Msg("confirmation for unknown order")
			h.ackCallback(c, cb.ID, "Order not found")
			ok(c, http.StatusOK, gin.H{"handled": false})
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not process confirmation")
		return
	}

	if confirmed {
		lg.Info().Str("order_id", orderID).Msg("payment confirmed via callback")
		h.ackCallback(c, cb.ID, "Payment confirmed")
	} else {
		lg.Info().Str("order_id", orderID).Msg("duplicate confirmation ignored")
		h.ackCallback(c, cb.ID, "Already confirmed")
	}
	ok(c, http.StatusOK, gin.H{"handled": true, "status": req.Status})
}

// ackCallback answers the callback query so the operator's client stops
// spinning. Failures are logged and swallowed.
func (h *Handlers) ackCallback(c *gin.Context, callbackID, text string) {
	if h.acker == nil || callbackID == "" {
		return
	}
	if err := h.acker.AnswerCallback(c.Request.Context(), callbackID, text); err != nil {
		middleware.LoggerFrom(c).Warn().Err(err).Msg("failed to answer callback query")
	}
}
