// Legacy intake form handler.
//
// POST /send-form accepts the old landing page's anonymous exchange form and
// relays it to the operator channel. Kept for backward compatibility; new
// clients use POST /exchange.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mkovtun/go-exchange-backend/internal/services"
)

// IntakeFormRequest is the legacy form payload.
type IntakeFormRequest struct {
	FromCurrency     string  `json:"from_currency" binding:"required,max=16"`
	ToCurrency       string  `json:"to_currency" binding:"required,max=16"`
	Amount           float64 `json:"amount" binding:"required,gt=0"`
	CalculatedAmount float64 `json:"calculated_amount" binding:"omitempty,gte=0"`
	SenderWallet     string  `json:"sender_wallet" binding:"required,max=255"`
}

// SubmitForm handles POST /send-form.
func (h *Handlers) SubmitForm(c *gin.Context) {
	var req IntakeFormRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}
	form, notified, err := h.intakeSvc.Submit(c.Request.Context(), services.IntakeInput{
		FromCurrency:     req.FromCurrency,
		ToCurrency:       req.ToCurrency,
		Amount:           req.Amount,
		CalculatedAmount: req.CalculatedAmount,
		SenderWallet:     req.SenderWallet,
	})
	if err != nil {
		if errors.Is(err, services.ErrMissingFields) || errors.Is(err, services.ErrInvalidAmount) {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not submit form")
		return
	}

	status := http.StatusCreated
	if !notified {
		status = http.StatusAccepted
	}
	ok(c, status, gin.H{"form": form, "notified": notified})
}
