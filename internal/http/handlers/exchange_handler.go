// Exchange request HTTP handlers.
//
// This file exposes the public exchange intake endpoints:
//   - POST /exchange             (create a request, notify operators)
//   - GET  /exchange             (authenticated user's own requests)
//   - GET  /exchange/recent      (latest requests, public)
//   - GET  /exchange/:orderId    (status check by order id)
//
// The create endpoint distinguishes full success (201) from partial success
// (202): a request that was stored but could not be mirrored to the operator
// channel is still accepted, and the response says so instead of failing.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mkovtun/go-exchange-backend/internal/domain"
	"github.com/mkovtun/go-exchange-backend/internal/services"
	"github.com/mkovtun/go-exchange-backend/internal/utils"
)

// CreateExchangeRequest is the JSON payload for creating an exchange request.
type CreateExchangeRequest struct {
	OrderID          string  `json:"order_id" binding:"required,max=64"`
	FromCurrency     string  `json:"from_currency" binding:"required,max=16"`
	ToCurrency       string  `json:"to_currency" binding:"required,max=16"`
	Amount           float64 `json:"amount" binding:"required,gt=0"`
	CalculatedAmount float64 `json:"calculated_amount" binding:"required,gt=0"`
	SenderWallet     string  `json:"sender_wallet" binding:"required,max=255"`
	RecipientWallet  string  `json:"recipient_wallet" binding:"required,max=255"`
	SaveFromWallet   bool    `json:"save_from_wallet"`
	SaveToWallet     bool    `json:"save_to_wallet"`
	PromoCode        string  `json:"promo_code" binding:"omitempty,max=16"`
}

// CreateExchangeResponse reports the stored request and whether operators
// were notified. Notified=false means the request is stored and awaiting
// manual attention. Notified reports delivery to the operator channel; the
// embedded request's sent_to_telegram field reports the recorded bookkeeping,
// which can lag when the delivery succeeded but recording it failed.
type CreateExchangeResponse struct {
	Request  *domain.ExchangeRequest `json:"request"`
	Notified bool                    `json:"notified"`
}

// CreateExchange handles POST /exchange.
func (h *Handlers) CreateExchange(c *gin.Context) {
	var req CreateExchangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}

	in := services.CreateRequestInput{
		OrderID:          req.OrderID,
		FromCurrency:     req.FromCurrency,
		ToCurrency:       req.ToCurrency,
		Amount:           req.Amount,
		CalculatedAmount: req.CalculatedAmount,
		SenderWallet:     req.SenderWallet,
		RecipientWallet:  req.RecipientWallet,
		SaveFromWallet:   req.SaveFromWallet,
		SaveToWallet:     req.SaveToWallet,
		PromoCode:        req.PromoCode,
	}
	if uid := userID(c); uid != "" {
		in.UserID = &uid
	}

	res, err := h.exSvc.Create(c.Request.Context(), in)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrMissingFields), errors.Is(err, services.ErrInvalidAmount):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		case errors.Is(err, services.ErrOrderIDTaken):
			fail(c, http.StatusConflict, ErrCodeConflict, err.Error())
		case errors.Is(err, services.ErrPromoInvalid):
			fail(c, http.StatusBadRequest, ErrCodePromoInvalid, err.Error())
		case errors.Is(err, services.ErrPromoNotOwned):
			fail(c, http.StatusForbidden, ErrCodeForbidden, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not create exchange request")
		}
		return
	}

	status := http.StatusCreated
	if !res.Notified {
		// Stored but not mirrored to the operator channel.
		status = http.StatusAccepted
	}
	ok(c, status, CreateExchangeResponse{Request: res.Request, Notified: res.Notified})
}

// GetExchangeByOrderID handles GET /exchange/:orderId.
func (h *Handlers) GetExchangeByOrderID(c *gin.Context) {
	req, err := h.exSvc.GetByOrderID(c.Request.Context(), c.Param("orderId"))
	if err != nil {
		if errors.Is(err, services.ErrRequestNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not load exchange request")
		return
	}
	ok(c, http.StatusOK, req)
}

// ListRecentExchanges handles GET /exchange/recent with optional ?limit=.
func (h *Handlers) ListRecentExchanges(c *gin.Context) {
	limit := utils.AtoiDefault(c.Query("limit"), 100)
	items, err := h.exSvc.ListRecent(c.Request.Context(), limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not list exchange requests")
		return
	}
	ok(c, http.StatusOK, gin.H{"requests": items})
}

// ListMyExchanges handles GET /exchange for the authenticated user.
func (h *Handlers) ListMyExchanges(c *gin.Context) {
	uid := userID(c)
	if uid == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}
	items, err := h.exSvc.ListForUser(c.Request.Context(), uid)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not list exchange requests")
		return
	}
	ok(c, http.StatusOK, gin.H{"requests": items})
}
