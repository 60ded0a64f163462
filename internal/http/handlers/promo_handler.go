// Promo code HTTP handlers.
//
// User-facing:
//   - GET  /promocodes           (own usable codes)
//   - POST /promocodes/validate  (check a code before checkout)
//
// Admin:
//   - POST   /admin/promocodes
//   - GET    /admin/promocodes
//   - GET    /admin/promocodes/:id
//   - DELETE /admin/promocodes/:id
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mkovtun/go-exchange-backend/internal/domain"
	"github.com/mkovtun/go-exchange-backend/internal/services"
)

// ListMyPromoCodes handles GET /promocodes for the authenticated user.
func (h *Handlers) ListMyPromoCodes(c *gin.Context) {
	uid := userID(c)
	if uid == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}
	codes, err := h.promoSvc.ListForUser(c.Request.Context(), uid)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not list promo codes")
		return
	}
	ok(c, http.StatusOK, gin.H{"promo_codes": codes})
}

// ValidatePromoRequest is the JSON payload for promo validation.
type ValidatePromoRequest struct {
	Code string `json:"code" binding:"required,max=16"`
}

// ValidatePromo handles POST /promocodes/validate.
func (h *Handlers) ValidatePromo(c *gin.Context) {
	uid := userID(c)
	if uid == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}
	var req ValidatePromoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}
	pc, err := h.promoSvc.Validate(c.Request.Context(), req.Code, uid)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrPromoInvalid):
			fail(c, http.StatusBadRequest, ErrCodePromoInvalid, err.Error())
		case errors.Is(err, services.ErrPromoNotOwned):
			fail(c, http.StatusForbidden, ErrCodeForbidden, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not validate promo code")
		}
		return
	}
	ok(c, http.StatusOK, gin.H{"valid": true, "discount": pc.Discount, "code": pc.Code})
}

// CreatePromoRequest is the JSON payload for issuing a promo code.
type CreatePromoRequest struct {
	UserID    string     `json:"user_id" binding:"required"`
	Discount  float64    `json:"discount" binding:"required,gt=0,lte=100"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// CreatePromo handles POST /admin/promocodes.
func (h *Handlers) CreatePromo(c *gin.Context) {
	var req CreatePromoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}
	pc, err := h.promoSvc.Create(c.Request.Context(), req.UserID, req.Discount, req.ExpiresAt, userID(c))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidDiscount), errors.Is(err, services.ErrPromoInvalid):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		case errors.Is(err, services.ErrUserNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not create promo code")
		}
		return
	}
	ok(c, http.StatusCreated, pc)
}

// ListPromosResponse wraps a page of promo codes.
type ListPromosResponse struct {
	PromoCodes []domain.PromoCode `json:"promo_codes"`
	Pagination Pagination         `json:"pagination"`
}

// ListPromos handles GET /admin/promocodes with optional ?search= and
// ?status= (active|used|expired).
func (h *Handlers) ListPromos(c *gin.Context) {
	page, pageSize := clampPagination(c)
	items, total, err := h.promoSvc.ListPage(c.Request.Context(), c.Query("search"), c.Query("status"), page, pageSize)
	if err != nil {
		if errors.Is(err, services.ErrInvalidStatus) {
			fail(c, http.StatusBadRequest, ErrCodeInvalidStatus, err.Error())
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not list promo codes")
		return
	}
	ok(c, http.StatusOK, ListPromosResponse{PromoCodes: items, Pagination: newPagination(page, pageSize, total)})
}

// GetPromo handles GET /admin/promocodes/:id.
func (h *Handlers) GetPromo(c *gin.Context) {
	pc, err := h.promoSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrPromoNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not load promo code")
		return
	}
	ok(c, http.StatusOK, pc)
}

// DeletePromo handles DELETE /admin/promocodes/:id.
func (h *Handlers) DeletePromo(c *gin.Context) {
	err := h.promoSvc.Delete(c.Request.Context(), c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrPromoNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
		case errors.Is(err, services.ErrPromoUsed):
			fail(c, http.StatusConflict, ErrCodePromoUsed, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not delete promo code")
		}
		return
	}
	noContent(c)
}
