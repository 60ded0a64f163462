// Auth HTTP handlers.
//
//   - POST /auth/register
//   - POST /auth/login
//   - POST /auth/refresh (authenticated)
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mkovtun/go-exchange-backend/internal/domain"
	"github.com/mkovtun/go-exchange-backend/internal/services"
)

// RegisterRequest is the JSON payload for account registration.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email,max=255"`
	Password string `json:"password" binding:"required,min=6,max=128"`
	Name     string `json:"name" binding:"required,max=255"`
	Phone    string `json:"phone" binding:"omitempty,max=32"`
}

// LoginRequest is the JSON payload for login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse carries the account and a fresh session token.
type AuthResponse struct {
	User  *domain.User `json:"user"`
	Token string       `json:"token"`
}

// Register handles POST /auth/register.
func (h *Handlers) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}
	u, token, err := h.authSvc.Register(c.Request.Context(), req.Email, req.Password, req.Name, req.Phone)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmailTaken):
			fail(c, http.StatusConflict, ErrCodeEmailTaken, err.Error())
		case errors.Is(err, services.ErrMissingFields):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not register")
		}
		return
	}
	ok(c, http.StatusCreated, AuthResponse{User: u, Token: token})
}

// Login handles POST /auth/login.
func (h *Handlers) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}
	u, token, err := h.authSvc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			fail(c, http.StatusUnauthorized, ErrCodeInvalidCredentials, err.Error())
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not log in")
		return
	}
	ok(c, http.StatusOK, AuthResponse{User: u, Token: token})
}

// Refresh handles POST /auth/refresh for an authenticated user.
func (h *Handlers) Refresh(c *gin.Context) {
	uid := userID(c)
	if uid == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}
	u, token, err := h.authSvc.Refresh(c.Request.Context(), uid)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "account no longer exists")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not refresh token")
		return
	}
	ok(c, http.StatusOK, AuthResponse{User: u, Token: token})
}
