// Account profile handlers.
//
//   - GET /auth/user/:id         (profile with order stats)
//   - GET /auth/user/:id/orders  (the account's exchange requests)
//
// Both routes are authenticated. A caller may only read their own profile
// unless they hold the admin role; foreign ids answer 404 so the route does
// not leak which account ids exist.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mkovtun/go-exchange-backend/internal/services"
)

// canReadProfile reports whether the caller may see the profile for id.
func canReadProfile(c *gin.Context, id string) bool {
	return id != "" && (userID(c) == id || isAdmin(c))
}

// GetProfile handles GET /auth/user/:id.
func (h *Handlers) GetProfile(c *gin.Context) {
	id := c.Param("id")
	if !canReadProfile(c, id) {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "user not found")
		return
	}
	p, err := h.userSvc.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not load profile")
		return
	}
	ok(c, http.StatusOK, p)
}

// GetProfileOrders handles GET /auth/user/:id/orders.
func (h *Handlers) GetProfileOrders(c *gin.Context) {
	id := c.Param("id")
	if !canReadProfile(c, id) {
		fail(c, http.StatusNotFound, ErrCodeNotFound, "user not found")
		return
	}
	items, err := h.exSvc.ListForUser(c.Request.Context(), id)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not list orders")
		return
	}
	ok(c, http.StatusOK, gin.H{"requests": items})
}
