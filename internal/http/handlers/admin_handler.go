// Admin HTTP handlers.
//
// All routes in this file are mounted behind the auth + admin-guard
// middleware chain:
//   - GET    /admin/users
//   - GET    /admin/users/:id
//   - PUT    /admin/users/:id
//   - DELETE /admin/users/:id
//   - GET    /admin/requests
//   - GET    /admin/requests/:id
//   - PUT    /admin/requests/:id/status
//   - GET    /admin/stats
//   - GET    /admin/forms
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mkovtun/go-exchange-backend/internal/domain"
	"github.com/mkovtun/go-exchange-backend/internal/services"
)

// ListUsersResponse wraps a page of users and pagination information.
type ListUsersResponse struct {
	Users      []domain.User `json:"users"`
	Pagination Pagination    `json:"pagination"`
}

// ListUsers handles GET /admin/users with optional ?search=.
func (h *Handlers) ListUsers(c *gin.Context) {
	page, pageSize := clampPagination(c)
	items, total, err := h.userSvc.ListPage(c.Request.Context(), c.Query("search"), page, pageSize)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not list users")
		return
	}
	ok(c, http.StatusOK, ListUsersResponse{Users: items, Pagination: newPagination(page, pageSize, total)})
}

// GetUser handles GET /admin/users/:id.
func (h *Handlers) GetUser(c *gin.Context) {
	p, err := h.userSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not load user")
		return
	}
	ok(c, http.StatusOK, p)
}

// UpdateUserRequest carries optional account updates; omitted fields are
// untouched.
type UpdateUserRequest struct {
	Email *string `json:"email" binding:"omitempty,email,max=255"`
	Name  *string `json:"name" binding:"omitempty,max=255"`
	Phone *string `json:"phone" binding:"omitempty,max=32"`
	Role  *string `json:"role" binding:"omitempty,oneof=user admin"`
}

// UpdateUser handles PUT /admin/users/:id.
func (h *Handlers) UpdateUser(c *gin.Context) {
	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}
	u, err := h.userSvc.Update(c.Request.Context(), c.Param("id"), services.UpdateUserInput{
		Email: req.Email,
		Name:  req.Name,
		Phone: req.Phone,
		Role:  req.Role,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUserNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
		case errors.Is(err, services.ErrEmailTaken):
			fail(c, http.StatusConflict, ErrCodeEmailTaken, err.Error())
		case errors.Is(err, services.ErrInvalidRole), errors.Is(err, services.ErrMissingFields):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not update user")
		}
		return
	}
	ok(c, http.StatusOK, u)
}

// DeleteUser handles DELETE /admin/users/:id.
func (h *Handlers) DeleteUser(c *gin.Context) {
	err := h.userSvc.Delete(c.Request.Context(), c.Param("id"), userID(c))
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUserNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
		case errors.Is(err, services.ErrSelfDelete):
			fail(c, http.StatusConflict, ErrCodeSelfDelete, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not delete user")
		}
		return
	}
	noContent(c)
}

// ListRequestsResponse wraps a page of exchange requests.
type ListRequestsResponse struct {
	Requests   []domain.ExchangeRequest `json:"requests"`
	Pagination Pagination               `json:"pagination"`
}

// ListRequests handles GET /admin/requests with optional ?status=,
// ?sort_field= and ?sort_order=.
func (h *Handlers) ListRequests(c *gin.Context) {
	page, pageSize := clampPagination(c)
	items, total, err := h.exSvc.ListPage(c.Request.Context(),
		c.Query("status"), c.Query("sort_field"), c.Query("sort_order"), page, pageSize)
	if err != nil {
		if errors.Is(err, services.ErrInvalidStatus) {
			fail(c, http.StatusBadRequest, ErrCodeInvalidStatus, err.Error())
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not list requests")
		return
	}
	ok(c, http.StatusOK, ListRequestsResponse{Requests: items, Pagination: newPagination(page, pageSize, total)})
}

// GetRequest handles GET /admin/requests/:id.
func (h *Handlers) GetRequest(c *gin.Context) {
	req, err := h.exSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, services.ErrRequestNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not load request")
		return
	}
	ok(c, http.StatusOK, req)
}

// UpdateRequestStatusRequest is the JSON payload for a status transition.
type UpdateRequestStatusRequest struct {
	Status    string `json:"status" binding:"required"`
	AdminNote string `json:"admin_note" binding:"omitempty,max=2000"`
}

// UpdateRequestStatus handles PUT /admin/requests/:id/status.
func (h *Handlers) UpdateRequestStatus(c *gin.Context) {
	var req UpdateRequestStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}
	updated, err := h.exSvc.UpdateStatus(c.Request.Context(), c.Param("id"), req.Status, req.AdminNote)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidStatus):
			fail(c, http.StatusBadRequest, ErrCodeInvalidStatus, err.Error())
		case errors.Is(err, services.ErrRequestNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not update status")
		}
		return
	}
	ok(c, http.StatusOK, updated)
}

// GetStats handles GET /admin/stats.
func (h *Handlers) GetStats(c *gin.Context) {
	stats, err := h.exSvc.Stats(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not compute statistics")
		return
	}
	ok(c, http.StatusOK, stats)
}

// ListForms handles GET /admin/forms (legacy intake submissions).
func (h *Handlers) ListForms(c *gin.Context) {
	forms, err := h.intakeSvc.List(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not list forms")
		return
	}
	ok(c, http.StatusOK, gin.H{"forms": forms})
}
