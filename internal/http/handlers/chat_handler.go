// Order chat HTTP handlers.
//
// User-facing (authenticated):
//   - POST /chats                 (open the chat for an order)
//   - GET  /chats/:id             (chat with messages)
//   - POST /chats/:id/messages    (send a message)
//
// Admin:
//   - GET /admin/chats            (list by status)
//   - PUT /admin/chats/:id/close
//   - PUT /admin/chats/:id/archive
//
// Ownership: a user only ever sees their own chat; admins see all. The sender
// of a message is derived from the authenticated role, never from the payload.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mkovtun/go-exchange-backend/internal/domain"
	"github.com/mkovtun/go-exchange-backend/internal/services"
)

// OpenChatRequest is the JSON payload for opening an order chat.
type OpenChatRequest struct {
	OrderID string `json:"order_id" binding:"required,max=64"`
}

// OpenChat handles POST /chats.
func (h *Handlers) OpenChat(c *gin.Context) {
	uid := userID(c)
	if uid == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}
	var req OpenChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}
	chat, err := h.chatSvc.OpenForOrder(c.Request.Context(), req.OrderID, uid)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not open chat")
		return
	}
	ok(c, http.StatusOK, chat)
}

// GetChat handles GET /chats/:id.
func (h *Handlers) GetChat(c *gin.Context) {
	uid := userID(c)
	if uid == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}
	admin := isAdmin(c)
	chat, err := h.chatSvc.Get(c.Request.Context(), c.Param("id"), admin)
	if err != nil {
		if errors.Is(err, services.ErrChatNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not load chat")
		return
	}
	if !admin && chat.UserID != uid {
		// Hide existence of other users' chats.
		fail(c, http.StatusNotFound, ErrCodeNotFound, services.ErrChatNotFound.Error())
		return
	}
	ok(c, http.StatusOK, chat)
}

// SendChatMessageRequest is the JSON payload for sending a chat message.
type SendChatMessageRequest struct {
	Content string `json:"content" binding:"required,max=4000"`
}

// SendChatMessage handles POST /chats/:id/messages.
func (h *Handlers) SendChatMessage(c *gin.Context) {
	uid := userID(c)
	if uid == "" {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}
	var req SendChatMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid request body")
		return
	}

	admin := isAdmin(c)
	chatID := c.Param("id")
	if !admin {
		chat, err := h.chatSvc.Get(c.Request.Context(), chatID, false)
		if err != nil || chat.UserID != uid {
			fail(c, http.StatusNotFound, ErrCodeNotFound, services.ErrChatNotFound.Error())
			return
		}
	}

	sender := domain.SenderUser
	if admin {
		sender = domain.SenderAdmin
	}
	msg, err := h.chatSvc.SendMessage(c.Request.Context(), chatID, sender, req.Content)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrChatNotFound):
			fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
		case errors.Is(err, services.ErrChatNotActive):
			fail(c, http.StatusConflict, ErrCodeChatNotActive, err.Error())
		case errors.Is(err, services.ErrEmptyMessage):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not send message")
		}
		return
	}
	ok(c, http.StatusCreated, msg)
}

// ListChatsResponse wraps a page of chats.
type ListChatsResponse struct {
	Chats      []domain.Chat `json:"chats"`
	Pagination Pagination    `json:"pagination"`
}

// ListChats handles GET /admin/chats with ?status= (default active).
func (h *Handlers) ListChats(c *gin.Context) {
	status := c.DefaultQuery("status", domain.ChatActive)
	page, pageSize := clampPagination(c)
	items, total, err := h.chatSvc.ListPage(c.Request.Context(), status, page, pageSize)
	if err != nil {
		if errors.Is(err, services.ErrInvalidStatus) {
			fail(c, http.StatusBadRequest, ErrCodeInvalidStatus, err.Error())
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not list chats")
		return
	}
	ok(c, http.StatusOK, ListChatsResponse{Chats: items, Pagination: newPagination(page, pageSize, total)})
}

// CloseChat handles PUT /admin/chats/:id/close.
func (h *Handlers) CloseChat(c *gin.Context) {
	h.transitionChat(c, h.chatSvc.Close)
}

// ArchiveChat handles PUT /admin/chats/:id/archive.
func (h *Handlers) ArchiveChat(c *gin.Context) {
	h.transitionChat(c, h.chatSvc.Archive)
}

// transitionChat maps the shared close/archive error handling.
func (h *Handlers) transitionChat(c *gin.Context, op func(ctx context.Context, id string) error) {
	err := op(c.Request.Context(), c.Param("id"))
	if err == nil {
		noContent(c)
		return
	}
	switch {
	case errors.Is(err, services.ErrChatNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, services.ErrChatNotActive), errors.Is(err, services.ErrChatNotClosed):
		fail(c, http.StatusConflict, ErrCodeConflict, err.Error())
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not update chat")
	}
}
