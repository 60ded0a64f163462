// Handler wiring and shared helpers.
//
// Handlers are transport-thin: they validate input, call application services,
// and translate service errors into HTTP responses. All business rules live
// in the services package; everything here is serialization and status
// mapping.
package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mkovtun/go-exchange-backend/internal/domain"
	"github.com/mkovtun/go-exchange-backend/internal/repo"
	"github.com/mkovtun/go-exchange-backend/internal/services"
	"github.com/mkovtun/go-exchange-backend/internal/utils"
)

//
// Service contracts (context-aware)
//

// ExchangeService defines the exchange request operations consumed by HTTP
// handlers. Implementations must be safe for concurrent use and honor the
// provided context.
type ExchangeService interface {
	Create(ctx context.Context, in services.CreateRequestInput) (*services.CreateResult, error)
	ReconcileCallback(ctx context.Context, orderID string) (*domain.ExchangeRequest, bool, error)
	UpdateStatus(ctx context.Context, id, status, adminNote string) (*domain.ExchangeRequest, error)
	Get(ctx context.Context, id string) (*domain.ExchangeRequest, error)
	GetByOrderID(ctx context.Context, orderID string) (*domain.ExchangeRequest, error)
	ListRecent(ctx context.Context, limit int) ([]domain.ExchangeRequest, error)
	ListForUser(ctx context.Context, userID string) ([]domain.ExchangeRequest, error)
	ListPage(ctx context.Context, status, sortField, sortOrder string, page, pageSize int) ([]domain.ExchangeRequest, int64, error)
	Stats(ctx context.Context) (*repo.ExchangeStats, error)
}

// AuthService defines account and session operations.
type AuthService interface {
	Register(ctx context.Context, email, password, name, phone string) (*domain.User, string, error)
	Login(ctx context.Context, email, password string) (*domain.User, string, error)
	Refresh(ctx context.Context, userID string) (*domain.User, string, error)
}

// UserService defines admin account management operations.
type UserService interface {
	ListPage(ctx context.Context, search string, page, pageSize int) ([]domain.User, int64, error)
	Get(ctx context.Context, id string) (*services.UserProfile, error)
	Update(ctx context.Context, id string, in services.UpdateUserInput) (*domain.User, error)
	Delete(ctx context.Context, id, actorID string) error
}

// PromoService defines promo code operations.
type PromoService interface {
	Create(ctx context.Context, userID string, discount float64, expiresAt *time.Time, createdBy string) (*domain.PromoCode, error)
	Get(ctx context.Context, id string) (*domain.PromoCode, error)
	Validate(ctx context.Context, code, userID string) (*domain.PromoCode, error)
	ListForUser(ctx context.Context, userID string) ([]domain.PromoCode, error)
	ListPage(ctx context.Context, search, status string, page, pageSize int) ([]domain.PromoCode, int64, error)
	Delete(ctx context.Context, id string) error
}

// ChatService defines order chat operations.
type ChatService interface {
	OpenForOrder(ctx context.Context, orderID, userID string) (*domain.Chat, error)
	Get(ctx context.Context, id string, adminReader bool) (*domain.Chat, error)
	SendMessage(ctx context.Context, chatID, sender, content string) (*domain.ChatMessage, error)
	Close(ctx context.Context, id string) error
	Archive(ctx context.Context, id string) error
	ListPage(ctx context.Context, status string, page, pageSize int) ([]domain.Chat, int64, error)
}

// IntakeService defines the legacy form operations.
type IntakeService interface {
	Submit(ctx context.Context, in services.IntakeInput) (*domain.IntakeForm, bool, error)
	List(ctx context.Context) ([]domain.IntakeForm, error)
}

// CallbackAcker acknowledges Telegram callback queries after processing.
type CallbackAcker interface {
	AnswerCallback(ctx context.Context, callbackID, text string) error
}

// Handlers groups all HTTP endpoints. It depends on abstract service
// interfaces to keep transport concerns separate from business logic.
type Handlers struct {
	exSvc     ExchangeService
	authSvc   AuthService
	userSvc   UserService
	promoSvc  PromoService
	chatSvc   ChatService
	intakeSvc IntakeService
	acker     CallbackAcker

	webhookSecret string
}

// New constructs a Handlers instance bound to the given services.
func New(ex ExchangeService, auth AuthService, users UserService, promos PromoService, chats ChatService, intake IntakeService, acker CallbackAcker, webhookSecret string) *Handlers {
	return &Handlers{
		exSvc:         ex,
		authSvc:       auth,
		userSvc:       users,
		promoSvc:      promos,
		chatSvc:       chats,
		intakeSvc:     intake,
		acker:         acker,
		webhookSecret: webhookSecret,
	}
}

//
// Shared helpers
//

// userID extracts the authenticated user id set by the auth middleware.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// userRole extracts the authenticated role set by the auth middleware.
func userRole(c *gin.Context) string {
	if v, ok := c.Get("userRole"); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func isAdmin(c *gin.Context) bool { return userRole(c) == domain.RoleAdmin }

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// newPagination derives the metadata block from a page request and total.
func newPagination(page, pageSize int, total int64) Pagination {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

// clampPagination parses and bounds page and page_size query params.
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}
