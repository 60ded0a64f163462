// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging, panic recovery, metrics, CORS,
// security headers, and rate limiting.
//
// Design goals:
//   - Put observability first (OTel + Prometheus)
//   - Safe-by-default middleware ordering (RequestID → logging → recovery)
//   - Deterministic, minimal router setup; all dependencies injected
//   - Production-ready CORS and security header posture
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/mkovtun/go-exchange-backend/internal/config"
	"github.com/mkovtun/go-exchange-backend/internal/domain"
	"github.com/mkovtun/go-exchange-backend/internal/http/handlers"
	"github.com/mkovtun/go-exchange-backend/internal/http/middleware"
	"github.com/mkovtun/go-exchange-backend/internal/notify"
	"github.com/mkovtun/go-exchange-backend/internal/repo"
	"github.com/mkovtun/go-exchange-backend/internal/services"
)

// exchangeRepoShim adapts the repository free functions to the
// services.ExchangeRepo interface. This keeps services decoupled from the
// concrete repo package while reusing existing functions.
type exchangeRepoShim struct{}

func (exchangeRepoShim) CreateExchangeRequest(ctx context.Context, db *gorm.DB, req *domain.ExchangeRequest) error {
	return repo.CreateExchangeRequest(ctx, db, req)
}

func (exchangeRepoShim) GetExchangeRequest(ctx context.Context, db *gorm.DB, id string) (*domain.ExchangeRequest, error) {
	return repo.GetExchangeRequest(ctx, db, id)
}

func (exchangeRepoShim) GetExchangeRequestByOrderID(ctx context.Context, db *gorm.DB, orderID string) (*domain.ExchangeRequest, error) {
	return repo.GetExchangeRequestByOrderID(ctx, db, orderID)
}

func (exchangeRepoShim) ListRecentExchangeRequests(ctx context.Context, db *gorm.DB, limit int) ([]domain.ExchangeRequest, error) {
	return repo.ListRecentExchangeRequests(ctx, db, limit)
}

func (exchangeRepoShim) ListUserExchangeRequests(ctx context.Context, db *gorm.DB, userID string) ([]domain.ExchangeRequest, error) {
	return repo.ListUserExchangeRequests(ctx, db, userID)
}

func (exchangeRepoShim) CountExchangeRequests(ctx context.Context, db *gorm.DB, status string) (int64, error) {
	return repo.CountExchangeRequests(ctx, db, status)
}

func (exchangeRepoShim) ListExchangeRequestsPage(ctx context.Context, db *gorm.DB, status, sortField string, asc bool, offset, limit int) ([]domain.ExchangeRequest, error) {
	return repo.ListExchangeRequestsPage(ctx, db, status, sortField, asc, offset, limit)
}

func (exchangeRepoShim) MarkNotified(ctx context.Context, db *gorm.DB, id string, messageID int, at time.Time) error {
	return repo.MarkNotified(ctx, db, id, messageID, at)
}

func (exchangeRepoShim) CompleteByOrderID(ctx context.Context, db *gorm.DB, orderID string, now time.Time) (bool, error) {
	return repo.CompleteByOrderID(ctx, db, orderID, now)
}

func (exchangeRepoShim) UpdateExchangeStatus(ctx context.Context, db *gorm.DB, id, status, adminNote string) error {
	return repo.UpdateExchangeStatus(ctx, db, id, status, adminNote)
}

func (exchangeRepoShim) GetExchangeStats(ctx context.Context, db *gorm.DB, now time.Time) (*repo.ExchangeStats, error) {
	return repo.GetExchangeStats(ctx, db, now)
}

// CountOrdersByUser also satisfies services.OrderCounter for user profiles.
func (exchangeRepoShim) CountOrdersByUser(ctx context.Context, db *gorm.DB, userID string) (int64, int64, error) {
	return repo.CountOrdersByUser(ctx, db, userID)
}

// userRepoShim adapts the user repository functions to services.UserRepo.
type userRepoShim struct{}

func (userRepoShim) CreateUser(ctx context.Context, db *gorm.DB, u *domain.User) error {
	return repo.CreateUser(ctx, db, u)
}

func (userRepoShim) GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error) {
	return repo.GetUser(ctx, db, id)
}

func (userRepoShim) GetUserByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.User, error) {
	return repo.GetUserByEmail(ctx, db, email)
}

func (userRepoShim) NicknameTaken(ctx context.Context, db *gorm.DB, nickname string) (bool, error) {
	return repo.NicknameTaken(ctx, db, nickname)
}

func (userRepoShim) EmailTakenByOther(ctx context.Context, db *gorm.DB, email, excludeID string) (bool, error) {
	return repo.EmailTakenByOther(ctx, db, email, excludeID)
}

func (userRepoShim) CountUsers(ctx context.Context, db *gorm.DB, search string) (int64, error) {
	return repo.CountUsers(ctx, db, search)
}

func (userRepoShim) ListUsersPage(ctx context.Context, db *gorm.DB, search string, offset, limit int) ([]domain.User, error) {
	return repo.ListUsersPage(ctx, db, search, offset, limit)
}

func (userRepoShim) UpdateUser(ctx context.Context, db *gorm.DB, id string, updates map[string]any) error {
	return repo.UpdateUser(ctx, db, id, updates)
}

func (userRepoShim) DeleteUser(ctx context.Context, db *gorm.DB, id string) error {
	return repo.DeleteUser(ctx, db, id)
}

// promoRepoShim adapts the promo code repository functions to
// services.PromoRepo; it also satisfies services.PromoValidator.
type promoRepoShim struct{}

func (promoRepoShim) CreatePromoCode(ctx context.Context, db *gorm.DB, pc *domain.PromoCode) error {
	return repo.CreatePromoCode(ctx, db, pc)
}

func (promoRepoShim) GetPromoCode(ctx context.Context, db *gorm.DB, id string) (*domain.PromoCode, error) {
	return repo.GetPromoCode(ctx, db, id)
}

func (promoRepoShim) GetActivePromoCodeByCode(ctx context.Context, db *gorm.DB, code string, now time.Time) (*domain.PromoCode, error) {
	return repo.GetActivePromoCodeByCode(ctx, db, code, now)
}

func (promoRepoShim) ListUserPromoCodes(ctx context.Context, db *gorm.DB, userID string, now time.Time) ([]domain.PromoCode, error) {
	return repo.ListUserPromoCodes(ctx, db, userID, now)
}

func (promoRepoShim) CountPromoCodes(ctx context.Context, db *gorm.DB, search, status string, now time.Time) (int64, error) {
	return repo.CountPromoCodes(ctx, db, search, status, now)
}

func (promoRepoShim) ListPromoCodesPage(ctx context.Context, db *gorm.DB, search, status string, now time.Time, offset, limit int) ([]domain.PromoCode, error) {
	return repo.ListPromoCodesPage(ctx, db, search, status, now, offset, limit)
}

func (promoRepoShim) DeletePromoCode(ctx context.Context, db *gorm.DB, id string) error {
	return repo.DeletePromoCode(ctx, db, id)
}

func (promoRepoShim) MarkPromoCodeUsed(ctx context.Context, db *gorm.DB, id, orderID string, now time.Time) error {
	return repo.MarkPromoCodeUsed(ctx, db, id, orderID, now)
}

// chatRepoShim adapts the order chat repository functions to services.ChatRepo.
type chatRepoShim struct{}

func (chatRepoShim) CreateChat(ctx context.Context, db *gorm.DB, orderID, userID string) (*domain.Chat, error) {
	return repo.CreateChat(ctx, db, orderID, userID)
}

func (chatRepoShim) GetChat(ctx context.Context, db *gorm.DB, id string) (*domain.Chat, error) {
	return repo.GetChat(ctx, db, id)
}

func (chatRepoShim) GetChatByOrderID(ctx context.Context, db *gorm.DB, orderID string) (*domain.Chat, error) {
	return repo.GetChatByOrderID(ctx, db, orderID)
}

func (chatRepoShim) CountChats(ctx context.Context, db *gorm.DB, status string) (int64, error) {
	return repo.CountChats(ctx, db, status)
}

func (chatRepoShim) ListChatsPage(ctx context.Context, db *gorm.DB, status string, offset, limit int) ([]domain.Chat, error) {
	return repo.ListChatsPage(ctx, db, status, offset, limit)
}

func (chatRepoShim) ListChatMessages(ctx context.Context, db *gorm.DB, chatID string) ([]domain.ChatMessage, error) {
	return repo.ListChatMessages(ctx, db, chatID)
}

func (chatRepoShim) MarkUserMessagesRead(ctx context.Context, db *gorm.DB, chatID string) error {
	return repo.MarkUserMessagesRead(ctx, db, chatID)
}

func (chatRepoShim) AppendChatMessage(ctx context.Context, db *gorm.DB, chatID, sender, content string, read bool) (*domain.ChatMessage, error) {
	return repo.AppendChatMessage(ctx, db, chatID, sender, content, read)
}

func (chatRepoShim) TransitionChatStatus(ctx context.Context, db *gorm.DB, id, from, to string) error {
	return repo.TransitionChatStatus(ctx, db, id, from, to)
}

// intakeRepoShim adapts the legacy intake form functions to services.IntakeRepo.
type intakeRepoShim struct{}

func (intakeRepoShim) CreateIntakeForm(ctx context.Context, db *gorm.DB, f *domain.IntakeForm) error {
	return repo.CreateIntakeForm(ctx, db, f)
}

func (intakeRepoShim) ListIntakeForms(ctx context.Context, db *gorm.DB) ([]domain.IntakeForm, error) {
	return repo.ListIntakeForms(ctx, db)
}

func (intakeRepoShim) MarkFormNotified(ctx context.Context, db *gorm.DB, id string, messageID int, at time.Time) error {
	return repo.MarkFormNotified(ctx, db, id, messageID, at)
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine. It configures observability (tracing, metrics), rate limiting, CORS
// and security headers, health and metrics endpoints, and then mounts the
// versioned API under cfg.APIBasePath.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: structured logs with header masking
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Rate limiter (per user/IP)
//  8. CORS and Security headers
func RegisterRoutes(r *gin.Engine, db *gorm.DB, ch *notify.Channel, cfg config.Config) error {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured access logging
	r.Use(middleware.Logger())

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// Compress JSON responses; the admin lists and chat transcripts benefit most.
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Token-bucket rate limiter per user/IP
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP())
	r.Use(rl.Handler())

	// 8) CORS posture (safe defaults: allow all if none configured)
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header (helps tests and simple health checks).
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist (in addition to gin-contrib/cors).
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
			ExposeHeaders:    []string{"X-Request-ID", "Content-Length"},
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	// Dependency injection: services ← repo/db/notifier
	exSvc := services.NewExchangeService(db, exchangeRepoShim{}, promoRepoShim{}, ch,
		log.With().Str("component", "exchange").Logger())
	authSvc, err := services.NewAuthService(db, userRepoShim{}, cfg.Auth)
	if err != nil {
		return err
	}
	userSvc := services.NewUserService(db, userRepoShim{}, exchangeRepoShim{})
	promoSvc, err := services.NewPromoService(db, promoRepoShim{}, userRepoShim{})
	if err != nil {
		return err
	}
	chatSvc := services.NewChatService(db, chatRepoShim{})
	intakeSvc := services.NewIntakeService(db, intakeRepoShim{}, ch,
		log.With().Str("component", "intake").Logger())

	h := handlers.New(exSvc, authSvc, userSvc, promoSvc, chatSvc, intakeSvc, ch, cfg.Telegram.WebhookSecret)

	// Auth middleware shares the service's token verification.
	parser := middleware.TokenParserFunc(func(token string) (*middleware.Claims, error) {
		tc, err := authSvc.ParseToken(token)
		if err != nil {
			return nil, err
		}
		return &middleware.Claims{UserID: tc.UserID, Email: tc.Email, Role: tc.Role}, nil
	})
	// The admin guard re-reads the stored role so demotions apply immediately.
	roleLookup := middleware.RoleLookup(func(ctx context.Context, userID string) (string, error) {
		u, err := repo.GetUser(ctx, db, userID)
		if err != nil {
			return "", err
		}
		return u.Role, nil
	})

	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		// Intake: anonymous allowed, identity attached when a token is present
		api.POST("/exchange", middleware.OptionalAuth(parser), h.CreateExchange)
		api.GET("/exchange/recent", h.ListRecentExchanges)
		api.GET("/exchange/:orderId", h.GetExchangeByOrderID)
		api.POST("/send-form", middleware.OptionalAuth(parser), h.SubmitForm)

		// Payment confirmation callbacks from the bot platform
		api.POST("/telegram/webhook", h.TelegramWebhook)

		// Accounts
		api.POST("/auth/register", h.Register)
		api.POST("/auth/login", h.Login)
	}

	authed := api.Group("", middleware.RequireAuth(parser))
	{
		authed.POST("/auth/refresh", h.Refresh)
		authed.GET("/auth/user/:id", h.GetProfile)
		authed.GET("/auth/user/:id/orders", h.GetProfileOrders)
		authed.GET("/exchange", h.ListMyExchanges)

		// Promo codes
		authed.GET("/promocodes", h.ListMyPromoCodes)
		authed.POST("/promocodes/validate", h.ValidatePromo)

		// Order chats
		authed.POST("/chats", h.OpenChat)
		authed.GET("/chats/:id", h.GetChat)
		authed.POST("/chats/:id/messages", h.SendChatMessage)
	}

	admin := api.Group("/admin", middleware.RequireAuth(parser), middleware.RequireAdmin(roleLookup))
	{
		admin.GET("/users", h.ListUsers)
		admin.GET("/users/:id", h.GetUser)
		admin.PUT("/users/:id", h.UpdateUser)
		admin.DELETE("/users/:id", h.DeleteUser)

		admin.GET("/requests", h.ListRequests)
		admin.GET("/requests/:id", h.GetRequest)
		admin.PUT("/requests/:id/status", h.UpdateRequestStatus)
		admin.GET("/stats", h.GetStats)
		admin.GET("/forms", h.ListForms)

		admin.POST("/promocodes", h.CreatePromo)
		admin.GET("/promocodes", h.ListPromos)
		admin.GET("/promocodes/:id", h.GetPromo)
		admin.DELETE("/promocodes/:id", h.DeletePromo)

		admin.GET("/chats", h.ListChats)
		admin.PUT("/chats/:id/close", h.CloseChat)
		admin.PUT("/chats/:id/archive", h.ArchiveChat)
	}

	return nil
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
