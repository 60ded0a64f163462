// Package domain defines the persistence models for exchange requests, users,
// promo codes, order chats, and intake forms. These types are mapped with GORM
// and form the core data layer of the exchange backend.
package domain

import (
	"time"
)

// Exchange request lifecycle statuses. A request starts as StatusPending and
// ends in either StatusCompleted or StatusFailed; neither terminal state has
// outgoing transitions.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// ValidStatus reports whether s is one of the four request statuses.
func ValidStatus(s string) bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// ExchangeRequest is the central entity: one client-submitted exchange order.
//
// OrderID is client-chosen and unique; it doubles as the correlation key
// embedded into the Telegram confirmation button, so an asynchronous callback
// can be matched back to this row without knowing its internal ID.
//
// Invariants:
//   - AdminConfirmed is true if and only if Status == StatusCompleted.
//   - CompletedAt is set exactly once, at the transition into completed.
//   - SentToTelegram/TelegramMessageID/TelegramSentAt are written only after
//     a confirmed delivery; a row with SentToTelegram=false is a valid state
//     awaiting manual re-notification.
type ExchangeRequest struct {
	ID      string `json:"id"       gorm:"type:char(36);primaryKey"`
	OrderID string `json:"order_id" gorm:"type:varchar(64);not null;uniqueIndex:ux_requests_order_id"`

	FromCurrency     string  `json:"from_currency"     gorm:"type:varchar(16);not null"`
	ToCurrency       string  `json:"to_currency"       gorm:"type:varchar(16);not null"`
	Amount           float64 `json:"amount"            gorm:"not null"`
	CalculatedAmount float64 `json:"calculated_amount" gorm:"not null"`
	SenderWallet     string  `json:"sender_wallet"     gorm:"type:varchar(255);not null"`
	RecipientWallet  string  `json:"recipient_wallet"  gorm:"type:varchar(255);not null"`
	SaveFromWallet   bool    `json:"save_from_wallet"  gorm:"not null;default:false"`
	SaveToWallet     bool    `json:"save_to_wallet"    gorm:"not null;default:false"`

	UserID *string `json:"user_id,omitempty" gorm:"type:char(36);index"`

	Status string `json:"status" gorm:"type:varchar(16);not null;default:'pending';check:status IN ('pending','processing','completed','failed');index"`

	SentToTelegram    bool       `json:"sent_to_telegram"              gorm:"not null;default:false"`
	TelegramMessageID *int       `json:"telegram_message_id,omitempty"`
	TelegramSentAt    *time.Time `json:"telegram_sent_at,omitempty"`

	AdminConfirmed bool       `json:"admin_confirmed"        gorm:"not null;default:false"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	AdminNote      string     `json:"admin_note,omitempty"   gorm:"type:text"`

	PromoApplied  bool    `json:"promo_applied"      gorm:"not null;default:false"`
	PromoDiscount float64 `json:"promo_discount"     gorm:"not null;default:0"`
	PromoID       *string `json:"promo_id,omitempty" gorm:"type:char(36)"`

	CreatedAt time.Time `json:"created_at" gorm:"index"`
	UpdatedAt time.Time `json:"updated_at"`

	// User is the optional owner; anonymous intake leaves it nil.
	User *User `json:"user,omitempty" gorm:"foreignKey:UserID;references:ID"`
}

// TableName returns the database table name for ExchangeRequest.
func (ExchangeRequest) TableName() string { return "exchange_requests" }

// User roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User represents a registered account. Password holds the bcrypt hash and is
// never serialized. Nickname is a generated, unique numeric handle shown to
// admins instead of the email.
type User struct {
	ID       string `json:"id"              gorm:"type:char(36);primaryKey"`
	Email    string `json:"email"           gorm:"type:varchar(255);not null;uniqueIndex:ux_users_email"`
	Password string `json:"-"               gorm:"type:varchar(255);not null"`
	Name     string `json:"name"            gorm:"type:varchar(255);not null"`
	Nickname string `json:"nickname"        gorm:"type:varchar(16);not null;uniqueIndex:ux_users_nickname"`
	Phone    string `json:"phone,omitempty" gorm:"type:varchar(32)"`
	Role     string `json:"role"            gorm:"type:varchar(16);not null;default:'user';check:role IN ('user','admin')"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// PromoCode grants a user a percentage discount on one exchange. A used code
// is never deleted and never validates again; expiry defaults to 30 days
// after creation.
type PromoCode struct {
	ID       string  `json:"id"       gorm:"type:char(36);primaryKey"`
	Code     string  `json:"code"     gorm:"type:varchar(16);not null;uniqueIndex:ux_promo_code"`
	Discount float64 `json:"discount" gorm:"not null;check:discount >= 1 AND discount <= 100"`
	UserID   string  `json:"user_id"  gorm:"type:char(36);not null;index"`

	IsUsed        bool       `json:"is_used"                   gorm:"not null;default:false"`
	UsedAt        *time.Time `json:"used_at,omitempty"`
	UsedInOrderID *string    `json:"used_in_order_id,omitempty" gorm:"type:varchar(64)"`

	CreatedBy string    `json:"created_by" gorm:"type:char(36);not null"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at" gorm:"not null;index"`

	// User is the code owner; Creator is the admin who issued it.
	User    *User `json:"user,omitempty"    gorm:"foreignKey:UserID;references:ID"`
	Creator *User `json:"creator,omitempty" gorm:"foreignKey:CreatedBy;references:ID"`
}

// TableName returns the database table name for PromoCode.
func (PromoCode) TableName() string { return "promo_codes" }

// Chat statuses, monotonic: active -> closed -> archived.
const (
	ChatActive   = "active"
	ChatClosed   = "closed"
	ChatArchived = "archived"
)

// Chat is the support conversation attached 1:1 to an exchange order.
type Chat struct {
	ID      string `json:"id"       gorm:"type:char(36);primaryKey"`
	OrderID string `json:"order_id" gorm:"type:varchar(64);not null;uniqueIndex:ux_chats_order_id"`
	UserID  string `json:"user_id"  gorm:"type:char(36);not null;index"`
	Status  string `json:"status"   gorm:"type:varchar(16);not null;default:'active';check:status IN ('active','closed','archived');index"`

	LastMessageAt time.Time  `json:"last_message_at" gorm:"index"`
	ClosedAt      *time.Time `json:"closed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	User     *User         `json:"user,omitempty" gorm:"foreignKey:UserID;references:ID"`
	Messages []ChatMessage `json:"messages,omitempty" gorm:"foreignKey:ChatID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Chat.
func (Chat) TableName() string { return "chats" }

// Message senders.
const (
	SenderUser  = "user"
	SenderAdmin = "admin"
)

// ChatMessage is one utterance inside an order chat.
type ChatMessage struct {
	ID      string `json:"id"      gorm:"type:char(36);primaryKey"`
	ChatID  string `json:"chat_id" gorm:"type:char(36);not null;index:idx_chat_msgs,priority:1"`
	Sender  string `json:"sender"  gorm:"type:varchar(8);not null;check:sender IN ('user','admin')"`
	Content string `json:"content" gorm:"type:text;not null"`
	Read    bool   `json:"read"    gorm:"not null;default:false"`

	CreatedAt time.Time `json:"timestamp" gorm:"index:idx_chat_msgs,priority:2"`
}

// TableName returns the database table name for ChatMessage.
func (ChatMessage) TableName() string { return "chat_messages" }

// IntakeForm is the legacy anonymous intake shape (/send-form): a stripped
// exchange request without order correlation. Kept for the old landing page.
type IntakeForm struct {
	ID               string  `json:"id"                gorm:"type:char(36);primaryKey"`
	FromCurrency     string  `json:"from_currency"     gorm:"type:varchar(16);not null"`
	ToCurrency       string  `json:"to_currency"       gorm:"type:varchar(16);not null"`
	Amount           float64 `json:"amount"            gorm:"not null"`
	CalculatedAmount float64 `json:"calculated_amount" gorm:"not null"`
	SenderWallet     string  `json:"sender_wallet"     gorm:"type:varchar(255);not null"`

	SentToTelegram    bool       `json:"sent_to_telegram" gorm:"not null;default:false"`
	TelegramMessageID *int       `json:"telegram_message_id,omitempty"`
	TelegramSentAt    *time.Time `json:"telegram_sent_at,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

// TableName returns the database table name for IntakeForm.
func (IntakeForm) TableName() string { return "intake_forms" }
