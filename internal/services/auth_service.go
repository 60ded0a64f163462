// Package services – AuthService
//
// This file implements account registration, login, and token issuance.
// Passwords are stored as bcrypt hashes; sessions are stateless HS256 JWTs
// carrying the user id and role. Every account gets a generated numeric
// nickname shown to admins instead of the email.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jaevor/go-nanoid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/mkovtun/go-exchange-backend/internal/config"
	"github.com/mkovtun/go-exchange-backend/internal/domain"
	"github.com/mkovtun/go-exchange-backend/internal/repo"
)

// nicknameAttempts bounds the retry loop on nickname collisions. With 10^5
// possible nicknames collisions stay rare until the table is nearly full.
const nicknameAttempts = 10

// UserRepo defines the repository contract required by AuthService and
// UserService.
type UserRepo interface {
	CreateUser(ctx context.Context, db *gorm.DB, u *domain.User) error
	GetUser(ctx context.Context, db *gorm.DB, id string) (*domain.User, error)
	GetUserByEmail(ctx context.Context, db *gorm.DB, email string) (*domain.User, error)
	NicknameTaken(ctx context.Context, db *gorm.DB, nickname string) (bool, error)
	EmailTakenByOther(ctx context.Context, db *gorm.DB, email, excludeID string) (bool, error)
	CountUsers(ctx context.Context, db *gorm.DB, search string) (int64, error)
	ListUsersPage(ctx context.Context, db *gorm.DB, search string, offset, limit int) ([]domain.User, error)
	UpdateUser(ctx context.Context, db *gorm.DB, id string, updates map[string]any) error
	DeleteUser(ctx context.Context, db *gorm.DB, id string) error
}

// TokenClaims is the verified content of a session token.
type TokenClaims struct {
	UserID string
	Email  string
	Role   string
}

// AuthService provides registration, login, and token lifecycle operations.
type AuthService struct {
	DB   *gorm.DB
	Repo UserRepo

	cfg         config.AuthConfig
	genNickname func() string
	now         func() time.Time
}

// NewAuthService constructs an AuthService. It fails only when the nickname
// generator cannot be built, which indicates a programming error.
func NewAuthService(db *gorm.DB, r UserRepo, cfg config.AuthConfig) (*AuthService, error) {
	gen, err := nanoid.CustomASCII("0123456789", 5)
	if err != nil {
		return nil, fmt.Errorf("nickname generator: %w", err)
	}
	return &AuthService{DB: db, Repo: r, cfg: cfg, genNickname: gen, now: time.Now}, nil
}

// Register creates an account and returns it with a fresh session token.
func (s *AuthService) Register(ctx context.Context, email, password, name, phone string) (*domain.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)
	if email == "" || password == "" || name == "" {
		return nil, "", ErrMissingFields
	}

	if _, err := s.Repo.GetUserByEmail(ctx, s.DB, email); err == nil {
		return nil, "", ErrEmailTaken
	} else if !repo.IsNotFound(err) {
		return nil, "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cfg.BcryptCost)
	if err != nil {
		return nil, "", err
	}

	u := &domain.User{
		ID:        uuid.NewString(),
		Email:     email,
		Password:  string(hash),
		Name:      name,
		Phone:     strings.TrimSpace(phone),
		Role:      domain.RoleUser,
		CreatedAt: s.now().UTC(),
	}

	// Nickname collisions and create-time unique races share one retry loop.
	var lastErr error
	for i := 0; i < nicknameAttempts; i++ {
		nick := s.genNickname()
		taken, err := s.Repo.NicknameTaken(ctx, s.DB, nick)
		if err != nil {
			return nil, "", err
		}
		if taken {
			continue
		}
		u.Nickname = nick
		if err := s.Repo.CreateUser(ctx, s.DB, u); err != nil {
			if errors.Is(err, repo.ErrDuplicate) {
				lastErr = err
				continue
			}
			return nil, "", err
		}
		token, err := s.issueToken(u)
		if err != nil {
			return nil, "", err
		}
		return u, token, nil
	}
	if lastErr == nil {
		lastErr = errors.New("no free nickname found")
	}
	return nil, "", fmt.Errorf("register: %w", lastErr)
}

// Login verifies credentials and returns the account with a fresh token.
// Unknown email and wrong password are indistinguishable to the caller.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := s.Repo.GetUserByEmail(ctx, s.DB, email)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", err
	}
	if bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) != nil {
		return nil, "", ErrInvalidCredentials
	}
	token, err := s.issueToken(u)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

// Refresh issues a new token for an authenticated user, picking up role
// changes made since the old token was minted.
func (s *AuthService) Refresh(ctx context.Context, userID string) (*domain.User, string, error) {
	u, err := s.Repo.GetUser(ctx, s.DB, userID)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, "", ErrUserNotFound
		}
		return nil, "", err
	}
	token, err := s.issueToken(u)
	if err != nil {
		return nil, "", err
	}
	return u, token, nil
}

// ParseToken verifies a session token and returns its claims.
func (s *AuthService) ParseToken(tokenString string) (*TokenClaims, error) {
	tok, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return []byte(s.cfg.JWTSecret), nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !tok.Valid {
		return nil, ErrInvalidCredentials
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidCredentials
	}
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, ErrInvalidCredentials
	}
	email, _ := claims["email"].(string)
	role, _ := claims["role"].(string)
	return &TokenClaims{UserID: sub, Email: email, Role: role}, nil
}

func (s *AuthService) issueToken(u *domain.User) (string, error) {
	now := s.now().UTC()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   u.ID,
		"email": u.Email,
		"role":  u.Role,
		"iat":   now.Unix(),
		"exp":   now.Add(s.cfg.TokenTTL).Unix(),
	})
	return tok.SignedString([]byte(s.cfg.JWTSecret))
}
