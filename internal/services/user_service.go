// Package services – UserService
//
// Admin-facing account management: paginated listing with search, profile
// views enriched with order counts, field updates, and deletion with a
// self-delete guard.
package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/mkovtun/go-exchange-backend/internal/domain"
	"github.com/mkovtun/go-exchange-backend/internal/repo"
)

// OrderCounter reports per-user order totals for the admin profile view.
type OrderCounter interface {
	CountOrdersByUser(ctx context.Context, db *gorm.DB, userID string) (total, completed int64, err error)
}

// UserService provides admin operations over accounts.
type UserService struct {
	DB     *gorm.DB
	Repo   UserRepo
	Orders OrderCounter
}

// NewUserService constructs a UserService.
func NewUserService(db *gorm.DB, r UserRepo, oc OrderCounter) *UserService {
	return &UserService{DB: db, Repo: r, Orders: oc}
}

// UserProfile is a user together with their order activity.
type UserProfile struct {
	User            *domain.User `json:"user"`
	TotalOrders     int64        `json:"total_orders"`
	CompletedOrders int64        `json:"completed_orders"`
}

// ListPage returns a page of users matching the optional search term,
// with the total count. It applies defaults for invalid page/pageSize.
func (s *UserService) ListPage(ctx context.Context, search string, page, pageSize int) ([]domain.User, int64, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := s.Repo.CountUsers(ctx, s.DB, search)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.User{}, 0, nil
	}
	items, err := s.Repo.ListUsersPage(ctx, s.DB, search, offset, pageSize)
	return items, total, err
}

// Get returns a user profile with order counts.
func (s *UserService) Get(ctx context.Context, id string) (*UserProfile, error) {
	u, err := s.Repo.GetUser(ctx, s.DB, id)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	total, completed, err := s.Orders.CountOrdersByUser(ctx, s.DB, id)
	if err != nil {
		return nil, err
	}
	return &UserProfile{User: u, TotalOrders: total, CompletedOrders: completed}, nil
}

// UpdateUserInput carries optional account updates; nil fields are untouched.
type UpdateUserInput struct {
	Email *string
	Name  *string
	Phone *string
	Role  *string
}

// Update applies account updates, keeping emails unique and roles valid.
func (s *UserService) Update(ctx context.Context, id string, in UpdateUserInput) (*domain.User, error) {
	updates := map[string]any{}
	if in.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*in.Email))
		if email == "" {
			return nil, ErrMissingFields
		}
		taken, err := s.Repo.EmailTakenByOther(ctx, s.DB, email, id)
		if err != nil {
			return nil, err
		}
		if taken {
			return nil, ErrEmailTaken
		}
		updates["email"] = email
	}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, ErrMissingFields
		}
		updates["name"] = name
	}
	if in.Phone != nil {
		updates["phone"] = strings.TrimSpace(*in.Phone)
	}
	if in.Role != nil {
		role := strings.ToLower(strings.TrimSpace(*in.Role))
		if role != domain.RoleUser && role != domain.RoleAdmin {
			return nil, ErrInvalidRole
		}
		updates["role"] = role
	}
	if len(updates) == 0 {
		return s.fetch(ctx, id)
	}

	if err := s.Repo.UpdateUser(ctx, s.DB, id, updates); err != nil {
		switch {
		case repo.IsNotFound(err):
			return nil, ErrUserNotFound
		case errors.Is(err, repo.ErrDuplicate):
			return nil, ErrEmailTaken
		}
		return nil, err
	}
	return s.fetch(ctx, id)
}

// Delete removes an account. An admin cannot delete themselves.
func (s *UserService) Delete(ctx context.Context, id, actorID string) error {
	if id == actorID {
		return ErrSelfDelete
	}
	if err := s.Repo.DeleteUser(ctx, s.DB, id); err != nil {
		if repo.IsNotFound(err) {
			return ErrUserNotFound
		}
		return err
	}
	return nil
}

func (s *UserService) fetch(ctx context.Context, id string) (*domain.User, error) {
	u, err := s.Repo.GetUser(ctx, s.DB, id)
	if err != nil {
		if repo.IsNotFound(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return u, nil
}
