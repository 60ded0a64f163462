package services

import (
	"context"
	"errors"
	"testing"

	"gorm.io/gorm"

	"github.com/mkovtun/go-exchange-backend/internal/domain"
)

type fakeOrderCounter struct {
	total     int64
	completed int64
}

func (c *fakeOrderCounter) CountOrdersByUser(ctx context.Context, db *gorm.DB, userID string) (int64, int64, error) {
	return c.total, c.completed, nil
}

func strPtr(s string) *string { return &s }

func TestUserGet_WithOrderCounts(t *testing.T) {
	r := newFakeUserRepo()
	r.users["u1"] = &domain.User{ID: "u1", Email: "a@b.c"}
	s := NewUserService(nil, r, &fakeOrderCounter{total: 7, completed: 3})

	p, err := s.Get(context.Background(), "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.TotalOrders != 7 || p.CompletedOrders != 3 {
		t.Errorf("profile = %+v", p)
	}

	if _, err := s.Get(context.Background(), "missing"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("missing = %v; want ErrUserNotFound", err)
	}
}

func TestUserUpdate(t *testing.T) {
	r := newFakeUserRepo()
	r.users["u1"] = &domain.User{ID: "u1", Email: "a@b.c", Name: "A"}
	s := NewUserService(nil, r, &fakeOrderCounter{})

	if _, err := s.Update(context.Background(), "u1", UpdateUserInput{
		Email: strPtr(" New@B.C "),
		Role:  strPtr("admin"),
	}); err != nil {
		t.Fatalf("update: %v", err)
	}
	up := r.updates["u1"]
	if up["email"] != "new@b.c" || up["role"] != domain.RoleAdmin {
		t.Errorf("updates = %v", up)
	}

	if _, err := s.Update(context.Background(), "u1", UpdateUserInput{Role: strPtr("root")}); !errors.Is(err, ErrInvalidRole) {
		t.Errorf("bad role = %v; want ErrInvalidRole", err)
	}

	r.emailInUse = true
	if _, err := s.Update(context.Background(), "u1", UpdateUserInput{Email: strPtr("taken@b.c")}); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("taken email = %v; want ErrEmailTaken", err)
	}
}

func TestUserDelete_SelfGuard(t *testing.T) {
	r := newFakeUserRepo()
	s := NewUserService(nil, r, &fakeOrderCounter{})

	if err := s.Delete(context.Background(), "admin-1", "admin-1"); !errors.Is(err, ErrSelfDelete) {
		t.Fatalf("self delete = %v; want ErrSelfDelete", err)
	}
	if len(r.deleted) != 0 {
		t.Error("self delete reached the repo")
	}

	if err := s.Delete(context.Background(), "u2", "admin-1"); err != nil {
		t.Fatalf("delete: %v", err)
	}

	r.deleteErr = gorm.ErrRecordNotFound
	if err := s.Delete(context.Background(), "missing", "admin-1"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("missing = %v; want ErrUserNotFound", err)
	}
}

func TestUserListPage_Defaults(t *testing.T) {
	r := newFakeUserRepo()
	r.countTotal = 30
	r.pageItems = []domain.User{{ID: "u1"}}
	s := NewUserService(nil, r, &fakeOrderCounter{})

	items, total, err := s.ListPage(context.Background(), "ali", 0, -5)
	if err != nil || total != 30 || len(items) != 1 {
		t.Fatalf("list = (%d items, %d, %v)", len(items), total, err)
	}
	if r.pageOffset != 0 || r.pageLimit != 20 {
		t.Errorf("defaults = offset %d limit %d", r.pageOffset, r.pageLimit)
	}
	if r.pageSearch != "ali" {
		t.Errorf("search = %q", r.pageSearch)
	}
}
