package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/mkovtun/go-exchange-backend/internal/domain"
	"github.com/mkovtun/go-exchange-backend/internal/services"
)

func TestListUsers_PassesSearchAndPagination(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var gotSearch string
	var gotPage, gotSize int
	svc := stubUserSvc{
		listPage: func(_ context.Context, search string, page, pageSize int) ([]domain.User, int64, error) {
			gotSearch, gotPage, gotSize = search, page, pageSize
			return []domain.User{{ID: "u1"}}, 1, nil
		},
	}
	h := newTestHandlers(withUsers(svc))
	r := gin.New()
	r.GET("/admin/users", h.ListUsers)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/users?search=ann&page=2&page_size=5", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("list -> %d", w.Code)
	}
	if gotSearch != "ann" || gotPage != 2 || gotSize != 5 {
		t.Fatalf("args = %q %d %d", gotSearch, gotPage, gotSize)
	}
	var out ListUsersResponse
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("json: %v", err)
	}
	if out.Pagination.Total != 1 || len(out.Users) != 1 {
		t.Fatalf("unexpected response: %+v", out)
	}
}

func TestUpdateUser_Validation_and_Conflicts(t *testing.T) {
	gin.SetMode(gin.TestMode)

	svc := stubUserSvc{
		update: func(_ context.Context, id string, in services.UpdateUserInput) (*domain.User, error) {
			if in.Email != nil && *in.Email == "taken@example.com" {
				return nil, services.ErrEmailTaken
			}
			if id == "missing" {
				return nil, services.ErrUserNotFound
			}
			return &domain.User{ID: id}, nil
		},
	}
	h := newTestHandlers(withUsers(svc))
	r := gin.New()
	r.PUT("/admin/users/:id", h.UpdateUser)

	put := func(path, body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPut, path, nil)
		if body != "" {
			req = httptest.NewRequest(http.MethodPut, path, jsonBody(body))
			req.Header.Set("Content-Type", "application/json")
		}
		r.ServeHTTP(w, req)
		return w
	}

	// Role outside the whitelist is rejected by binding
	if w := put("/admin/users/u1", `{"role":"superadmin"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("bad role -> %d", w.Code)
	}
	if w := put("/admin/users/missing", `{"name":"X"}`); w.Code != http.StatusNotFound {
		t.Fatalf("missing user -> %d", w.Code)
	}
	if w := put("/admin/users/u1", `{"email":"taken@example.com"}`); w.Code != http.StatusConflict {
		t.Fatalf("taken email -> %d", w.Code)
	}
	if w := put("/admin/users/u1", `{"name":"Renamed","role":"admin"}`); w.Code != http.StatusOK {
		t.Fatalf("update -> %d body=%s", w.Code, w.Body.String())
	}
}

func TestDeleteUser_SelfGuard(t *testing.T) {
	gin.SetMode(gin.TestMode)

	svc := stubUserSvc{
		del: func(_ context.Context, id, actorID string) error {
			if id == actorID {
				return services.ErrSelfDelete
			}
			return nil
		},
	}
	h := newTestHandlers(withUsers(svc))
	r := gin.New()
	r.DELETE("/admin/users/:id", asIdentity("admin-1", domain.RoleAdmin), h.DeleteUser)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/admin/users/admin-1", nil))
	if w.Code != http.StatusConflict {
		t.Fatalf("self delete -> %d", w.Code)
	}
	var er ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
		t.Fatalf("json: %v", err)
	}
	if er.Code != ErrCodeSelfDelete {
		t.Fatalf("code = %q", er.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/admin/users/u2", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("delete -> %d", w.Code)
	}
}

func TestUpdateRequestStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)

	svc := stubExchangeSvc{
		updateStatus: func(_ context.Context, id, status, note string) (*domain.ExchangeRequest, error) {
			if !domain.ValidStatus(status) {
				return nil, services.ErrInvalidStatus
			}
			if id == "missing" {
				return nil, services.ErrRequestNotFound
			}
			return &domain.ExchangeRequest{ID: id, Status: status, AdminNote: note}, nil
		},
	}
	h := newTestHandlers(withExchange(svc))
	r := gin.New()
	r.PUT("/admin/requests/:id/status", h.UpdateRequestStatus)

	put := func(path, body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPut, path, jsonBody(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		return w
	}

	w := put("/admin/requests/r1/status", `{"status":"sideways"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("invalid status -> %d", w.Code)
	}
	var er ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &er); err != nil {
		t.Fatalf("json: %v", err)
	}
	if er.Code != ErrCodeInvalidStatus {
		t.Fatalf("code = %q", er.Code)
	}

	if w := put("/admin/requests/missing/status", `{"status":"completed"}`); w.Code != http.StatusNotFound {
		t.Fatalf("missing request -> %d", w.Code)
	}

	w = put("/admin/requests/r1/status", `{"status":"processing","admin_note":"checking"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("update -> %d body=%s", w.Code, w.Body.String())
	}
	var out domain.ExchangeRequest
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("json: %v", err)
	}
	if out.Status != domain.StatusProcessing || out.AdminNote != "checking" {
		t.Fatalf("unexpected request: %+v", out)
	}
}

func TestGetStats_and_ListForms(t *testing.T) {
	gin.SetMode(gin.TestMode)

	intake := stubIntakeSvc{
		list: func(context.Context) ([]domain.IntakeForm, error) {
			return []domain.IntakeForm{{FromCurrency: "BTC"}}, nil
		},
	}
	h := newTestHandlers(withIntake(intake))
	r := gin.New()
	r.GET("/admin/stats", h.GetStats)
	r.GET("/admin/forms", h.ListForms)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/stats", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("stats -> %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/forms", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("forms -> %d", w.Code)
	}
	var out struct {
		Forms []domain.IntakeForm `json:"forms"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("json: %v", err)
	}
	if len(out.Forms) != 1 {
		t.Fatalf("forms = %+v", out.Forms)
	}
}

func TestGetRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)

	svc := stubExchangeSvc{
		get: func(_ context.Context, id string) (*domain.ExchangeRequest, error) {
			if id == "missing" {
				return nil, services.ErrRequestNotFound
			}
			return &domain.ExchangeRequest{ID: id, Status: domain.StatusProcessing}, nil
		},
	}
	h := newTestHandlers(withExchange(svc))
	r := gin.New()
	r.GET("/admin/requests/:id", h.GetRequest)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/requests/missing", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("missing -> %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/admin/requests/r1", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("get -> %d", w.Code)
	}
	var out domain.ExchangeRequest
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("json: %v", err)
	}
	if out.ID != "r1" || out.Status != domain.StatusProcessing {
		t.Fatalf("unexpected request: %+v", out)
	}
}
