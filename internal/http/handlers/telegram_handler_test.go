package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/mkovtun/go-exchange-backend/internal/domain"
	"github.com/mkovtun/go-exchange-backend/internal/services"
)

func callbackUpdate(data string) string {
	return `{"update_id":1,"callback_query":{"id":"cb-1","data":"` + data + `"}}`
}

func postWebhook(r *gin.Engine, body, secret string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/telegram/webhook", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if secret != "" {
		req.Header.Set(webhookSecretHeader, secret)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestTelegramWebhook_SecretMismatch(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := newTestHandlers(withSecret("s3cret"))
	r := gin.New()
	r.POST("/telegram/webhook", h.TelegramWebhook)

	if w := postWebhook(r, callbackUpdate("confirm_payment:ORD-1"), ""); w.Code != http.StatusForbidden {
		t.Fatalf("missing secret -> %d", w.Code)
	}
	if w := postWebhook(r, callbackUpdate("confirm_payment:ORD-1"), "wrong"); w.Code != http.StatusForbidden {
		t.Fatalf("wrong secret -> %d", w.Code)
	}
	if w := postWebhook(r, callbackUpdate("confirm_payment:ORD-1"), "s3cret"); w.Code != http.StatusOK {
		t.Fatalf("correct secret -> %d", w.Code)
	}
}

func TestTelegramWebhook_BadJSON_and_NonCallback(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := newTestHandlers()
	r := gin.New()
	r.POST("/telegram/webhook", h.TelegramWebhook)

	if w := postWebhook(r, "{bad", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("bad json -> %d", w.Code)
	}

	// Plain message update: acknowledged, not handled.
	w := postWebhook(r, `{"update_id":2,"message":{"message_id":7,"text":"hi"}}`, "")
	if w.Code != http.StatusOK {
		t.Fatalf("message update -> %d", w.Code)
	}
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("json: %v", err)
	}
	if handled, _ := out["handled"].(bool); handled {
		t.Fatal("message update should not be handled")
	}
}

func TestTelegramWebhook_Confirmation(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var reconciled string
	svc := stubExchangeSvc{
		reconcile: func(_ context.Context, orderID string) (*domain.ExchangeRequest, bool, error) {
			reconciled = orderID
			return &domain.ExchangeRequest{OrderID: orderID, Status: domain.StatusCompleted}, true, nil
		},
	}
	acker := &stubAcker{}
	h := newTestHandlers(withExchange(svc), withAcker(acker))
	r := gin.New()
	r.POST("/telegram/webhook", h.TelegramWebhook)

	w := postWebhook(r, callbackUpdate("confirm_payment:ORD-9"), "")
	if w.Code != http.StatusOK {
		t.Fatalf("confirm -> %d body=%s", w.Code, w.Body.String())
	}
	if reconciled != "ORD-9" {
		t.Fatalf("reconciled order = %q", reconciled)
	}
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("json: %v", err)
	}
	if handled, _ := out["handled"].(bool); !handled {
		t.Fatal("confirmation should be handled")
	}
	if out["status"] != domain.StatusCompleted {
		t.Fatalf("status = %v", out["status"])
	}
	if len(acker.ids) != 1 || acker.ids[0] != "cb-1" || acker.texts[0] != "Payment confirmed" {
		t.Fatalf("unexpected ack: %v %v", acker.ids, acker.texts)
	}
}

func TestTelegramWebhook_DuplicateConfirmation(t *testing.T) {
	gin.SetMode(gin.TestMode)

	svc := stubExchangeSvc{
		reconcile: func(_ context.Context, orderID string) (*domain.ExchangeRequest, bool, error) {
			return &domain.ExchangeRequest{OrderID: orderID, Status: domain.StatusCompleted}, false, nil
		},
	}
	acker := &stubAcker{}
	h := newTestHandlers(withExchange(svc), withAcker(acker))
	r := gin.New()
	r.POST("/telegram/webhook", h.TelegramWebhook)

	w := postWebhook(r, callbackUpdate("confirm_payment:ORD-9"), "")
	if w.Code != http.StatusOK {
		t.Fatalf("duplicate -> %d", w.Code)
	}
	if len(acker.texts) != 1 || acker.texts[0] != "Already confirmed" {
		t.Fatalf("unexpected ack texts: %v", acker.texts)
	}
}

func TestTelegramWebhook_UnknownOrder_Still200(t *testing.T) {
	gin.SetMode(gin.TestMode)

	svc := stubExchangeSvc{
		reconcile: func(context.Context, string) (*domain.ExchangeRequest, bool, error) {
			return nil, false, services.ErrRequestNotFound
		},
	}
	acker := &stubAcker{}
	h := newTestHandlers(withExchange(svc), withAcker(acker))
	r := gin.New()
	r.POST("/telegram/webhook", h.TelegramWebhook)

	// Redelivery of an unknown order must not loop forever: ack with 200.
	w := postWebhook(r, callbackUpdate("confirm_payment:gone"), "")
	if w.Code != http.StatusOK {
		t.Fatalf("unknown order -> %d", w.Code)
	}
	if len(acker.texts) != 1 || acker.texts[0] != "Order not found" {
		t.Fatalf("unexpected ack texts: %v", acker.texts)
	}
}

func TestTelegramWebhook_ForeignCallbackData(t *testing.T) {
	gin.SetMode(gin.TestMode)

	called := false
	svc := stubExchangeSvc{
		reconcile: func(context.Context, string) (*domain.ExchangeRequest, bool, error) {
			called = true
			return nil, false, nil
		},
	}
	h := newTestHandlers(withExchange(svc))
	r := gin.New()
	r.POST("/telegram/webhook", h.TelegramWebhook)

	w := postWebhook(r, callbackUpdate("something_else:xyz"), "")
	if w.Code != http.StatusOK {
		t.Fatalf("foreign callback -> %d", w.Code)
	}
	if called {
		t.Fatal("foreign callback data must not reach the service")
	}
}
