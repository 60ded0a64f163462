package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_CountsByRouteAndStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Metrics())
	r.GET("/exchange/:orderId", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	r.GET("/empty", func(c *gin.Context) {
		c.Status(http.StatusNoContent) // no body, size stays -1
	})

	// Baselines keep this test independent of execution order.
	baseRoute := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/exchange/:orderId", "200"))
	baseMiss := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/nope", "404"))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/exchange/ORD-1", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET /exchange/ORD-1 -> %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope -> %d", w.Code)
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/empty", nil))
	if w.Code != http.StatusNoContent {
		t.Fatalf("GET /empty -> %d", w.Code)
	}

	// The matched request is labeled by route pattern, not the raw order id.
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/exchange/:orderId", "200")); got != baseRoute+1 {
		t.Fatalf("route counter = %v, want %v", got, baseRoute+1)
	}
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/exchange/ORD-1", "200")); got != 0 {
		t.Fatalf("raw path must not become a label value, counter = %v", got)
	}
	// Unmatched routes fall back to the URL path.
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/nope", "404")); got != baseMiss+1 {
		t.Fatalf("fallback counter = %v, want %v", got, baseMiss+1)
	}
}
