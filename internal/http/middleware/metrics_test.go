package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_CountersTenantAndPathFallback(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Metrics())
	r.POST("/slack/events", func(c *gin.Context) {
		c.Set(TenantKey, "goose")
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/statusonly", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	baseEv := testutil.ToFloat64(httpReqs.WithLabelValues("POST", "/slack/events", "200", "goose"))
	base404 := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/does-not-exist", "404", ""))

	for _, tc := range []struct {
		method, path string
		want         int
	}{
		{http.MethodPost, "/slack/events", http.StatusOK},
		{http.MethodGet, "/does-not-exist", http.StatusNotFound},
		{http.MethodGet, "/statusonly", http.StatusNoContent},
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(tc.method, tc.path, nil))
		if w.Code != tc.want {
			t.Fatalf("%s %s -> %d; want %d", tc.method, tc.path, w.Code, tc.want)
		}
	}

	if got := testutil.ToFloat64(httpReqs.WithLabelValues("POST", "/slack/events", "200", "goose")); got != baseEv+1 {
		t.Fatalf("events counter = %v; want %v", got, baseEv+1)
	}
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/does-not-exist", "404", "")); got != base404+1 {
		t.Fatalf("404 fallback counter = %v; want %v", got, base404+1)
	}
	if inFlight := testutil.ToFloat64(httpInflight); inFlight != 0 {
		t.Fatalf("httpInflight = %v; want 0", inFlight)
	}
}
