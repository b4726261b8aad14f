package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(Metrics())
	r.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, "hi") })
	r.GET("/empty", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	baseOK := testutil.ToFloat64(reqTotal.WithLabelValues("GET", "/ok", "200"))
	base404 := testutil.ToFloat64(reqTotal.WithLabelValues("GET", "/nope", "404"))

	for _, path := range []string{"/ok", "/nope", "/empty"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}

	if got := testutil.ToFloat64(reqTotal.WithLabelValues("GET", "/ok", "200")); got != baseOK+1 {
		t.Fatalf("requests_total /ok 200 = %v, want %v", got, baseOK+1)
	}
	// Unmatched routes fall back to the raw path label.
	if got := testutil.ToFloat64(reqTotal.WithLabelValues("GET", "/nope", "404")); got != base404+1 {
		t.Fatalf("requests_total /nope 404 = %v, want %v", got, base404+1)
	}
	if got := testutil.ToFloat64(reqInflight); got != 0 {
		t.Fatalf("inflight gauge = %v after requests drained", got)
	}
}
