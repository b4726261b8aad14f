// Prometheus instrumentation for the HTTP surface. Labels stay bounded:
// method, the registered route pattern (raw path only for unmatched
// requests), and the numeric status code.
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	reqTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "vouchguard",
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status.",
	}, []string{"method", "path", "status"})

	// Status is omitted from the latency histogram to keep series count down.
	reqDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "vouchguard",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path"})

	reqInflight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "vouchguard",
		Name:      "http_requests_inflight",
		Help:      "Requests currently being handled.",
	})

	respBytes = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "vouchguard",
		Name:      "http_response_size_bytes",
		Help:      "HTTP response size in bytes.",
		Buckets:   prometheus.ExponentialBuckets(256, 4, 8),
	}, []string{"method", "path"})
)

// Metrics instruments every request with the collectors above. Mount the
// scrape endpoint separately via promhttp.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		reqInflight.Inc()
		defer reqInflight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		method := c.Request.Method

		reqTotal.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		reqDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		// Size is -1 when nothing was written.
		if size := c.Writer.Size(); size >= 0 {
			respBytes.WithLabelValues(method, path).Observe(float64(size))
		}
	}
}
