package api

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// requestLogger logs one structured line per request.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		slog.Info("HTTP request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds())
	}
}

// httpMetrics is the per-server Prometheus instrumentation. Each server
// carries its own registry so several clones can share a test process.
type httpMetrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newHTTPMetrics(registry *prometheus.Registry, cloneID string) *httpMetrics {
	m := &httpMetrics{
		registry: registry,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "clonenet_http_requests_total",
			Help:        "HTTP requests handled, by method, path, and status.",
			ConstLabels: prometheus.Labels{"clone": cloneID},
		}, []string{"method", "path", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "clonenet_http_request_duration_seconds",
			Help:        "HTTP request latency, by method and path.",
			ConstLabels: prometheus.Labels{"clone": cloneID},
			Buckets:     prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
	registry.MustRegister(m.requests, m.duration)
	return m
}

func (m *httpMetrics) instrument() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.requests.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.duration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
