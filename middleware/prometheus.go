package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "code"},
	)

	requestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "code"},
	)

	requestsInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
		[]string{"method", "path"},
	)

	responseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "response_size_bytes",
			Help:    "Size of HTTP responses in bytes",
			Buckets: []float64{100, 1000, 10000, 100000, 1000000},
		},
		[]string{"method", "path", "code"},
	)

	// problemResponses counts error bodies written by ErrorTranslator, by
	// application error code. The code set is closed, so cardinality is bounded.
	problemResponses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "problem_responses_total",
			Help: "Total number of problem+json error responses by error code",
		},
		[]string{"code", "status"},
	)
)

// shouldCollectMetrics excludes infrastructure endpoints (probes, metrics)
// so they neither dominate nor skew business traffic series.
func shouldCollectMetrics(path string) bool {
	switch path {
	case "/health", "/ready", "/metrics":
		return false
	}
	return true
}

// PrometheusMiddleware records request metrics labelled by route template,
// not raw path, so /api/users/:id stays one series.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !shouldCollectMetrics(c.Request.URL.Path) {
			c.Next()
			return
		}

		start := time.Now()
		method := c.Request.Method
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		requestsInFlight.WithLabelValues(method, route).Inc()
		defer requestsInFlight.WithLabelValues(method, route).Dec()

		c.Next()

		statusCode := strconv.Itoa(c.Writer.Status())
		requestDuration.WithLabelValues(method, route, statusCode).Observe(time.Since(start).Seconds())
		requestTotal.WithLabelValues(method, route, statusCode).Inc()
		responseSize.WithLabelValues(method, route, statusCode).Observe(float64(c.Writer.Size()))
	}
}

func recordProblem(code string, status int) {
	problemResponses.WithLabelValues(code, strconv.Itoa(status)).Inc()
}
