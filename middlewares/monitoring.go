package middlewares

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketplace_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "marketplace_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	orderOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketplace_order_operations_total",
			Help: "Total number of order operations",
		},
		[]string{"operation", "status"},
	)

	paymentGatewayDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "marketplace_payment_gateway_call_duration_seconds",
			Help:    "Latency of payment processor calls",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"provider", "operation", "outcome"},
	)

	sideEffectFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketplace_side_effect_failures_total",
			Help: "Failed post-commit side effects by sink",
		},
		[]string{"sink"},
	)

	droppedTasks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "marketplace_dropped_tasks_total",
			Help: "Background tasks rejected because the queue was full",
		},
	)

	deadLetters = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "marketplace_dead_letters_total",
			Help: "Order events that ended in the dead letter queue",
		},
	)

	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "marketplace_websocket_connections",
			Help: "Open realtime connections",
		},
	)
)

// PrometheusMiddleware collects request count and latency per route.
func PrometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(duration)
	}
}

// RecordOrderOperation counts an order operation by outcome.
func RecordOrderOperation(operation string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	orderOperations.WithLabelValues(operation, status).Inc()
}

func RecordGatewayCall(provider, operation, outcome string, d time.Duration) {
	paymentGatewayDuration.WithLabelValues(provider, operation, outcome).Observe(d.Seconds())
}

func RecordSideEffectFailure(sink string) {
	sideEffectFailures.WithLabelValues(sink).Inc()
}

func RecordDroppedTask() {
	droppedTasks.Inc()
}

func RecordDeadLetter() {
	deadLetters.Inc()
}

func TrackWebsocketConnection(delta float64) {
	websocketConnections.Add(delta)
}
