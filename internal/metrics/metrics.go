package metrics

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
			Name: "storefront_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storefront_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	orderOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_order_operations_total",
			Help: "Total number of order operations",
		},
		[]string{"operation", "status"},
	)

	walletOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_wallet_operations_total",
			Help: "Total number of wallet credit/debit attempts",
		},
		[]string{"operation", "status"},
	)

	paymentEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_payment_events_total",
			Help: "Total number of payment provider events handled",
		},
		[]string{"event", "outcome"},
	)

	refundsProcessed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_refunds_processed_total",
			Help: "Total number of refunds processed",
		},
	)
)

// HTTPMiddleware collects request counts and latency per route.
func HTTPMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		httpRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(duration)
	}
}

func RecordOrderOperation(operation string, success bool) {
	orderOperations.WithLabelValues(operation, outcome(success)).Inc()
}

func RecordWalletOperation(operation string, success bool) {
	walletOperations.WithLabelValues(operation, outcome(success)).Inc()
}

func RecordPaymentEvent(event string, success bool) {
	paymentEvents.WithLabelValues(event, outcome(success)).Inc()
}

func RecordRefund() {
	refundsProcessed.Inc()
}

func outcome(success bool) string {
	if success {
		return "success"
	}
	return "error"
}
