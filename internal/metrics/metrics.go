// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CartOperationsTotal counts cart engine calls by operation and error kind
	// ("ok" on success).
	CartOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cartsync_cart_operations_total",
			Help: "Total number of cart operations",
		},
		[]string{"op", "result"},
	)

	CartOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cartsync_cart_operation_duration_seconds",
			Help:    "Duration of cart operations in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"op"},
	)

	// CartDanglingItemsTotal counts items dropped from resolved carts because
	// their product no longer exists.
	CartDanglingItemsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cartsync_cart_dangling_items_total",
			Help: "Total number of cart items dropped during resolution",
		},
	)

	ProductCacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cartsync_product_cache_lookups_total",
			Help: "Product cache lookups by result (hit, miss, error)",
		},
		[]string{"result"},
	)

	WSClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cartsync_ws_clients",
			Help: "Number of connected websocket clients",
		},
	)

	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cartsync_notifications_total",
			Help: "Published notifications by sink, event type and result",
		},
		[]string{"sink", "event", "result"},
	)
)

// ObserveCartOperation records one finished cart operation.
func ObserveCartOperation(op, result string, started time.Time) {
	CartOperationsTotal.WithLabelValues(op, result).Inc()
	CartOperationDuration.WithLabelValues(op).Observe(time.Since(started).Seconds())
}

func NotificationResult(sink, event string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	NotificationsTotal.WithLabelValues(sink, event, result).Inc()
}
