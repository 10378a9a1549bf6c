// Package metrics holds the Prometheus collectors for the harvestlink order service
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Tier labels
const (
	TierSibling  = "sibling"
	TierFollowUp = "follow_up"
)

var (
	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "harvestlink_orders_created_total",
		Help: "Orders created through the order flow",
	})

	SuspiciousMarkedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvestlink_suspicious_orders_marked_total",
		Help: "Orders transitioned to suspicious, by detection tier",
	}, []string{"tier"})

	DetectionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "harvestlink_detection_duration_seconds",
		Help:    "Time spent in pattern detection per order",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	})

	MergesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvestlink_order_merges_total",
		Help: "Merge operations, by result",
	}, []string{"result"}) // ok, invalid_input, not_mergeable, error

	NotificationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvestlink_notifications_total",
		Help: "Suspicious order notifications dispatched, by status",
	}, []string{"status"})

	LoginAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "harvestlink_admin_login_attempts_total",
		Help: "Admin login attempts, by result",
	}, []string{"result"}) // ok, rejected, error
)
