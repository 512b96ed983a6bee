// README: Prometheus counters for transitions, claims, sweeps, and broadcasts.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mealdrop_orders_created_total",
		Help: "Total number of orders successfully created.",
	})

	TransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mealdrop_order_transitions_total",
		Help: "Applied order status transitions by resulting status.",
	}, []string{"status"})

	ClaimConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mealdrop_driver_claim_conflicts_total",
		Help: "Driver claim attempts that lost the assignment race.",
	})

	SweepPromotionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mealdrop_sweep_promotions_total",
		Help: "Scheduled orders promoted to preparing by the sweep.",
	})

	SweepSkipsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mealdrop_sweep_skips_total",
		Help: "Scheduled orders skipped by the sweep after a per-order failure.",
	})

	NotificationsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mealdrop_notifications_created_total",
		Help: "Notification rows persisted.",
	})

	BroadcastsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mealdrop_broadcasts_total",
		Help: "Real-time events published.",
	})

	BroadcastFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "mealdrop_broadcast_failures_total",
		Help: "Real-time publishes that failed and were dropped.",
	})
)
