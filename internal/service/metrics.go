package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Bridge operations counted by bridgeFailures.
const (
	opSendOrder        = "send_order"
	opSendNotification = "send_notification"
	opNotifyUser       = "notify_user"
)

var (
	checkoutsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tgshop_checkouts_total",
			Help: "Checkout attempts by outcome (success or rejection code)",
		},
		[]string{"outcome"},
	)

	bridgeFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tgshop_bridge_failures_total",
			Help: "Host bridge transmissions that failed after a successful checkout or lifecycle event",
		},
		[]string{"operation"},
	)
)
