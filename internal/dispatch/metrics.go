package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	commandsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fenrir_order_commands_processed_total",
		Help: "Order commands dispatched, by subject.",
	}, []string{"subject"})

	commandErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fenrir_order_commands_failed_total",
		Help: "Order commands whose handler returned an error, by subject.",
	}, []string{"subject"})

	matchesSettled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fenrir_matches_settled_total",
		Help: "Individual order matches settled to the ledger.",
	})
)
