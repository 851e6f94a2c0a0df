package throttle

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	throttleAllowedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "authcore_throttle_allowed_total",
		Help: "Total number of messages admitted by the connection throttle.",
	})

	throttleDeniedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "authcore_throttle_denied_total",
		Help: "Total number of messages denied by the connection throttle.",
	})

	gateLiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "authcore_gate_live_connections",
		Help: "Current number of connections admitted by the gate.",
	})

	gateRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "authcore_gate_rejected_total",
		Help: "Total number of connections rejected at the ceiling.",
	})
)
