package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "amp"

// callsTotal counts gateway calls by action and outcome
// (success, transport_failure, application_failure).
var callsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "gateway",
		Name:      "calls_total",
		Help:      "Total number of remote webhook calls, by action and outcome.",
	},
	[]string{"action", "outcome"},
)

var callDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "gateway",
		Name:      "call_duration_seconds",
		Help:      "Duration of remote webhook calls.",
		Buckets:   prometheus.DefBuckets,
	},
	[]string{"action"},
)
