package allocation

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	decisionLatency *prometheus.HistogramVec
	requestsTotal   *prometheus.CounterVec
	commitConflicts prometheus.Counter
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.HistogramVec, *prometheus.CounterVec, prometheus.Counter) {
	lat := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "allocation_decision_latency_seconds",
			Help:    "Latency of allocation requests from snapshot to commit",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)
	req := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "allocation_requests_total",
			Help: "Number of allocation requests processed",
		},
		[]string{"kind", "outcome"},
	)
	conflicts := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "allocation_commit_conflicts_total",
			Help: "Number of commits lost against concurrent sensor updates",
		},
	)
	return lat, req, conflicts
}

func init() {
	decisionLatency, requestsTotal, commitConflicts = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers allocation metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(decisionLatency, requestsTotal, commitConflicts)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	decisionLatency, requestsTotal, commitConflicts = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
