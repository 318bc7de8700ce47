package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/openlot/parkd/core/metrics"
	"github.com/openlot/parkd/core/model"
)

// PromSink records allocation events in Prometheus metrics.
type PromSink struct {
	allocations *prometheus.CounterVec
	score       *prometheus.HistogramVec
	latency     *prometheus.HistogramVec
	releases    prometheus.Counter
	occupancy   *prometheus.GaugeVec
	transitions *prometheus.CounterVec
}

// NewPromSink registers allocation metrics on the default Prometheus
// registerer. The Prometheus server should be started separately using
// cfg.PrometheusAddr.
func NewPromSink(cfg coremetrics.Config) (coremetrics.Sink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(_ coremetrics.Config, reg prometheus.Registerer) (coremetrics.Sink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	allocations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "allocations_total",
		Help: "Total number of allocation decisions",
	}, []string{"section", "outcome", "group"})
	score := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "allocation_score",
		Help:    "Composite score of committed allocations",
		Buckets: prometheus.LinearBuckets(0, 0.1, 11),
	}, []string{"section"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "allocation_latency_seconds",
		Help:    "Time between request intake and decision",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	releases := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "releases_total",
		Help: "Total number of vehicle releases",
	})
	occupancy := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "lot_occupancy_ratio",
		Help: "Occupied share of physical spaces, total and per section",
	}, []string{"section"})
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "space_state_changes_total",
		Help: "Sensor-observed occupancy transitions",
	}, []string{"occupied"})

	if err := reg.Register(allocations); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			allocations = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(score); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			score = are.ExistingCollector.(*prometheus.HistogramVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(latency); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			latency = are.ExistingCollector.(*prometheus.HistogramVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(releases); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			releases = are.ExistingCollector.(prometheus.Counter)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(occupancy); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			occupancy = are.ExistingCollector.(*prometheus.GaugeVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(transitions); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			transitions = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}

	return &PromSink{
		allocations: allocations,
		score:       score,
		latency:     latency,
		releases:    releases,
		occupancy:   occupancy,
		transitions: transitions,
	}, nil
}

// RecordAllocation increments the decision counter and observes the score
// of committed allocations. Sentinel decisions carry no section label.
func (s *PromSink) RecordAllocation(events []coremetrics.AllocationEvent) error {
	for _, ev := range events {
		section := ev.Section
		if section == "" {
			section = "none"
		}
		s.allocations.WithLabelValues(section, ev.Outcome, strconv.FormatBool(ev.Group)).Inc()
		if ev.SpaceID != "" {
			s.score.WithLabelValues(section).Observe(ev.Score)
		}
	}
	return nil
}

// RecordAllocationLatency records the decision latency histogram.
func (s *PromSink) RecordAllocationLatency(recs []coremetrics.AllocationLatency) error {
	for _, r := range recs {
		s.latency.WithLabelValues(r.Outcome).Observe(r.Latency.Seconds())
	}
	return nil
}

// RecordRelease increments the release counter.
func (s *PromSink) RecordRelease(coremetrics.ReleaseEvent) error {
	s.releases.Inc()
	return nil
}

// RecordOccupancy sets the occupancy gauges from a stats snapshot. The
// "all" label aggregates over the whole lot.
func (s *PromSink) RecordOccupancy(stats model.LotStats) error {
	s.occupancy.WithLabelValues("all").Set(stats.OccupancyRate)
	for name, sec := range stats.Sections {
		if sec.Total == 0 {
			continue
		}
		s.occupancy.WithLabelValues(name).Set(float64(sec.Occupied) / float64(sec.Total))
	}
	return nil
}

// RecordStateChange counts sensor transitions by direction.
func (s *PromSink) RecordStateChange(ev coremetrics.StateChangeEvent) error {
	s.transitions.WithLabelValues(strconv.FormatBool(ev.Occupied)).Inc()
	return nil
}
