package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	core "github.com/openlot/parkd/core/metrics"
	usage "github.com/openlot/parkd/core/metrics/usage"
)

// UsageSink folds allocation decisions into daily per-section KPIs.
type UsageSink struct {
	store      usage.Store
	allocated  *prometheus.GaugeVec
	acceptance *prometheus.GaugeVec
	meanScore  *prometheus.GaugeVec
}

// NewUsageSink creates a sink with Prometheus gauges registered on reg.
func NewUsageSink(store usage.Store, reg prometheus.Registerer) *UsageSink {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	allocated := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "section_daily_allocations",
		Help: "Daily committed allocations per section",
	}, []string{"section", "day"})
	acceptance := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "section_daily_acceptance_ratio",
		Help: "Daily share of requests that received a space per section",
	}, []string{"section", "day"})
	meanScore := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "section_daily_mean_score",
		Help: "Daily mean assignment score per section",
	}, []string{"section", "day"})
	reg.MustRegister(allocated, acceptance, meanScore)
	return &UsageSink{store: store, allocated: allocated, acceptance: acceptance, meanScore: meanScore}
}

// RecordAllocation processes allocation decisions to update KPIs.
func (s *UsageSink) RecordAllocation(events []core.AllocationEvent) error {
	for _, ev := range events {
		section := kpiSection(ev)
		rec := usage.Record{Section: section, Date: ev.Time}
		if ev.SpaceID != "" {
			rec.Allocations = 1
			rec.ScoreSum = ev.Score
		} else {
			rec.Rejections = 1
		}
		if err := s.store.Add(rec); err != nil {
			return err
		}
		dayStr := usage.Day(ev.Time).Format("2006-01-02")
		records, _ := s.store.Query(section, ev.Time, ev.Time)
		if len(records) > 0 {
			rr := records[0]
			s.allocated.WithLabelValues(section, dayStr).Set(float64(rr.Allocations))
			s.acceptance.WithLabelValues(section, dayStr).Set(rr.AcceptanceRate())
			s.meanScore.WithLabelValues(section, dayStr).Set(rr.MeanScore())
		}
	}
	return nil
}

// kpiSection buckets a decision: assignments under the section that took
// the vehicle, rejections under the requested one, or "any".
func kpiSection(ev core.AllocationEvent) string {
	if ev.Section != "" {
		return ev.Section
	}
	if ev.PreferredSection != "" {
		return ev.PreferredSection
	}
	return "any"
}
