package utilization

import (
	"github.com/openlot/parkd/core/allocation/logging"
	usage "github.com/openlot/parkd/core/metrics/usage"
)

// Backfill processes persisted allocation records and populates the store.
// Running it over the allocation log after a restart rebuilds the daily
// aggregates the in-memory gauges lost.
func Backfill(store usage.Store, records []logging.LogRecord) error {
	for _, r := range records {
		if r.Kind != logging.KindAllocation && r.Kind != logging.KindGroup {
			continue
		}
		rec := usage.Record{Section: recordSection(r), Date: r.Timestamp}
		if r.Outcome.SpaceID != "" {
			rec.Allocations = 1
			rec.ScoreSum = r.Outcome.Score
		} else {
			rec.Rejections = 1
		}
		if err := store.Add(rec); err != nil {
			return err
		}
	}
	return nil
}

// recordSection mirrors the bucketing of the live usage sink.
func recordSection(r logging.LogRecord) string {
	if r.Outcome.Section != "" {
		return r.Outcome.Section
	}
	if r.PreferredSection != "" {
		return r.PreferredSection
	}
	return "any"
}
