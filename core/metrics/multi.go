package metrics

import "github.com/openlot/parkd/core/model"

// MultiSink fans allocation records out to multiple sinks.
type MultiSink struct {
	Sinks []Sink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...Sink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordAllocation forwards the records to all sinks, returning the first
// error encountered.
func (m *MultiSink) RecordAllocation(events []AllocationEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordAllocation(events); err != nil {
			return err
		}
	}
	return nil
}

// RecordRelease forwards release events to the sinks that support them.
func (m *MultiSink) RecordRelease(ev ReleaseEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(ReleaseRecorder); ok {
			if err := rec.RecordRelease(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordOccupancy forwards occupancy snapshots when supported by the sink.
func (m *MultiSink) RecordOccupancy(stats model.LotStats) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(OccupancyRecorder); ok {
			if err := rec.RecordOccupancy(stats); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordAllocationLatency forwards latency metrics when supported by the sink.
func (m *MultiSink) RecordAllocationLatency(lat []AllocationLatency) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(LatencyRecorder); ok {
			if err := rec.RecordAllocationLatency(lat); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordStateChange forwards sensor transitions when supported by the sink.
func (m *MultiSink) RecordStateChange(ev StateChangeEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(StateChangeRecorder); ok {
			if err := rec.RecordStateChange(ev); err != nil {
				return err
			}
		}
	}
	return nil
}
