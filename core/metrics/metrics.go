package metrics

import (
	"time"

	"github.com/openlot/parkd/core/model"
)

// AllocationEvent represents one allocation decision to be recorded.
type AllocationEvent struct {
	VehicleID        string
	SpaceID          string
	Section          string
	Size             model.VehicleSize
	PreferredSection string
	Score            float64
	Outcome          string
	Group            bool
	Time             time.Time
}

// Sink records allocation decisions for observability purposes.
type Sink interface {
	RecordAllocation(events []AllocationEvent) error
}

// ReleaseEvent captures a vehicle leaving its space or group.
type ReleaseEvent struct {
	VehicleID string
	SpaceIDs  []string
	Time      time.Time
}

// ReleaseRecorder records release events.
type ReleaseRecorder interface {
	RecordRelease(ev ReleaseEvent) error
}

// OccupancyRecorder is implemented by sinks able to record lot occupancy
// snapshots.
type OccupancyRecorder interface {
	RecordOccupancy(stats model.LotStats) error
}

// AllocationLatency represents the time spent deciding one request.
type AllocationLatency struct {
	VehicleID string
	Outcome   string
	Latency   time.Duration
}

// LatencyRecorder is implemented by sinks able to record decision latency.
type LatencyRecorder interface {
	RecordAllocationLatency(latencies []AllocationLatency) error
}

// StateChangeEvent is a sensor-observed occupancy transition.
type StateChangeEvent struct {
	SpaceID  string
	Occupied bool
	Source   string
	Time     time.Time
}

// StateChangeRecorder records sensor state transitions.
type StateChangeRecorder interface {
	RecordStateChange(ev StateChangeEvent) error
}

// NopSink implements Sink and every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordAllocation([]AllocationEvent) error          { return nil }
func (NopSink) RecordRelease(ReleaseEvent) error                  { return nil }
func (NopSink) RecordOccupancy(model.LotStats) error              { return nil }
func (NopSink) RecordAllocationLatency([]AllocationLatency) error { return nil }
func (NopSink) RecordStateChange(StateChangeEvent) error          { return nil }
