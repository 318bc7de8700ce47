package events

import (
	"time"

	"github.com/openlot/parkd/core/model"
)

// RequestEvent is published when an allocation request enters the manager.
type RequestEvent struct {
	Request model.AllocationRequest
}

// DecisionEvent is published for each allocation decision. EventID ties
// the decision to the published notification and the log record.
type DecisionEvent struct {
	EventID   string
	VehicleID string
	SpaceID   string
	Score     float64
	Outcome   string
	Group     bool
	Time      time.Time
}

// ReleaseEvent is published when a vehicle leaves its space or group.
type ReleaseEvent struct {
	VehicleID string
	SpaceIDs  []string
	Time      time.Time
}

// ResetEvent is published when the lot occupancy is cleared.
type ResetEvent struct {
	Time time.Time
}
