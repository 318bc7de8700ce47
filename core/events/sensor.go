package events

import "time"

// StateChangeEvent is published when a sensor reports an occupancy
// transition for a space.
type StateChangeEvent struct {
	SpaceID   string
	Occupied  bool
	VehicleID string
	Source    string
	Time      time.Time
}
