package mqtt

import "time"

// Decision is the notice published for every committed allocation, release
// or reset. EventID ties the notice to the decision event on the bus and
// to the allocation log record.
type Decision struct {
	EventID   string    `json:"event_id"`
	Kind      string    `json:"kind"`
	VehicleID string    `json:"vehicle_id,omitempty"`
	SpaceIDs  []string  `json:"space_ids,omitempty"`
	Section   string    `json:"section,omitempty"`
	Score     float64   `json:"score,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Time      time.Time `json:"ts"`
}

// Notifier broadcasts committed decisions to lot displays and other
// subscribers. Implementations must not block indefinitely; the manager
// publishes outside its critical section.
type Notifier interface {
	PublishDecision(d Decision) error
}
