package allocation

import "time"

// Reason explains why an allocation produced, or failed to produce, a
// space assignment.
type Reason string

const (
	// ReasonAllocated marks a successful assignment.
	ReasonAllocated Reason = "allocated"
	// ReasonNoCapacity means the lot had no free space at all.
	ReasonNoCapacity Reason = "no_capacity"
	// ReasonNoMatch means free spaces existed but none fit the vehicle.
	ReasonNoMatch Reason = "no_match"
)

// Result is the outcome of a single allocation decision. A failed
// decision keeps the empty space id and zero score so callers checking
// only those fields keep working; Reason tells the two failures apart.
type Result struct {
	SpaceID     string    `json:"space_id,omitempty"`
	VehicleID   string    `json:"vehicle_id"`
	Score       float64   `json:"score"`
	Reason      Reason    `json:"reason"`
	Section     string    `json:"section,omitempty"`
	MemberCount int       `json:"member_count,omitempty"` // group assignments only
	DecidedAt   time.Time `json:"decided_at,omitempty"`
}

// Allocated reports whether the decision assigned a space.
func (r Result) Allocated() bool {
	return r.SpaceID != ""
}
