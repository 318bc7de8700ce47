package model

import (
	"fmt"
	"time"
)

// Position describes the rectangle a space occupies on the lot plan,
// in pixels of the calibration image.
type Position struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// ParkingSpace represents a single space of the monitored lot. Group
// records aggregate several member spaces that are always assigned
// together.
type ParkingSpace struct {
	ID                 string      `json:"id"`
	Position           Position    `json:"position"`
	Occupied           bool        `json:"occupied"`
	VehicleID          string      `json:"vehicle_id,omitempty"` // non-empty exactly when Occupied
	Section            string      `json:"section"`
	DistanceToEntrance float64     `json:"distance_to_entrance"` // lower is closer
	Capacity           VehicleSize `json:"capacity"`             // largest vehicle class the space fits
	IsGroup            bool        `json:"is_group,omitempty"`
	MemberSpaces       []string    `json:"member_spaces,omitempty"` // ordered, group records only
	LastStateChange    time.Time   `json:"last_state_change,omitempty"`
}

// MemberCount returns the number of member spaces of a group record.
func (s ParkingSpace) MemberCount() int {
	return len(s.MemberSpaces)
}

// Free reports whether the space can receive a vehicle.
func (s ParkingSpace) Free() bool {
	return !s.Occupied
}

// Validate checks that the space record is internally consistent.
func (s ParkingSpace) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("space id must not be empty")
	}
	if s.Occupied && s.VehicleID == "" {
		return fmt.Errorf("space %s: occupied without a vehicle id", s.ID)
	}
	if !s.Occupied && s.VehicleID != "" {
		return fmt.Errorf("space %s: vehicle %s recorded on a free space", s.ID, s.VehicleID)
	}
	if s.DistanceToEntrance < 0 {
		return fmt.Errorf("space %s: negative distance to entrance", s.ID)
	}
	if s.IsGroup {
		if len(s.MemberSpaces) == 0 {
			return fmt.Errorf("group %s: no member spaces", s.ID)
		}
		return nil
	}
	if len(s.MemberSpaces) > 0 {
		return fmt.Errorf("space %s: member spaces on a non-group record", s.ID)
	}
	if !s.Capacity.Valid() {
		return fmt.Errorf("space %s: capacity %d out of range", s.ID, s.Capacity)
	}
	return nil
}

// Cell dimensions of the lot calibration image. A standard cell holds a
// medium vehicle; cells half again as large hold a large one.
const (
	standardCellArea = 107 * 48
	largeCellArea    = standardCellArea * 3 / 2
	smallCellArea    = standardCellArea * 3 / 4
)

// CapacityFromGeometry infers the largest vehicle class a cell of the
// given dimensions fits, relative to the standard calibration cell.
// Layout entries that carry an explicit capacity skip this inference.
func CapacityFromGeometry(p Position) VehicleSize {
	area := p.Width * p.Height
	switch {
	case area >= largeCellArea:
		return SizeLarge
	case area >= smallCellArea:
		return SizeMedium
	default:
		return SizeSmall
	}
}
