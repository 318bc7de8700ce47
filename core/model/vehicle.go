package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidVehicleSize is returned when a request carries a size outside
// the defined classes.
var ErrInvalidVehicleSize = errors.New("vehicle size out of range")

// VehicleSize classifies a vehicle by the space class it needs.
type VehicleSize int

const (
	SizeSmall VehicleSize = iota + 1
	SizeMedium
	SizeLarge
)

// String returns a human-readable representation of the size class.
func (s VehicleSize) String() string {
	switch s {
	case SizeSmall:
		return "small"
	case SizeMedium:
		return "medium"
	case SizeLarge:
		return "large"
	default:
		return "unknown"
	}
}

// Valid reports whether the size is one of the defined classes.
func (s VehicleSize) Valid() bool {
	return s >= SizeSmall && s <= SizeLarge
}

// AllocationRequest asks for a space assignment for one vehicle.
// An empty PreferredSection means no preference.
type AllocationRequest struct {
	VehicleID        string      `json:"vehicle_id"`
	Size             VehicleSize `json:"vehicle_size"`
	PreferredSection string      `json:"preferred_section,omitempty"`
	RequestedAt      time.Time   `json:"requested_at,omitempty"`
}

// Validate checks that the request can be scored at all. Requests that
// fail here are caller errors, not capacity misses.
func (r AllocationRequest) Validate() error {
	if r.VehicleID == "" {
		return fmt.Errorf("vehicle id must not be empty")
	}
	if !r.Size.Valid() {
		return fmt.Errorf("vehicle %s: %w: %d", r.VehicleID, ErrInvalidVehicleSize, r.Size)
	}
	return nil
}

// GroupRequest asks for a group of adjacent spaces for a single vehicle
// too large for any individual space.
type GroupRequest struct {
	VehicleID   string      `json:"vehicle_id"`
	Size        VehicleSize `json:"vehicle_size"`
	RequestedAt time.Time   `json:"requested_at,omitempty"`
}

// Validate checks the group request.
func (r GroupRequest) Validate() error {
	if r.VehicleID == "" {
		return fmt.Errorf("vehicle id must not be empty")
	}
	if !r.Size.Valid() {
		return fmt.Errorf("vehicle %s: %w: %d", r.VehicleID, ErrInvalidVehicleSize, r.Size)
	}
	return nil
}
