package model

import "time"

// SectionStats aggregates occupancy for one section of the lot.
type SectionStats struct {
	Total    int `json:"total"`
	Occupied int `json:"occupied"`
}

// FreeRatio returns the fraction of free spaces in the section, 1 for an
// empty section definition.
func (s SectionStats) FreeRatio() float64 {
	if s.Total == 0 {
		return 1
	}
	return float64(s.Total-s.Occupied) / float64(s.Total)
}

// LotStats is a point-in-time snapshot of lot occupancy.
type LotStats struct {
	Timestamp      time.Time               `json:"timestamp"`
	TotalSpaces    int                     `json:"total_spaces"`
	FreeSpaces     int                     `json:"free_spaces"`
	OccupiedSpaces int                     `json:"occupied_spaces"`
	OccupancyRate  float64                 `json:"occupancy_rate"` // occupied/total in [0,1]
	ActiveVehicles int                     `json:"active_vehicles"`
	Sections       map[string]SectionStats `json:"sections,omitempty"`
}
