package usage

import "time"

// Record aggregates allocation outcomes for a section and day. Rejected
// requests without a preferred section are bucketed under "any".
type Record struct {
	Section     string
	Date        time.Time
	Allocations int
	Rejections  int
	ScoreSum    float64
}

// AcceptanceRate returns the share of requests that ended with a space.
func (r Record) AcceptanceRate() float64 {
	total := r.Allocations + r.Rejections
	if total == 0 {
		return 0
	}
	return float64(r.Allocations) / float64(total)
}

// MeanScore returns the average confidence score of the day's assignments.
func (r Record) MeanScore() float64 {
	if r.Allocations == 0 {
		return 0
	}
	return r.ScoreSum / float64(r.Allocations)
}
