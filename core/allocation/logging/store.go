package logging

import (
	"context"
	"time"

	"github.com/openlot/parkd/core/model"
)

// Record kinds written by the allocation manager.
const (
	KindAllocation = "allocation"
	KindGroup      = "group"
	KindRelease    = "release"
	KindReset      = "reset"
)

// Outcome mirrors allocation.Result for logging purposes.
type Outcome struct {
	SpaceID     string  `json:"space_id,omitempty"`
	VehicleID   string  `json:"vehicle_id,omitempty"`
	Score       float64 `json:"score"`
	Reason      string  `json:"reason,omitempty"`
	Section     string  `json:"section,omitempty"`
	MemberCount int     `json:"member_count,omitempty"`
}

// LogRecord captures one allocation decision, release or reset together
// with the occupancy statistics after the commit.
type LogRecord struct {
	Timestamp        time.Time       `json:"timestamp"`
	EventID          string          `json:"event_id,omitempty"`
	Kind             string          `json:"kind"`
	VehicleID        string          `json:"vehicle_id,omitempty"`
	VehicleSize      int             `json:"vehicle_size,omitempty"`
	PreferredSection string          `json:"preferred_section,omitempty"`
	Outcome          Outcome         `json:"outcome"`
	SpaceIDs         []string        `json:"space_ids,omitempty"`
	Stats            *model.LotStats `json:"stats,omitempty"`
}

// LogQuery defines filters for retrieving records.
type LogQuery struct {
	Start     time.Time
	End       time.Time
	Kind      string
	VehicleID string
	SpaceID   string
	Section   string
	Reason    string
}

// LogStore persists LogRecords and supports querying.
type LogStore interface {
	Append(ctx context.Context, rec LogRecord) error
	Query(ctx context.Context, q LogQuery) ([]LogRecord, error)
	Close() error
}

// matches applies the query filters shared by the file-backed stores.
func matches(q LogQuery, r LogRecord) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.Kind != "" && r.Kind != q.Kind {
		return false
	}
	if q.Reason != "" && r.Outcome.Reason != q.Reason {
		return false
	}
	if q.Section != "" && r.Outcome.Section != q.Section {
		return false
	}
	if q.VehicleID != "" && r.VehicleID != q.VehicleID && r.Outcome.VehicleID != q.VehicleID {
		return false
	}
	if q.SpaceID != "" {
		if r.Outcome.SpaceID == q.SpaceID {
			return true
		}
		for _, id := range r.SpaceIDs {
			if id == q.SpaceID {
				return true
			}
		}
		return false
	}
	return true
}
