package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/openlot/parkd/core/model"
)

// WriteJSON writes the occupancy samples to w in JSON format.
func WriteJSON(w io.Writer, stats []model.LotStats) error {
	enc := json.NewEncoder(w)
	return enc.Encode(stats)
}

// WriteCSV writes the occupancy samples to w in CSV format.
func WriteCSV(w io.Writer, stats []model.LotStats) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"timestamp", "total_spaces", "free_spaces", "occupied_spaces", "active_allocations"}); err != nil {
		return err
	}
	for _, s := range stats {
		rec := []string{
			s.Timestamp.Format(time.RFC3339),
			strconv.Itoa(s.TotalSpaces),
			strconv.Itoa(s.FreeSpaces),
			strconv.Itoa(s.OccupiedSpaces),
			strconv.Itoa(s.ActiveVehicles),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
