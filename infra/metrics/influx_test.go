package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/openlot/parkd/core/metrics"
	"github.com/openlot/parkd/core/model"
)

func TestInfluxSink_RecordAllocation(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		body = string(data)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	now := time.Now()
	ev := coremetrics.AllocationEvent{
		VehicleID:        "veh1",
		SpaceID:          "S001",
		Section:          "A1",
		Size:             model.SizeMedium,
		PreferredSection: "A1",
		Score:            0.8765,
		Outcome:          "allocated",
		Time:             now,
	}

	if err := sink.RecordAllocation([]coremetrics.AllocationEvent{ev}); err != nil {
		t.Fatalf("record error: %v", err)
	}
	p := write.NewPointWithMeasurement("allocation_event").
		AddTag("vehicle_id", "veh1").
		AddTag("outcome", "allocated").
		AddTag("group", "false").
		AddTag("component", "allocation_manager").
		AddTag("space_id", "S001").
		AddTag("section", "A1").
		AddTag("preferred_section", "A1").
		AddField("score", 0.877).
		AddField("vehicle_size", 2).
		SetTime(now)
	expected := strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
	if strings.TrimSpace(body) != expected {
		t.Errorf("unexpected body:\n got %s\nwant %s", body, expected)
	}
}

func TestInfluxSink_RecordOccupancyWritesSections(t *testing.T) {
	var bodies []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		bodies = append(bodies, strings.TrimSpace(string(data)))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	stats := model.LotStats{
		Timestamp:      time.Now(),
		TotalSpaces:    4,
		FreeSpaces:     3,
		OccupiedSpaces: 1,
		OccupancyRate:  0.25,
		ActiveVehicles: 1,
		Sections: map[string]model.SectionStats{
			"A1": {Total: 2, Occupied: 1},
			"B1": {Total: 2, Occupied: 0},
		},
	}
	if err := sink.RecordOccupancy(stats); err != nil {
		t.Fatalf("record error: %v", err)
	}
	if len(bodies) != 3 {
		t.Fatalf("expected 3 writes (lot + 2 sections) got %d: %v", len(bodies), bodies)
	}
	if !strings.Contains(bodies[0], `section=all`) {
		t.Errorf("first point must aggregate the lot: %s", bodies[0])
	}
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(srv.URL+"/api/v2/write", "tok", "org", "bucket")
	if _, ok := sink.(*InfluxSink); ok {
		t.Fatalf("expected NopSink on failing health check")
	}
	if !called {
		t.Fatalf("health endpoint not called")
	}
}
