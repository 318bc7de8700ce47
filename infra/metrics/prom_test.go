package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	coremetrics "github.com/openlot/parkd/core/metrics"
	"github.com/openlot/parkd/core/model"
)

func TestPromSink_RecordAllocation(t *testing.T) {
	reg := prometheus.NewRegistry()
	sinkIf, err := NewPromSinkWithRegistry(coremetrics.Config{}, reg)
	if err != nil {
		t.Fatalf("create sink: %v", err)
	}
	sink, ok := sinkIf.(*PromSink)
	if !ok {
		t.Fatalf("expected PromSink")
	}
	now := time.Now()
	evs := []coremetrics.AllocationEvent{
		{VehicleID: "veh1", SpaceID: "S001", Section: "A1", Size: model.SizeMedium, Score: 0.91, Outcome: "allocated", Time: now},
		{VehicleID: "veh2", Size: model.SizeLarge, Score: 0, Outcome: "no_match", Time: now},
	}
	if err := sink.RecordAllocation(evs); err != nil {
		t.Fatalf("record error: %v", err)
	}
	if err := sink.RecordAllocationLatency([]coremetrics.AllocationLatency{{
		VehicleID: "veh1",
		Outcome:   "allocated",
		Latency:   150 * time.Millisecond,
	}}); err != nil {
		t.Fatalf("latency error: %v", err)
	}

	expected := `
# HELP allocations_total Total number of allocation decisions
# TYPE allocations_total counter
allocations_total{group="false",outcome="allocated",section="A1"} 1
allocations_total{group="false",outcome="no_match",section="none"} 1
`
	if err := testutil.CollectAndCompare(sink.allocations, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected metrics: %v", err)
	}
	if c := testutil.CollectAndCount(sink.score); c == 0 {
		t.Errorf("score histogram not recorded")
	}
	if c := testutil.CollectAndCount(sink.latency); c == 0 {
		t.Errorf("latency not recorded")
	}
}

func TestPromSink_RecordOccupancy(t *testing.T) {
	reg := prometheus.NewRegistry()
	sinkIf, err := NewPromSinkWithRegistry(coremetrics.Config{}, reg)
	if err != nil {
		t.Fatalf("create sink: %v", err)
	}
	sink := sinkIf.(*PromSink)
	stats := model.LotStats{
		TotalSpaces:    4,
		FreeSpaces:     1,
		OccupiedSpaces: 3,
		OccupancyRate:  0.75,
		Sections: map[string]model.SectionStats{
			"A1": {Total: 2, Occupied: 2},
			"B1": {Total: 2, Occupied: 1},
		},
	}
	if err := sink.RecordOccupancy(stats); err != nil {
		t.Fatalf("occupancy error: %v", err)
	}

	expected := `
# HELP lot_occupancy_ratio Occupied share of physical spaces, total and per section
# TYPE lot_occupancy_ratio gauge
lot_occupancy_ratio{section="A1"} 1
lot_occupancy_ratio{section="B1"} 0.5
lot_occupancy_ratio{section="all"} 0.75
`
	if err := testutil.CollectAndCompare(sink.occupancy, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected occupancy metrics: %v", err)
	}
}

func TestPromSink_DoubleRegistrationTolerated(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewPromSinkWithRegistry(coremetrics.Config{}, reg); err != nil {
		t.Fatalf("first registration: %v", err)
	}
	if _, err := NewPromSinkWithRegistry(coremetrics.Config{}, reg); err != nil {
		t.Fatalf("second registration must reuse collectors: %v", err)
	}
}
