package logging

import (
	"context"
	"testing"
	"time"
)

func TestJSONLStore_AppendQuery(t *testing.T) {
	path := t.TempDir() + "/alloc.jsonl"
	store, err := NewJSONLStore(path)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer func() { _ = store.Close() }()
	base := time.Now()
	recs := []LogRecord{
		{Timestamp: base, Kind: KindAllocation, VehicleID: "veh-1", Outcome: Outcome{SpaceID: "S001", Reason: "allocated", Section: "A1"}},
		{Timestamp: base.Add(time.Minute), Kind: KindAllocation, VehicleID: "veh-2", Outcome: Outcome{Reason: "no_capacity"}},
	}
	for _, r := range recs {
		if err := store.Append(context.Background(), r); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	out, err := store.Query(context.Background(), LogQuery{})
	if err != nil || len(out) != 2 {
		t.Fatalf("query all: %v %d", err, len(out))
	}
	out, err = store.Query(context.Background(), LogQuery{VehicleID: "veh-1"})
	if err != nil || len(out) != 1 || out[0].Outcome.SpaceID != "S001" {
		t.Fatalf("vehicle filter: %v %#v", err, out)
	}
	out, err = store.Query(context.Background(), LogQuery{End: base.Add(30 * time.Second)})
	if err != nil || len(out) != 1 {
		t.Fatalf("end filter: %v %d", err, len(out))
	}
	out, err = store.Query(context.Background(), LogQuery{Section: "A1"})
	if err != nil || len(out) != 1 || out[0].VehicleID != "veh-1" {
		t.Fatalf("section filter: %v %#v", err, out)
	}
}
