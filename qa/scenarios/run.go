package scenarios

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/openlot/parkd/core/allocation"
	"github.com/openlot/parkd/core/lot"
	coremetrics "github.com/openlot/parkd/core/metrics"
	"github.com/openlot/parkd/core/model"
	"github.com/openlot/parkd/infra/logger"
	"github.com/openlot/parkd/infra/metrics"
	"github.com/openlot/parkd/infra/mqtt"
	"github.com/openlot/parkd/internal/eventbus"
)

func RunScenario(t *testing.T, sc *Scenario) {
	reg := prometheus.NewRegistry()
	sink, err := metrics.NewPromSinkWithRegistry(coremetrics.Config{}, reg)
	if err != nil {
		t.Fatalf("prom sink: %v", err)
	}

	pub := mqtt.NewMockNotifier()
	for _, id := range sc.FailPublish {
		pub.FailIDs[id] = true
	}

	defs := make([]model.ParkingSpace, 0, len(sc.Spaces)+len(sc.Groups))
	for _, def := range sc.Spaces {
		defs = append(defs, def.ToModel())
	}
	for _, def := range sc.Groups {
		defs = append(defs, def.ToModel())
	}
	store, err := lot.NewMemoryStore(defs)
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	// Scenario weights are pinned so expectations stay stable if the
	// default profile ever changes; only the blend knob comes from the
	// file.
	engine := allocation.Engine{
		SizeWeight:          0.40,
		SectionWeight:       0.25,
		LocationWeight:      0.35,
		LoadBalancingWeight: sc.LoadBalancingWeight,
	}

	bus := eventbus.New(16)
	mgr, err := allocation.NewManager(store, engine, pub, sink, bus, logger.NopLogger{}, 0)
	if err != nil {
		t.Fatalf("manager: %v", err)
	}

	ctx := context.Background()
	allocated := 0
	for i, rd := range sc.Requests {
		for spaceID, before := range sc.OccupyAfter {
			if i == before {
				if _, serr := store.SetState(spaceID, true, "sensor-"+spaceID, time.Now()); serr != nil {
					t.Fatalf("sensor seizure of %s: %v", spaceID, serr)
				}
			}
		}
		for vehicleID, before := range sc.ReleaseAfter {
			if i == before {
				if _, rerr := mgr.Release(ctx, vehicleID); rerr != nil {
					t.Fatalf("release %s: %v", vehicleID, rerr)
				}
			}
		}

		var res allocation.Result
		var aerr error
		if rd.Group {
			res, aerr = mgr.AllocateGroup(ctx, model.GroupRequest{
				VehicleID: rd.VehicleID,
				Size:      model.VehicleSize(rd.Size),
			})
		} else {
			res, aerr = mgr.Allocate(ctx, model.AllocationRequest{
				VehicleID:        rd.VehicleID,
				Size:             model.VehicleSize(rd.Size),
				PreferredSection: rd.PreferredSection,
			})
		}
		if aerr != nil {
			t.Fatalf("request %d (%s): %v", i, rd.VehicleID, aerr)
		}
		if res.Allocated() {
			allocated++
		}
	}

	if allocated != sc.Expected.Allocated {
		t.Errorf("scenario %s expected %d allocated, got %d", sc.Name, sc.Expected.Allocated, allocated)
	}
	for vehicleID, spaceID := range sc.Expected.Assignments {
		sp, ok := store.Find(vehicleID)
		if !ok {
			t.Errorf("scenario %s: vehicle %s holds no space", sc.Name, vehicleID)
			continue
		}
		if sp.ID != spaceID {
			t.Errorf("scenario %s: vehicle %s in %s, expected %s", sc.Name, vehicleID, sp.ID, spaceID)
		}
	}
}
