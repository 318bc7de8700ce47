package allocation

import (
	"reflect"
	"testing"

	"github.com/openlot/parkd/core/model"
)

func snap(spaces ...model.ParkingSpace) map[string]model.ParkingSpace {
	m := make(map[string]model.ParkingSpace, len(spaces))
	for _, sp := range spaces {
		m[sp.ID] = sp
	}
	return m
}

func TestEngineAllocate_ExactFitBeatsOversize(t *testing.T) {
	eng := NewEngine(Config{})
	spaces := snap(
		model.ParkingSpace{ID: "tight", Section: "A1", DistanceToEntrance: 50, Capacity: model.SizeSmall},
		model.ParkingSpace{ID: "roomy", Section: "A1", DistanceToEntrance: 50, Capacity: model.SizeLarge},
	)
	res, err := eng.Allocate(spaces, model.AllocationRequest{VehicleID: "v1", Size: model.SizeSmall})
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if res.SpaceID != "tight" {
		t.Fatalf("expected exact fit to win, got %#v", res)
	}
}

func TestEngineAllocate_TooSmallSpacesAreExcluded(t *testing.T) {
	eng := NewEngine(Config{})
	spaces := snap(
		model.ParkingSpace{ID: "small", Section: "A1", DistanceToEntrance: 5, Capacity: model.SizeSmall},
		model.ParkingSpace{ID: "large", Section: "B2", DistanceToEntrance: 500, Capacity: model.SizeLarge},
	)
	res, err := eng.Allocate(spaces, model.AllocationRequest{VehicleID: "v1", Size: model.SizeLarge})
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if res.SpaceID != "large" {
		t.Fatalf("undersized space must never be chosen, got %#v", res)
	}
}

func TestEngineAllocate_SectionPreferenceWins(t *testing.T) {
	eng := NewEngine(Config{})
	spaces := snap(
		model.ParkingSpace{ID: "far-preferred", Section: "A1", DistanceToEntrance: 100, Capacity: model.SizeMedium},
		model.ParkingSpace{ID: "near-other", Section: "B1", DistanceToEntrance: 10, Capacity: model.SizeMedium},
	)
	res, err := eng.Allocate(spaces, model.AllocationRequest{VehicleID: "v1", Size: model.SizeMedium, PreferredSection: "A1"})
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if res.SpaceID != "far-preferred" || res.Section != "A1" {
		t.Fatalf("preferred section should outweigh the distance gap, got %#v", res)
	}
}

func TestEngineAllocate_NoPreferenceTakesCloserSpace(t *testing.T) {
	eng := NewEngine(Config{})
	spaces := snap(
		model.ParkingSpace{ID: "far", Section: "A1", DistanceToEntrance: 100, Capacity: model.SizeMedium},
		model.ParkingSpace{ID: "near", Section: "B1", DistanceToEntrance: 10, Capacity: model.SizeMedium},
	)
	res, err := eng.Allocate(spaces, model.AllocationRequest{VehicleID: "v1", Size: model.SizeMedium})
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if res.SpaceID != "near" {
		t.Fatalf("without a preference the closer space wins, got %#v", res)
	}
}

func TestEngineAllocate_LoadBalancingShiftsChoice(t *testing.T) {
	spaces := snap(
		model.ParkingSpace{ID: "a1", Section: "A", DistanceToEntrance: 10, Capacity: model.SizeMedium},
		model.ParkingSpace{ID: "a2", Section: "A", DistanceToEntrance: 10, Capacity: model.SizeMedium,
			Occupied: true, VehicleID: "parked"},
		model.ParkingSpace{ID: "b1", Section: "B", DistanceToEntrance: 10, Capacity: model.SizeMedium},
	)
	req := model.AllocationRequest{VehicleID: "v1", Size: model.SizeMedium}

	proximityOnly := NewEngine(Config{LocationWeight: 1})
	res, err := proximityOnly.Allocate(spaces, req)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if res.SpaceID != "a1" {
		t.Fatalf("pure proximity ties break on id, got %#v", res)
	}

	balanceOnly := NewEngine(Config{LocationWeight: 1, LoadBalancingWeight: 1})
	res, err = balanceOnly.Allocate(spaces, req)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if res.SpaceID != "b1" {
		t.Fatalf("pure balance should steer into the emptier section, got %#v", res)
	}
}

func TestEngineAllocate_DeterministicTieBreak(t *testing.T) {
	// Pure balance scoring makes every free space in a section score the
	// same, so the fallbacks decide: distance first, then id.
	eng := NewEngine(Config{LocationWeight: 1, LoadBalancingWeight: 1})
	byDistance := snap(
		model.ParkingSpace{ID: "z", Section: "A1", DistanceToEntrance: 10, Capacity: model.SizeMedium},
		model.ParkingSpace{ID: "y", Section: "A1", DistanceToEntrance: 20, Capacity: model.SizeMedium},
	)
	res, err := eng.Allocate(byDistance, model.AllocationRequest{VehicleID: "v1", Size: model.SizeMedium})
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if res.SpaceID != "z" {
		t.Fatalf("score ties must fall back to distance, got %#v", res)
	}

	byID := snap(
		model.ParkingSpace{ID: "s2", Section: "A1", DistanceToEntrance: 10, Capacity: model.SizeMedium},
		model.ParkingSpace{ID: "s1", Section: "A1", DistanceToEntrance: 10, Capacity: model.SizeMedium},
	)
	for i := 0; i < 10; i++ {
		res, err = eng.Allocate(byID, model.AllocationRequest{VehicleID: "v1", Size: model.SizeMedium})
		if err != nil {
			t.Fatalf("allocate: %v", err)
		}
		if res.SpaceID != "s1" {
			t.Fatalf("full ties must fall back to the smaller id, got %#v", res)
		}
	}
}

func TestEngineAllocate_Sentinels(t *testing.T) {
	eng := NewEngine(Config{})

	res, err := eng.Allocate(snap(), model.AllocationRequest{VehicleID: "v1", Size: model.SizeSmall})
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if res.SpaceID != "" || res.Score != 0 || res.Reason != ReasonNoCapacity {
		t.Fatalf("empty lot must yield the no-capacity sentinel, got %#v", res)
	}

	occupied := snap(model.ParkingSpace{ID: "s1", Section: "A1", Capacity: model.SizeLarge,
		Occupied: true, VehicleID: "parked"})
	res, err = eng.Allocate(occupied, model.AllocationRequest{VehicleID: "v1", Size: model.SizeSmall})
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if res.Reason != ReasonNoCapacity {
		t.Fatalf("full lot must yield no_capacity, got %#v", res)
	}

	tooSmall := snap(model.ParkingSpace{ID: "s1", Section: "A1", Capacity: model.SizeSmall})
	res, err = eng.Allocate(tooSmall, model.AllocationRequest{VehicleID: "v1", Size: model.SizeLarge})
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if res.SpaceID != "" || res.Score != 0 || res.Reason != ReasonNoMatch {
		t.Fatalf("free-but-unsuitable lot must yield no_match, got %#v", res)
	}
}

func TestEngineAllocate_InvalidInputFailsFast(t *testing.T) {
	eng := NewEngine(Config{})
	good := model.ParkingSpace{ID: "s1", Section: "A1", Capacity: model.SizeMedium}

	if _, err := eng.Allocate(snap(good), model.AllocationRequest{VehicleID: "v1"}); err == nil {
		t.Fatalf("zero size must be rejected")
	}
	if _, err := eng.Allocate(snap(good), model.AllocationRequest{Size: model.SizeSmall}); err == nil {
		t.Fatalf("empty vehicle id must be rejected")
	}

	mismatched := map[string]model.ParkingSpace{"other": good}
	if _, err := eng.Allocate(mismatched, model.AllocationRequest{VehicleID: "v1", Size: model.SizeSmall}); err == nil {
		t.Fatalf("snapshot key mismatch must be rejected")
	}

	corrupt := snap(model.ParkingSpace{ID: "s1", Section: "A1", Capacity: model.SizeMedium, Occupied: true})
	if _, err := eng.Allocate(corrupt, model.AllocationRequest{VehicleID: "v1", Size: model.SizeSmall}); err == nil {
		t.Fatalf("occupied space without vehicle id must be rejected")
	}
}

func TestEngineAllocate_DoesNotMutateSnapshot(t *testing.T) {
	eng := NewEngine(Config{})
	spaces := snap(
		model.ParkingSpace{ID: "s1", Section: "A1", DistanceToEntrance: 10, Capacity: model.SizeMedium},
		model.ParkingSpace{ID: "s2", Section: "B1", DistanceToEntrance: 20, Capacity: model.SizeLarge},
	)
	before := snap(
		model.ParkingSpace{ID: "s1", Section: "A1", DistanceToEntrance: 10, Capacity: model.SizeMedium},
		model.ParkingSpace{ID: "s2", Section: "B1", DistanceToEntrance: 20, Capacity: model.SizeLarge},
	)
	if _, err := eng.Allocate(spaces, model.AllocationRequest{VehicleID: "v1", Size: model.SizeSmall}); err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if !reflect.DeepEqual(spaces, before) {
		t.Fatalf("engine mutated its input snapshot")
	}
}

func TestScoreSpaces_EligibleOnlyAndBounded(t *testing.T) {
	eng := NewEngine(Config{})
	spaces := snap(
		model.ParkingSpace{ID: "free", Section: "A1", DistanceToEntrance: 10, Capacity: model.SizeMedium},
		model.ParkingSpace{ID: "busy", Section: "A1", DistanceToEntrance: 10, Capacity: model.SizeMedium,
			Occupied: true, VehicleID: "parked"},
		model.ParkingSpace{ID: "tiny", Section: "A1", DistanceToEntrance: 10, Capacity: model.SizeSmall},
		model.ParkingSpace{ID: "grp", Section: "A1", DistanceToEntrance: 10, Capacity: model.SizeLarge,
			IsGroup: true, MemberSpaces: []string{"free"}},
	)
	scores, err := eng.ScoreSpaces(spaces, model.AllocationRequest{VehicleID: "v1", Size: model.SizeMedium, PreferredSection: "A1"})
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if len(scores) != 1 {
		t.Fatalf("expected only the free eligible space, got %v", scores)
	}
	s, ok := scores["free"]
	if !ok {
		t.Fatalf("missing score for free space: %v", scores)
	}
	if s <= 0 || s > 1 {
		t.Fatalf("score out of range: %f", s)
	}
}

func TestEngineWeightIsolation(t *testing.T) {
	sizeOnly := NewEngine(Config{SizeWeight: 1})
	spaces := snap(
		model.ParkingSpace{ID: "exact", Section: "A1", DistanceToEntrance: 900, Capacity: model.SizeSmall},
		model.ParkingSpace{ID: "over", Section: "A1", DistanceToEntrance: 1, Capacity: model.SizeLarge},
	)
	res, err := sizeOnly.Allocate(spaces, model.AllocationRequest{VehicleID: "v1", Size: model.SizeSmall})
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if res.SpaceID != "exact" || res.Score != 1 {
		t.Fatalf("size-only profile must rank the exact fit at 1.0, got %#v", res)
	}
}
