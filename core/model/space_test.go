package model

import "testing"

func TestSpaceValidateOccupancy(t *testing.T) {
	s := ParkingSpace{ID: "S1", Occupied: true, Capacity: SizeMedium}
	if err := s.Validate(); err == nil {
		t.Fatal("expected error for occupied space without vehicle id")
	}
	s = ParkingSpace{ID: "S1", VehicleID: "veh-1", Capacity: SizeMedium}
	if err := s.Validate(); err == nil {
		t.Fatal("expected error for vehicle id on free space")
	}
	s = ParkingSpace{ID: "S1", Occupied: true, VehicleID: "veh-1", Capacity: SizeMedium}
	if err := s.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSpaceValidateGroup(t *testing.T) {
	g := ParkingSpace{ID: "G1", IsGroup: true}
	if err := g.Validate(); err == nil {
		t.Fatal("expected error for group without members")
	}
	g.MemberSpaces = []string{"S1", "S2"}
	if err := g.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := ParkingSpace{ID: "S1", Capacity: SizeSmall, MemberSpaces: []string{"S2"}}
	if err := s.Validate(); err == nil {
		t.Fatal("expected error for members on a non-group record")
	}
}

func TestSpaceValidateCapacity(t *testing.T) {
	s := ParkingSpace{ID: "S1", Capacity: 0}
	if err := s.Validate(); err == nil {
		t.Fatal("expected error for capacity out of range")
	}
	s.Capacity = 4
	if err := s.Validate(); err == nil {
		t.Fatal("expected error for capacity out of range")
	}
}

func TestCapacityFromGeometry(t *testing.T) {
	if got := CapacityFromGeometry(Position{Width: 107, Height: 48}); got != SizeMedium {
		t.Fatalf("standard cell: expected medium got %v", got)
	}
	if got := CapacityFromGeometry(Position{Width: 161, Height: 48}); got != SizeLarge {
		t.Fatalf("wide cell: expected large got %v", got)
	}
	if got := CapacityFromGeometry(Position{Width: 70, Height: 48}); got != SizeSmall {
		t.Fatalf("narrow cell: expected small got %v", got)
	}
}

func TestVehicleSize(t *testing.T) {
	if SizeSmall.String() != "small" || SizeLarge.String() != "large" {
		t.Fatal("unexpected size names")
	}
	if VehicleSize(0).Valid() || VehicleSize(4).Valid() {
		t.Fatal("out-of-range sizes must be invalid")
	}
	if !SizeMedium.Valid() {
		t.Fatal("medium must be valid")
	}
}

func TestAllocationRequestValidate(t *testing.T) {
	r := AllocationRequest{VehicleID: "veh-1", Size: SizeSmall}
	if err := r.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	r.Size = 0
	if err := r.Validate(); err == nil {
		t.Fatal("expected error for size 0")
	}
	r = AllocationRequest{Size: SizeSmall}
	if err := r.Validate(); err == nil {
		t.Fatal("expected error for empty vehicle id")
	}
}
