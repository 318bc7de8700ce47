package lot

import (
	"testing"

	"github.com/openlot/parkd/core/model"
)

func TestLayoutGrid(t *testing.T) {
	cfg := LayoutConfig{Grid: &GridConfig{Rows: 2, Cols: 2, CellWidth: 100, CellHeight: 50, GapX: 10, GapY: 10}}
	spaces, err := cfg.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(spaces) != 4 {
		t.Fatalf("expected 4 spaces, got %d", len(spaces))
	}
	byID := map[string]model.ParkingSpace{}
	for _, sp := range spaces {
		byID[sp.ID] = sp
	}
	s1 := byID["S001"]
	if s1.Position.X != 0 || s1.Position.Y != 0 {
		t.Fatalf("S001 position: %#v", s1.Position)
	}
	if s1.DistanceToEntrance != 0 {
		t.Fatalf("S001 distance: %v", s1.DistanceToEntrance)
	}
	s4 := byID["S004"]
	if s4.Position.X != 110 || s4.Position.Y != 60 {
		t.Fatalf("S004 position: %#v", s4.Position)
	}
	if s4.DistanceToEntrance != 170 {
		t.Fatalf("S004 distance: %v", s4.DistanceToEntrance)
	}
	// quadrants: west/east split first, north/south second
	if s1.Section != "A1" || byID["S002"].Section != "B1" ||
		byID["S003"].Section != "A2" || s4.Section != "B2" {
		t.Fatalf("sections: %s %s %s %s", s1.Section, byID["S002"].Section, byID["S003"].Section, s4.Section)
	}
}

func TestLayoutGridCapacityPattern(t *testing.T) {
	cfg := LayoutConfig{Grid: &GridConfig{Rows: 3, Cols: 1, CellWidth: 100, CellHeight: 50, Capacities: []int{1, 3}}}
	spaces, err := cfg.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	want := []model.VehicleSize{model.SizeSmall, model.SizeLarge, model.SizeSmall}
	for i, sp := range spaces {
		if sp.Capacity != want[i] {
			t.Fatalf("row %d capacity %v, want %v", i, sp.Capacity, want[i])
		}
	}
}

func TestLayoutExplicitSpacesAndGroups(t *testing.T) {
	cfg := LayoutConfig{
		Spaces: []SpaceConfig{
			{ID: "S001", X: 10, Y: 20, Width: 107, Height: 48},
			{ID: "S002", X: 130, Y: 20, Width: 161, Height: 48, Section: "B1"},
			{ID: "W001", X: 10, Y: 80, Width: 161, Height: 48, Capacity: 3, Distance: 5},
		},
		Groups: []GroupConfig{{ID: "G001", Members: []string{"S001", "S002"}}},
	}
	spaces, err := cfg.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	byID := map[string]model.ParkingSpace{}
	for _, sp := range spaces {
		byID[sp.ID] = sp
	}
	if got := byID["S001"].Capacity; got != model.SizeMedium {
		t.Fatalf("S001 inferred capacity: %v", got)
	}
	if got := byID["S002"].Capacity; got != model.SizeLarge {
		t.Fatalf("S002 inferred capacity: %v", got)
	}
	if got := byID["W001"].DistanceToEntrance; got != 5 {
		t.Fatalf("explicit distance ignored: %v", got)
	}
	g := byID["G001"]
	if !g.IsGroup || g.MemberCount() != 2 {
		t.Fatalf("group not built: %#v", g)
	}
	if g.DistanceToEntrance != 30 {
		t.Fatalf("group distance must be closest member: %v", g.DistanceToEntrance)
	}
	if g.Section == "" {
		t.Fatal("group section must inherit from members")
	}
}

func TestLayoutValidate(t *testing.T) {
	if err := (LayoutConfig{}).Validate(); err == nil {
		t.Fatal("empty layout must fail validation")
	}
	bad := LayoutConfig{Grid: &GridConfig{Rows: 1, Cols: 1, Capacities: []int{9}}}
	if err := bad.Validate(); err == nil {
		t.Fatal("capacity 9 must fail validation")
	}
	missing := LayoutConfig{
		Spaces: []SpaceConfig{{ID: "S001", Width: 100, Height: 50}},
		Groups: []GroupConfig{{ID: "G001", Members: []string{"S999"}}},
	}
	if _, err := missing.Build(); err == nil {
		t.Fatal("unknown member must fail build")
	}
}

func TestLayoutDefaults(t *testing.T) {
	var cfg LayoutConfig
	cfg.SetDefaults()
	spaces, err := cfg.Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if len(spaces) != 72 {
		t.Fatalf("default grid size: %d", len(spaces))
	}
	sizes := map[model.VehicleSize]bool{}
	for _, sp := range spaces {
		sizes[sp.Capacity] = true
	}
	if !sizes[model.SizeSmall] || !sizes[model.SizeMedium] || !sizes[model.SizeLarge] {
		t.Fatalf("default grid must mix capacities: %#v", sizes)
	}
}
