package lot

import (
	"fmt"

	"github.com/openlot/parkd/core/model"
)

// LayoutConfig describes the lot geometry. Either a grid is generated or
// explicit space entries are given; group entries reference member ids.
type LayoutConfig struct {
	Grid   *GridConfig   `json:"grid,omitempty"`
	Spaces []SpaceConfig `json:"spaces,omitempty"`
	Groups []GroupConfig `json:"groups,omitempty"`
}

// GridConfig generates rows x cols spaces from a calibration cell.
type GridConfig struct {
	Rows       int   `json:"rows"`
	Cols       int   `json:"cols"`
	CellWidth  int   `json:"cell_width"`
	CellHeight int   `json:"cell_height"`
	OriginX    int   `json:"origin_x"`
	OriginY    int   `json:"origin_y"`
	GapX       int   `json:"gap_x"`
	GapY       int   `json:"gap_y"`
	// Capacities is cycled over rows; empty means geometry inference.
	Capacities []int `json:"capacities,omitempty"`
}

// SpaceConfig declares one space. Section, capacity and distance are
// derived from the position when left empty.
type SpaceConfig struct {
	ID       string  `json:"id"`
	X        int     `json:"x"`
	Y        int     `json:"y"`
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	Section  string  `json:"section,omitempty"`
	Capacity int     `json:"capacity,omitempty"`
	Distance float64 `json:"distance,omitempty"`
}

// GroupConfig declares a group of spaces assigned together.
type GroupConfig struct {
	ID      string   `json:"id"`
	Members []string `json:"members"`
	Section string   `json:"section,omitempty"`
}

// SetDefaults fills a small mixed-capacity grid when nothing is declared.
func (c *LayoutConfig) SetDefaults() {
	if c.Grid == nil && len(c.Spaces) == 0 {
		c.Grid = &GridConfig{Rows: 6, Cols: 12}
	}
	if c.Grid != nil {
		if c.Grid.CellWidth == 0 {
			c.Grid.CellWidth = 107
		}
		if c.Grid.CellHeight == 0 {
			c.Grid.CellHeight = 48
		}
		if c.Grid.GapX == 0 {
			c.Grid.GapX = 8
		}
		if c.Grid.GapY == 0 {
			c.Grid.GapY = 8
		}
		if len(c.Grid.Capacities) == 0 {
			c.Grid.Capacities = []int{2, 1, 2, 3}
		}
	}
}

// Validate rejects layouts that cannot produce a consistent lot.
func (c LayoutConfig) Validate() error {
	if c.Grid == nil && len(c.Spaces) == 0 {
		return fmt.Errorf("layout: declare a grid or explicit spaces")
	}
	if c.Grid != nil {
		if c.Grid.Rows <= 0 || c.Grid.Cols <= 0 {
			return fmt.Errorf("layout: grid must have positive rows and cols")
		}
		for _, cap := range c.Grid.Capacities {
			if !model.VehicleSize(cap).Valid() {
				return fmt.Errorf("layout: grid capacity %d out of range", cap)
			}
		}
	}
	for _, sp := range c.Spaces {
		if sp.ID == "" {
			return fmt.Errorf("layout: space entry without id")
		}
		if sp.Capacity != 0 && !model.VehicleSize(sp.Capacity).Valid() {
			return fmt.Errorf("layout: space %s capacity %d out of range", sp.ID, sp.Capacity)
		}
	}
	for _, g := range c.Groups {
		if g.ID == "" {
			return fmt.Errorf("layout: group entry without id")
		}
		if len(g.Members) == 0 {
			return fmt.Errorf("layout: group %s has no members", g.ID)
		}
	}
	return nil
}

// Build materializes the layout into space records. Sections are derived
// from the lot halves (west/east then north/south, A1 through B2),
// distance to entrance is the Manhattan distance from the plan origin.
func (c LayoutConfig) Build() ([]model.ParkingSpace, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	var spaces []model.ParkingSpace
	if c.Grid != nil {
		g := c.Grid
		n := 0
		for row := 0; row < g.Rows; row++ {
			for col := 0; col < g.Cols; col++ {
				n++
				pos := model.Position{
					X:      g.OriginX + col*(g.CellWidth+g.GapX),
					Y:      g.OriginY + row*(g.CellHeight+g.GapY),
					Width:  g.CellWidth,
					Height: g.CellHeight,
				}
				capacity := model.CapacityFromGeometry(pos)
				if len(g.Capacities) > 0 {
					capacity = model.VehicleSize(g.Capacities[row%len(g.Capacities)])
				}
				spaces = append(spaces, model.ParkingSpace{
					ID:                 fmt.Sprintf("S%03d", n),
					Position:           pos,
					Capacity:           capacity,
					DistanceToEntrance: float64(pos.X + pos.Y),
				})
			}
		}
	}
	for _, sc := range c.Spaces {
		pos := model.Position{X: sc.X, Y: sc.Y, Width: sc.Width, Height: sc.Height}
		sp := model.ParkingSpace{
			ID:                 sc.ID,
			Position:           pos,
			Section:            sc.Section,
			DistanceToEntrance: sc.Distance,
		}
		if sc.Capacity != 0 {
			sp.Capacity = model.VehicleSize(sc.Capacity)
		} else {
			sp.Capacity = model.CapacityFromGeometry(pos)
		}
		if sc.Distance == 0 {
			sp.DistanceToEntrance = float64(pos.X + pos.Y)
		}
		spaces = append(spaces, sp)
	}

	assignSections(spaces)

	byID := make(map[string]*model.ParkingSpace, len(spaces))
	for i := range spaces {
		byID[spaces[i].ID] = &spaces[i]
	}
	for _, gc := range c.Groups {
		grp, err := buildGroup(gc, byID)
		if err != nil {
			return nil, err
		}
		spaces = append(spaces, grp)
	}

	for _, sp := range spaces {
		if err := sp.Validate(); err != nil {
			return nil, fmt.Errorf("layout: %w", err)
		}
	}
	return spaces, nil
}

func buildGroup(gc GroupConfig, byID map[string]*model.ParkingSpace) (model.ParkingSpace, error) {
	grp := model.ParkingSpace{
		ID:           gc.ID,
		Section:      gc.Section,
		IsGroup:      true,
		MemberSpaces: append([]string(nil), gc.Members...),
	}
	first := true
	for _, m := range gc.Members {
		member, ok := byID[m]
		if !ok {
			return model.ParkingSpace{}, fmt.Errorf("layout: group %s references unknown space %s", gc.ID, m)
		}
		if grp.Section == "" {
			grp.Section = member.Section
		}
		if first || member.DistanceToEntrance < grp.DistanceToEntrance {
			grp.DistanceToEntrance = member.DistanceToEntrance
		}
		if first {
			grp.Position = member.Position
			first = false
		}
	}
	return grp, nil
}

// assignSections labels unlabeled spaces by lot quadrant: A/B for the
// west/east halves, 1/2 for the north/south halves.
func assignSections(spaces []model.ParkingSpace) {
	minX, maxX, minY, maxY := 0, 0, 0, 0
	started := false
	for _, sp := range spaces {
		if sp.Section != "" {
			continue
		}
		cx, cy := center(sp.Position)
		if !started {
			minX, maxX, minY, maxY = cx, cx, cy, cy
			started = true
			continue
		}
		if cx < minX {
			minX = cx
		}
		if cx > maxX {
			maxX = cx
		}
		if cy < minY {
			minY = cy
		}
		if cy > maxY {
			maxY = cy
		}
	}
	if !started {
		return
	}
	midX := (minX + maxX) / 2
	midY := (minY + maxY) / 2
	for i := range spaces {
		if spaces[i].Section != "" {
			continue
		}
		cx, cy := center(spaces[i].Position)
		sec := "A"
		if cx > midX {
			sec = "B"
		}
		if cy <= midY {
			sec += "1"
		} else {
			sec += "2"
		}
		spaces[i].Section = sec
	}
}

func center(p model.Position) (int, int) {
	return p.X + p.Width/2, p.Y + p.Height/2
}

// NewFromLayout builds the layout and wraps it in a memory store.
func NewFromLayout(c LayoutConfig) (*MemoryStore, error) {
	spaces, err := c.Build()
	if err != nil {
		return nil, err
	}
	return NewMemoryStore(spaces)
}
