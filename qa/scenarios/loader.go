package scenarios

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/openlot/parkd/core/model"
)

// SpaceDef describes one physical space of the scenario lot.
type SpaceDef struct {
	ID         string  `yaml:"id"`
	Section    string  `yaml:"section"`
	Distance   float64 `yaml:"distance"`
	Capacity   int     `yaml:"capacity"`
	OccupiedBy string  `yaml:"occupied_by,omitempty"`
}

// ToModel converts the definition. A zero capacity means the space takes
// any vehicle.
func (s SpaceDef) ToModel() model.ParkingSpace {
	capacity := model.VehicleSize(s.Capacity)
	if s.Capacity == 0 {
		capacity = model.SizeLarge
	}
	return model.ParkingSpace{
		ID:                 s.ID,
		Section:            s.Section,
		DistanceToEntrance: s.Distance,
		Capacity:           capacity,
		Occupied:           s.OccupiedBy != "",
		VehicleID:          s.OccupiedBy,
	}
}

// GroupDef describes a group record aggregating member spaces.
type GroupDef struct {
	ID       string   `yaml:"id"`
	Section  string   `yaml:"section"`
	Distance float64  `yaml:"distance"`
	Members  []string `yaml:"members"`
}

func (g GroupDef) ToModel() model.ParkingSpace {
	return model.ParkingSpace{
		ID:                 g.ID,
		Section:            g.Section,
		DistanceToEntrance: g.Distance,
		IsGroup:            true,
		MemberSpaces:       g.Members,
	}
}

// RequestDef describes one allocation request played against the lot.
type RequestDef struct {
	VehicleID        string `yaml:"vehicle_id"`
	Size             int    `yaml:"size"`
	PreferredSection string `yaml:"preferred_section,omitempty"`
	Group            bool   `yaml:"group,omitempty"`
}

// Expected lists the outcomes the scenario must produce.
type Expected struct {
	Allocated   int               `yaml:"allocated"`
	Assignments map[string]string `yaml:"assignments,omitempty"`
}

// Scenario drives the allocation manager through a scripted lot: requests
// are played in order, with optional sensor seizures and releases applied
// before the request whose index they name.
type Scenario struct {
	Name                string         `yaml:"name"`
	Description         string         `yaml:"description,omitempty"`
	LoadBalancingWeight float64        `yaml:"load_balancing_weight"`
	Spaces              []SpaceDef     `yaml:"spaces"`
	Groups              []GroupDef     `yaml:"groups,omitempty"`
	Requests            []RequestDef   `yaml:"requests"`
	FailPublish         []string       `yaml:"fail_publish,omitempty"`
	OccupyAfter         map[string]int `yaml:"occupy_after,omitempty"`
	ReleaseAfter        map[string]int `yaml:"release_after,omitempty"`
	Expected            Expected       `yaml:"expected"`
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	return &sc, nil
}
