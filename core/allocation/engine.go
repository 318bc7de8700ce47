package allocation

import (
	"fmt"

	"github.com/openlot/parkd/core/model"
)

// Engine picks a parking space for a vehicle using a weighted score over
// size fit, section preference and a location blend of entrance proximity
// and per-section load balancing. The engine never mutates the snapshot
// it scores, so a single value can serve concurrent callers; committing
// the decision is the caller's job.
type Engine struct {
	SizeWeight     float64
	SectionWeight  float64
	LocationWeight float64
	// LoadBalancingWeight blends the location factor: 0 ranks purely by
	// proximity to the entrance, 1 purely by section free ratio.
	LoadBalancingWeight float64
}

// NewEngine returns an engine with the given weights, falling back to the
// default profile for an unconfigured section.
func NewEngine(cfg Config) Engine {
	cfg.SetDefaults()
	return Engine{
		SizeWeight:          cfg.SizeWeight,
		SectionWeight:       cfg.SectionWeight,
		LocationWeight:      cfg.LocationWeight,
		LoadBalancingWeight: cfg.LoadBalancingWeight,
	}
}

type candidate struct {
	sp    model.ParkingSpace
	score float64
}

// scoreNonPreferred is the section factor for a free space outside the
// requested section. Such spaces stay eligible, only ranked lower.
const scoreNonPreferred = 0.4

// sizeFit rewards exact capacity matches and discounts each step of
// oversize, keeping large-but-usable spaces eligible.
func sizeFit(capacity, size model.VehicleSize) float64 {
	fit := 1 - 0.25*float64(capacity-size)
	if fit < 0 {
		return 0
	}
	return fit
}

// sectionScore is neutral without a preference and penalizes, without
// excluding, spaces outside the preferred section.
func sectionScore(section, preferred string) float64 {
	if preferred == "" || section == preferred {
		return 1
	}
	return scoreNonPreferred
}

// proximity maps distance to entrance into (0,1], closer is higher.
func proximity(distance float64) float64 {
	return 1 / (1 + distance/1000)
}

// sectionFreeRatios computes the free ratio of each section over the
// physical spaces of the snapshot.
func sectionFreeRatios(spaces map[string]model.ParkingSpace) map[string]float64 {
	totals := map[string]int{}
	free := map[string]int{}
	for _, sp := range spaces {
		if sp.IsGroup {
			continue
		}
		totals[sp.Section]++
		if !sp.Occupied {
			free[sp.Section]++
		}
	}
	ratios := make(map[string]float64, len(totals))
	for sec, total := range totals {
		ratios[sec] = float64(free[sec]) / float64(total)
	}
	return ratios
}

func (e Engine) locationScore(sp model.ParkingSpace, freeRatios map[string]float64) float64 {
	w := e.LoadBalancingWeight
	balance, ok := freeRatios[sp.Section]
	if !ok {
		balance = 1
	}
	return (1-w)*proximity(sp.DistanceToEntrance) + w*balance
}

// spaceScore computes the composite score for an eligible space,
// normalized by the weight sum and clamped to [0,1].
func (e Engine) spaceScore(sp model.ParkingSpace, req model.AllocationRequest, freeRatios map[string]float64) float64 {
	sum := e.SizeWeight + e.SectionWeight + e.LocationWeight
	if sum <= 0 {
		return 0
	}
	score := e.SizeWeight*sizeFit(sp.Capacity, req.Size) +
		e.SectionWeight*sectionScore(sp.Section, req.PreferredSection) +
		e.LocationWeight*e.locationScore(sp, freeRatios)
	score /= sum
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

func validateSnapshot(spaces map[string]model.ParkingSpace) error {
	for id, sp := range spaces {
		if id != sp.ID {
			return fmt.Errorf("snapshot key %s does not match space id %s", id, sp.ID)
		}
		if err := sp.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Allocate picks the best free space for the request. A lot with no free
// space and a lot where nothing fits are reported through Result.Reason,
// not as errors; errors mean the request or the snapshot is malformed.
func (e Engine) Allocate(spaces map[string]model.ParkingSpace, req model.AllocationRequest) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, err
	}
	if err := validateSnapshot(spaces); err != nil {
		return Result{}, err
	}

	res := Result{VehicleID: req.VehicleID, Reason: ReasonNoCapacity}
	freeRatios := sectionFreeRatios(spaces)
	var best candidate
	found := false
	anyFree := false
	for _, sp := range spaces {
		if sp.IsGroup || sp.Occupied {
			continue
		}
		anyFree = true
		if sp.Capacity < req.Size {
			continue
		}
		c := candidate{sp: sp, score: e.spaceScore(sp, req, freeRatios)}
		if !found || c.beats(best) {
			best = c
			found = true
		}
	}
	if !found {
		if anyFree {
			res.Reason = ReasonNoMatch
		}
		return res, nil
	}
	res.SpaceID = best.sp.ID
	res.Score = best.score
	res.Reason = ReasonAllocated
	res.Section = best.sp.Section
	return res, nil
}

// beats orders candidates by score, then by distance to entrance, then by
// id, so identical snapshots always produce the same winner.
func (c candidate) beats(other candidate) bool {
	if c.score != other.score {
		return c.score > other.score
	}
	if c.sp.DistanceToEntrance != other.sp.DistanceToEntrance {
		return c.sp.DistanceToEntrance < other.sp.DistanceToEntrance
	}
	return c.sp.ID < other.sp.ID
}

// ScoreSpaces returns the composite score of every eligible free space
// for the request, keyed by space id. Useful for explaining decisions.
func (e Engine) ScoreSpaces(spaces map[string]model.ParkingSpace, req model.AllocationRequest) (map[string]float64, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := validateSnapshot(spaces); err != nil {
		return nil, err
	}
	freeRatios := sectionFreeRatios(spaces)
	scores := make(map[string]float64)
	for _, sp := range spaces {
		if sp.IsGroup || sp.Occupied || sp.Capacity < req.Size {
			continue
		}
		scores[sp.ID] = e.spaceScore(sp, req, freeRatios)
	}
	return scores, nil
}
