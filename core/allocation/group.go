package allocation

import (
	"sort"

	"github.com/openlot/parkd/core/model"
)

// Group scoring blends how well the member count matches the vehicle size
// with proximity to the entrance. The weights are fixed; group demand is
// too rare to justify a tunable profile.
const (
	groupSizeWeight     = 0.7
	groupDistanceWeight = 0.3
)

// groupScore follows the historical formula: a relative size mismatch
// penalty and the same proximity curve as single spaces.
func groupScore(memberCount int, size model.VehicleSize, distance float64) float64 {
	m := float64(memberCount)
	v := float64(size)
	max := m
	if v > max {
		max = v
	}
	diff := m - v
	if diff < 0 {
		diff = -diff
	}
	sizeMatch := 1 - diff/max
	return groupSizeWeight*sizeMatch + groupDistanceWeight*proximity(distance)
}

// AllocateGroup picks a free group of spaces for an oversized vehicle.
// Groups whose members are partially taken are skipped so the commit
// cannot collide.
// Candidates are visited in id order and only a strictly better score
// displaces the current best, so ties keep the earliest id.
func (e Engine) AllocateGroup(spaces map[string]model.ParkingSpace, req model.GroupRequest) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, err
	}
	if err := validateSnapshot(spaces); err != nil {
		return Result{}, err
	}

	ids := make([]string, 0, len(spaces))
	for id, sp := range spaces {
		if sp.IsGroup {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)

	res := Result{VehicleID: req.VehicleID, Reason: ReasonNoCapacity}
	bestScore := 0.0
	for _, id := range ids {
		grp := spaces[id]
		if grp.Occupied || !membersFree(grp, spaces) {
			continue
		}
		// A free group always scores above zero, so the threshold never
		// rejects a real candidate; it only keeps the zero value out.
		if score := groupScore(grp.MemberCount(), req.Size, grp.DistanceToEntrance); score > bestScore {
			bestScore = score
			res.SpaceID = grp.ID
			res.Section = grp.Section
			res.MemberCount = grp.MemberCount()
		}
	}
	if res.SpaceID == "" {
		return res, nil
	}
	res.Score = bestScore
	res.Reason = ReasonAllocated
	return res, nil
}

func membersFree(grp model.ParkingSpace, spaces map[string]model.ParkingSpace) bool {
	for _, m := range grp.MemberSpaces {
		member, ok := spaces[m]
		if !ok || member.Occupied {
			return false
		}
	}
	return true
}
