package allocation

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/openlot/parkd/core/model"
)

// ErrInfeasible indicates the assignment LP had no solution placing every
// vehicle of a strict batch.
var ErrInfeasible = errors.New("assignment infeasible")

// BatchAllocator assigns several vehicles at once by solving a linear
// program that maximizes the summed engine scores, one space per vehicle
// and one vehicle per space. The assignment polytope has integral
// vertices, so the simplex solution rounds cleanly.
type BatchAllocator struct {
	Engine
}

// NewBatchAllocator returns a batch allocator sharing the engine weights.
func NewBatchAllocator(cfg Config) BatchAllocator {
	return BatchAllocator{Engine: NewEngine(cfg)}
}

// solveAssignment maximizes the total score subject to the row and column
// constraints of the assignment problem. eligible carries the per-pair
// upper bound (1 eligible, 0 not).
func solveAssignment(scores, eligible []float64, nReq, nSpace int) ([]float64, error) {
	nVar := nReq * nSpace
	c := make([]float64, nVar)
	for i, s := range scores {
		c[i] = -s
	}

	rows := nVar + nReq + nSpace
	g := mat.NewDense(rows, nVar, nil)
	h := make([]float64, rows)
	for i := 0; i < nVar; i++ {
		g.Set(i, i, 1)
		h[i] = eligible[i]
	}
	for i := 0; i < nReq; i++ {
		for j := 0; j < nSpace; j++ {
			g.Set(nVar+i, i*nSpace+j, 1)
		}
		h[nVar+i] = 1
	}
	for j := 0; j < nSpace; j++ {
		for i := 0; i < nReq; i++ {
			g.Set(nVar+nReq+j, i*nSpace+j, 1)
		}
		h[nVar+nReq+j] = 1
	}

	cStd, aStd, bStd := lp.Convert(c, g, h, nil, nil)
	_, sol, err := lp.Simplex(cStd, aStd, bStd, 1e-7, nil)
	return sol, err
}

// lpSolve points to the assignment solver. Tests override it to simulate
// solver failures.
var lpSolve = solveAssignment

// AllocateBatch assigns up to one space to every request, maximizing the
// total score. Vehicles that cannot be placed get a sentinel result; the
// call fails only on malformed input or a solver breakdown.
func (b BatchAllocator) AllocateBatch(spaces map[string]model.ParkingSpace, reqs []model.AllocationRequest) (map[string]Result, error) {
	results := make(map[string]Result, len(reqs))
	if len(reqs) == 0 {
		return results, nil
	}
	for _, req := range reqs {
		if err := req.Validate(); err != nil {
			return nil, err
		}
		if _, dup := results[req.VehicleID]; dup {
			return nil, fmt.Errorf("duplicate request for vehicle %s", req.VehicleID)
		}
		results[req.VehicleID] = Result{VehicleID: req.VehicleID, Reason: ReasonNoCapacity}
	}
	if err := validateSnapshot(spaces); err != nil {
		return nil, err
	}

	free := make([]model.ParkingSpace, 0, len(spaces))
	for _, sp := range spaces {
		if !sp.IsGroup && !sp.Occupied {
			free = append(free, sp)
		}
	}
	if len(free) == 0 {
		return results, nil
	}
	sort.Slice(free, func(i, j int) bool { return free[i].ID < free[j].ID })

	freeRatios := sectionFreeRatios(spaces)
	nReq, nSpace := len(reqs), len(free)
	scores := make([]float64, nReq*nSpace)
	eligible := make([]float64, nReq*nSpace)
	hasMatch := make([]bool, nReq)
	for i, req := range reqs {
		for j, sp := range free {
			if sp.Capacity < req.Size {
				continue
			}
			idx := i*nSpace + j
			eligible[idx] = 1
			scores[idx] = b.spaceScore(sp, req, freeRatios)
			hasMatch[i] = true
		}
	}

	sol, err := lpSolve(scores, eligible, nReq, nSpace)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInfeasible, err)
	}

	for i, req := range reqs {
		res := results[req.VehicleID]
		// Vehicles nothing fit report a match failure; vehicles that only
		// lost eligible spaces to peers report exhausted capacity.
		if !hasMatch[i] {
			res.Reason = ReasonNoMatch
		}
		for j, sp := range free {
			if sol[i*nSpace+j] > 0.5 {
				res.SpaceID = sp.ID
				res.Score = scores[i*nSpace+j]
				res.Reason = ReasonAllocated
				res.Section = sp.Section
				break
			}
		}
		results[req.VehicleID] = res
	}
	return results, nil
}

// AllocateBatchStrict behaves like AllocateBatch but fails with
// ErrInfeasible when any vehicle stays unplaced.
func (b BatchAllocator) AllocateBatchStrict(spaces map[string]model.ParkingSpace, reqs []model.AllocationRequest) (map[string]Result, error) {
	results, err := b.AllocateBatch(spaces, reqs)
	if err != nil {
		return nil, err
	}
	for _, res := range results {
		if !res.Allocated() {
			return results, fmt.Errorf("%w: vehicle %s has no space", ErrInfeasible, res.VehicleID)
		}
	}
	return results, nil
}
