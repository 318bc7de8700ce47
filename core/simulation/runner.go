package simulation

import (
	"context"
	"fmt"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/openlot/parkd/core/allocation"
	"github.com/openlot/parkd/core/logger"
	"github.com/openlot/parkd/core/lot"
	"github.com/openlot/parkd/core/model"
)

// Sample is one per-tick occupancy observation.
type Sample struct {
	Tick  int            `json:"tick"`
	Stats model.LotStats `json:"stats"`
}

// Distribution summarizes a sample set.
type Distribution struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	P50    float64 `json:"p50"`
	P90    float64 `json:"p90"`
	P99    float64 `json:"p99"`
}

func newDistribution(samples []float64) Distribution {
	if len(samples) == 0 {
		return Distribution{}
	}
	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)
	d := Distribution{
		Count: len(sorted),
		Mean:  stat.Mean(sorted, nil),
		Min:   sorted[0],
		Max:   sorted[len(sorted)-1],
		P50:   stat.Quantile(0.5, stat.Empirical, sorted, nil),
		P90:   stat.Quantile(0.9, stat.Empirical, sorted, nil),
		P99:   stat.Quantile(0.99, stat.Empirical, sorted, nil),
	}
	if len(sorted) > 1 {
		d.StdDev = stat.StdDev(sorted, nil)
	}
	return d
}

// Report aggregates one simulation run.
type Report struct {
	Ticks      int            `json:"ticks"`
	Arrivals   int            `json:"arrivals"`
	Allocated  int            `json:"allocated"`
	NoCapacity int            `json:"no_capacity"`
	NoMatch    int            `json:"no_match"`
	Departures int            `json:"departures"`
	Occupancy  Distribution   `json:"occupancy"`
	Scores     Distribution   `json:"scores"`
	FinalStats model.LotStats `json:"final_stats"`

	// Samples carries the raw per-tick observations for export; it is
	// omitted from the JSON report.
	Samples []Sample `json:"-"`
}

// Runner replays synthetic arrivals and departures against a manager.
// Runs with the same seed and lot produce identical traffic.
type Runner struct {
	cfg      Config
	mgr      *allocation.Manager
	store    lot.Store
	rng      *rand.Rand
	logger   logger.Logger
	sections []string
	parked   []string
	arrivals int
}

// NewRunner validates the configuration and prepares a runner. The section
// list for preference sampling is frozen from the store at construction.
func NewRunner(cfg Config, mgr *allocation.Manager, store lot.Store, log logger.Logger) (*Runner, error) {
	if mgr == nil || store == nil || log == nil {
		return nil, fmt.Errorf("simulation: nil parameter provided to NewRunner")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Runner{
		cfg:      cfg,
		mgr:      mgr,
		store:    store,
		rng:      rand.New(rand.NewSource(cfg.Seed)),
		logger:   log,
		sections: sectionNames(store.Snapshot()),
	}, nil
}

// Run executes the configured number of ticks and returns the report.
// Cancelling the context stops the run early; the partial report is still
// returned with the ticks completed so far.
func (r *Runner) Run(ctx context.Context) (Report, error) {
	rep := Report{}
	var occupancy, scores []float64

	for tick := 0; tick < r.cfg.Ticks; tick++ {
		if err := ctx.Err(); err != nil {
			rep.Ticks = tick
			r.finish(&rep, occupancy, scores)
			return rep, err
		}
		if r.rng.Float64() < r.cfg.ArrivalRate {
			rep.Arrivals++
			res, err := r.arrive(ctx)
			if err != nil {
				return rep, err
			}
			switch res.Reason {
			case allocation.ReasonAllocated:
				rep.Allocated++
				scores = append(scores, res.Score)
				r.parked = append(r.parked, res.VehicleID)
			case allocation.ReasonNoCapacity:
				rep.NoCapacity++
			case allocation.ReasonNoMatch:
				rep.NoMatch++
			}
		}
		if len(r.parked) > 0 && r.rng.Float64() < r.cfg.DepartureRate {
			if err := r.depart(ctx); err != nil {
				return rep, err
			}
			rep.Departures++
		}
		stats := r.store.Stats()
		occupancy = append(occupancy, stats.OccupancyRate)
		rep.Samples = append(rep.Samples, Sample{Tick: tick, Stats: stats})
	}

	rep.Ticks = r.cfg.Ticks
	r.finish(&rep, occupancy, scores)
	r.logger.Infof("simulation done: %d arrivals, %d allocated, %d departures", rep.Arrivals, rep.Allocated, rep.Departures)
	return rep, nil
}

func (r *Runner) finish(rep *Report, occupancy, scores []float64) {
	rep.Occupancy = newDistribution(occupancy)
	rep.Scores = newDistribution(scores)
	rep.FinalStats = r.store.Stats()
}

// arrive issues one allocation request with a random size and, for a
// minority of vehicles, a random section preference.
func (r *Runner) arrive(ctx context.Context) (allocation.Result, error) {
	r.arrivals++
	req := model.AllocationRequest{
		VehicleID: fmt.Sprintf("sim-%04d", r.arrivals),
		Size:      r.drawSize(),
	}
	if len(r.sections) > 0 && r.rng.Float64() >= r.cfg.NoPreferenceRatio {
		req.PreferredSection = r.sections[r.rng.Intn(len(r.sections))]
	}
	return r.mgr.Allocate(ctx, req)
}

// drawSize picks a vehicle size class, uniform unless weights are set.
func (r *Runner) drawSize() model.VehicleSize {
	if len(r.cfg.SizeWeights) == 0 {
		return model.VehicleSize(r.rng.Intn(int(model.SizeLarge)) + 1)
	}
	total := 0.0
	for _, w := range r.cfg.SizeWeights {
		total += w
	}
	draw := r.rng.Float64() * total
	for i, w := range r.cfg.SizeWeights {
		draw -= w
		if draw < 0 {
			return model.VehicleSize(i + 1)
		}
	}
	return model.SizeLarge
}

// depart releases one randomly chosen parked vehicle.
func (r *Runner) depart(ctx context.Context) error {
	i := r.rng.Intn(len(r.parked))
	vehicleID := r.parked[i]
	r.parked[i] = r.parked[len(r.parked)-1]
	r.parked = r.parked[:len(r.parked)-1]
	_, err := r.mgr.Release(ctx, vehicleID)
	return err
}

// sectionNames returns the distinct sections in deterministic order,
// group records excluded.
func sectionNames(spaces map[string]model.ParkingSpace) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, sp := range spaces {
		if sp.IsGroup || sp.Section == "" {
			continue
		}
		if _, ok := seen[sp.Section]; ok {
			continue
		}
		seen[sp.Section] = struct{}{}
		names = append(names, sp.Section)
	}
	sort.Strings(names)
	return names
}
