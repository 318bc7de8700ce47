package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/openlot/parkd/core/allocation"
	"github.com/openlot/parkd/core/lot"
	coremetrics "github.com/openlot/parkd/core/metrics"
	"github.com/openlot/parkd/core/model"
	"github.com/openlot/parkd/core/simulation"
	"github.com/openlot/parkd/infra/logger"
	inframetrics "github.com/openlot/parkd/infra/metrics"
	"github.com/openlot/parkd/infra/mqtt"
	"github.com/openlot/parkd/pkg/export"
)

func main() {
	cfg := parseFlags()
	if err := (&cfg).Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	if !cfg.Verbose {
		log.SetOutput(io.Discard)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	report, err := simulate(ctx, cfg)
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "simulation failed: %v\n", err)
		os.Exit(1)
	}
	if err := emit(report, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "write report: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() Config {
	var cfg Config
	flag.IntVar(&cfg.Rows, "rows", 6, "lot grid rows")
	flag.IntVar(&cfg.Cols, "cols", 12, "lot grid cols")
	flag.IntVar(&cfg.Ticks, "ticks", 1000, "simulation ticks")
	flag.Float64Var(&cfg.ArrivalRate, "arrival-rate", 0.10, "arrival probability per tick")
	flag.Float64Var(&cfg.DepartureRate, "departure-rate", 0.05, "departure probability per tick")
	flag.Float64Var(&cfg.NoPreferenceRatio, "no-preference", 0.80, "share of vehicles without a section preference")
	flag.StringVar(&cfg.SizeWeights, "size-weights", "", "vehicle size draw weights, e.g. 0.6,0.3,0.1")
	flag.Float64Var(&cfg.LoadBalancingWeight, "lb-weight", 0.3, "section load share of the location factor")
	flag.Int64Var(&cfg.Seed, "seed", 42, "rng seed")
	flag.BoolVar(&cfg.JSONOut, "json", false, "print the full report as JSON")
	flag.StringVar(&cfg.CSVPath, "csv", "", "write per-tick occupancy samples to this CSV file")
	flag.BoolVar(&cfg.Verbose, "verbose", false, "enable verbose logging")
	flag.StringVar(&cfg.InfluxURL, "influx-url", "", "InfluxDB URL")
	flag.StringVar(&cfg.InfluxToken, "influx-token", "", "InfluxDB token")
	flag.StringVar(&cfg.InfluxOrg, "influx-org", "", "InfluxDB organization")
	flag.StringVar(&cfg.InfluxBucket, "influx-bucket", "", "InfluxDB bucket")
	flag.Parse()
	return cfg
}

func simulate(ctx context.Context, cfg Config) (simulation.Report, error) {
	layout := lot.LayoutConfig{Grid: &lot.GridConfig{Rows: cfg.Rows, Cols: cfg.Cols}}
	layout.SetDefaults()
	store, err := lot.NewFromLayout(layout)
	if err != nil {
		return simulation.Report{}, fmt.Errorf("lot store: %w", err)
	}

	var sink coremetrics.Sink = coremetrics.NopSink{}
	if cfg.InfluxURL != "" {
		sink = inframetrics.NewInfluxSinkWithFallback(cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket)
	}

	var logg logger.Logger = logger.NopLogger{}
	if cfg.Verbose {
		logg = logger.New("simulator")
	}

	// Pin the full weight profile so an explicit -lb-weight 0 survives
	// the unconfigured-profile defaulting.
	engineCfg := allocation.Config{
		SizeWeight:          0.40,
		SectionWeight:       0.25,
		LocationWeight:      0.35,
		LoadBalancingWeight: cfg.LoadBalancingWeight,
	}
	mgr, err := allocation.NewManager(store, allocation.NewEngine(engineCfg),
		mqtt.NopNotifier{}, sink, nil, logg, 0)
	if err != nil {
		return simulation.Report{}, fmt.Errorf("allocation manager: %w", err)
	}

	weights, err := parseSizeWeights(cfg.SizeWeights)
	if err != nil {
		return simulation.Report{}, err
	}
	runner, err := simulation.NewRunner(simulation.Config{
		Ticks:             cfg.Ticks,
		ArrivalRate:       cfg.ArrivalRate,
		DepartureRate:     cfg.DepartureRate,
		NoPreferenceRatio: cfg.NoPreferenceRatio,
		SizeWeights:       weights,
		Seed:              cfg.Seed,
	}, mgr, store, logg)
	if err != nil {
		return simulation.Report{}, err
	}
	return runner.Run(ctx)
}

func emit(rep simulation.Report, cfg Config) error {
	if cfg.CSVPath != "" {
		if err := writeCSV(rep, cfg.CSVPath); err != nil {
			return err
		}
	}
	if cfg.JSONOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
	fmt.Printf("ticks:      %d\n", rep.Ticks)
	fmt.Printf("arrivals:   %d (allocated %d, no_capacity %d, no_match %d)\n",
		rep.Arrivals, rep.Allocated, rep.NoCapacity, rep.NoMatch)
	fmt.Printf("departures: %d\n", rep.Departures)
	fmt.Printf("occupancy:  mean %.3f stddev %.3f p50 %.3f p90 %.3f max %.3f\n",
		rep.Occupancy.Mean, rep.Occupancy.StdDev, rep.Occupancy.P50, rep.Occupancy.P90, rep.Occupancy.Max)
	fmt.Printf("scores:     mean %.3f stddev %.3f p50 %.3f min %.3f\n",
		rep.Scores.Mean, rep.Scores.StdDev, rep.Scores.P50, rep.Scores.Min)
	fmt.Printf("final:      %d/%d occupied (%.1f%%), %d active vehicles\n",
		rep.FinalStats.OccupiedSpaces, rep.FinalStats.TotalSpaces,
		100*rep.FinalStats.OccupancyRate, rep.FinalStats.ActiveVehicles)
	return nil
}

func writeCSV(rep simulation.Report, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	stats := make([]model.LotStats, 0, len(rep.Samples))
	for _, s := range rep.Samples {
		stats = append(stats, s.Stats)
	}
	if err := export.WriteCSV(f, stats); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
