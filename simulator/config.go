package main

import (
	"fmt"
	"strconv"
	"strings"
)

// Config holds parameters for the traffic simulator.
type Config struct {
	Rows                int
	Cols                int
	Ticks               int
	ArrivalRate         float64
	DepartureRate       float64
	NoPreferenceRatio   float64
	SizeWeights         string
	LoadBalancingWeight float64
	Seed                int64
	JSONOut             bool
	CSVPath             string
	Verbose             bool
	InfluxURL           string
	InfluxToken         string
	InfluxOrg           string
	InfluxBucket        string
}

// Validate rejects parameter combinations the runner cannot use. Rate
// ranges are checked by the simulation config itself.
func (c *Config) Validate() error {
	if c.Rows <= 0 || c.Cols <= 0 {
		return fmt.Errorf("rows and cols must be positive")
	}
	if _, err := parseSizeWeights(c.SizeWeights); err != nil {
		return err
	}
	return nil
}

// parseSizeWeights turns a comma list like "0.6,0.3,0.1" into runner
// weights. An empty string keeps the uniform draw.
func parseSizeWeights(s string) ([]float64, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	weights := make([]float64, 0, len(parts))
	for _, p := range parts {
		w, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid size weight %q: %w", p, err)
		}
		weights = append(weights, w)
	}
	return weights, nil
}
