package simulation

import (
	"fmt"

	"github.com/openlot/parkd/core/model"
)

// Config drives the synthetic traffic generator. Rates are per-tick
// probabilities.
type Config struct {
	Enabled           bool    `json:"enabled"`
	Ticks             int     `json:"ticks"`
	ArrivalRate       float64 `json:"arrival_rate"`
	DepartureRate     float64 `json:"departure_rate"`
	NoPreferenceRatio float64 `json:"no_preference_ratio"`
	// SizeWeights skews the vehicle size draw: index 0 weighs size
	// class 1 (small) and so on. Empty means a uniform draw.
	SizeWeights []float64 `json:"size_weights,omitempty"`
	Seed        int64     `json:"seed"`
}

// SetDefaults applies the default traffic profile when no rate is
// configured. Explicit zeroes survive once either rate is set, so
// departure-free or arrival-free runs stay expressible.
func (c *Config) SetDefaults() {
	if c.Ticks <= 0 {
		c.Ticks = 1000
	}
	if c.ArrivalRate == 0 && c.DepartureRate == 0 {
		c.ArrivalRate = 0.10
		c.DepartureRate = 0.05
		if c.NoPreferenceRatio == 0 {
			c.NoPreferenceRatio = 0.80
		}
	}
	if c.Seed == 0 {
		c.Seed = 42
	}
}

// Validate checks the configuration ranges.
func (c Config) Validate() error {
	if c.Ticks <= 0 {
		return fmt.Errorf("ticks must be positive")
	}
	if c.ArrivalRate < 0 || c.ArrivalRate > 1 {
		return fmt.Errorf("arrival_rate must be within [0,1]")
	}
	if c.DepartureRate < 0 || c.DepartureRate > 1 {
		return fmt.Errorf("departure_rate must be within [0,1]")
	}
	if c.NoPreferenceRatio < 0 || c.NoPreferenceRatio > 1 {
		return fmt.Errorf("no_preference_ratio must be within [0,1]")
	}
	if len(c.SizeWeights) > 0 {
		if len(c.SizeWeights) != int(model.SizeLarge) {
			return fmt.Errorf("size_weights needs %d entries, got %d", model.SizeLarge, len(c.SizeWeights))
		}
		total := 0.0
		for i, w := range c.SizeWeights {
			if w < 0 {
				return fmt.Errorf("size_weights[%d] must not be negative", i)
			}
			total += w
		}
		if total == 0 {
			return fmt.Errorf("size_weights must not sum to zero")
		}
	}
	return nil
}
