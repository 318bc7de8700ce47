package allocation

import "fmt"

// Config defines the engine scoring profile.
type Config struct {
	SizeWeight     float64 `json:"size_weight"`
	SectionWeight  float64 `json:"section_weight"`
	LocationWeight float64 `json:"location_weight"`
	// LoadBalancingWeight blends proximity against section load inside the
	// location factor, 0 to 1.
	LoadBalancingWeight float64 `json:"load_balancing_weight"`
	// MaxHistory caps the in-memory decision history of the manager.
	MaxHistory int `json:"max_history"`
}

// SetDefaults applies the default profile when no weight is configured.
// LoadBalancingWeight keeps an explicit zero once any weight is set, since
// zero is the pure-proximity profile.
func (c *Config) SetDefaults() {
	if c.SizeWeight == 0 && c.SectionWeight == 0 && c.LocationWeight == 0 {
		c.SizeWeight = 0.40
		c.SectionWeight = 0.25
		c.LocationWeight = 0.35
		if c.LoadBalancingWeight == 0 {
			c.LoadBalancingWeight = 0.3
		}
	}
	if c.MaxHistory == 0 {
		c.MaxHistory = 1000
	}
}

// Validate rejects profiles the engine cannot score with.
func (c Config) Validate() error {
	if c.SizeWeight < 0 || c.SectionWeight < 0 || c.LocationWeight < 0 {
		return fmt.Errorf("allocation: weights must not be negative")
	}
	if c.SizeWeight+c.SectionWeight+c.LocationWeight <= 0 {
		return fmt.Errorf("allocation: at least one weight must be positive")
	}
	if c.LoadBalancingWeight < 0 || c.LoadBalancingWeight > 1 {
		return fmt.Errorf("allocation: load_balancing_weight must be within [0,1]")
	}
	return nil
}
