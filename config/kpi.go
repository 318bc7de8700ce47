package config

// KPIConfig enables daily per-section utilization aggregation.
type KPIConfig struct {
	Enabled bool `json:"enabled"`
	// Path is the SQLite file holding the aggregates. Empty keeps them in
	// memory for the lifetime of the process.
	Path string `json:"path"`
}
