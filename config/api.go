package config

// APIConfig defines settings for the operator HTTP API.
type APIConfig struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `json:"addr"`
	// AuthToken protects mutating endpoints and the log query when set.
	AuthToken string `json:"auth_token"`
}

// SetDefaults applies the default listen address.
func (c *APIConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
}
