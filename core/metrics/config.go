package metrics

import "github.com/openlot/parkd/core/factory"

// Config defines settings for metrics sinks.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks"`
	// PrometheusAddr exposes /metrics when non-empty, e.g. ":2112".
	PrometheusAddr string `json:"prometheus_addr"`
}
