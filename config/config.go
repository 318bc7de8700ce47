package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/openlot/parkd/core/allocation"
	"github.com/openlot/parkd/core/lot"
	"github.com/openlot/parkd/core/metrics"
	"github.com/openlot/parkd/core/simulation"
	"github.com/openlot/parkd/infra/mqtt"
)

type Config struct {
	Lot        lot.LayoutConfig  `json:"lot"`
	Engine     allocation.Config `json:"engine"`
	MQTT       mqtt.Config       `json:"mqtt"`
	Metrics    metrics.Config    `json:"metrics"`
	Logging    LoggingConfig     `json:"logging"`
	KPI        KPIConfig         `json:"kpi"`
	API        APIConfig         `json:"api"`
	Sentry     SentryConfig      `json:"sentry"`
	Simulation simulation.Config `json:"simulation"`
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("PARKD_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "parkd_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Lot.SetDefaults()
	cfg.Engine.SetDefaults()
	cfg.Logging.SetDefaults()
	cfg.API.SetDefaults()
	cfg.Simulation.SetDefaults()
	if err := cfg.Lot.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Engine.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Logging.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Simulation.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
