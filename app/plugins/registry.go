package plugins

import (
	"fmt"

	"github.com/openlot/parkd/config"
	"github.com/openlot/parkd/core/allocation/logging"
)

// LogStoreFactory builds an allocation log store from the logging section.
type LogStoreFactory func(cfg config.LoggingConfig) (logging.LogStore, error)

// LogStores maps backend names to factories. Builtin backends register
// themselves in this package; embedding builds may add their own before
// the service starts.
var LogStores = map[string]LogStoreFactory{}

// RegisterLogStore adds a log store factory identified by backend name.
func RegisterLogStore(name string, f LogStoreFactory) { LogStores[name] = f }

// NewLogStore builds the store selected by cfg.Backend.
func NewLogStore(cfg config.LoggingConfig) (logging.LogStore, error) {
	f, ok := LogStores[cfg.Backend]
	if !ok {
		return nil, fmt.Errorf("unknown log backend %s", cfg.Backend)
	}
	return f(cfg)
}
