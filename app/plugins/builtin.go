package plugins

import (
	"github.com/openlot/parkd/config"
	"github.com/openlot/parkd/core/allocation/logging"
)

func init() {
	// A size limit on the jsonl backend switches it to the rotating store.
	RegisterLogStore("jsonl", func(cfg config.LoggingConfig) (logging.LogStore, error) {
		if cfg.MaxSizeMB > 0 {
			return logging.NewRotatingJSONLStore(cfg.Path, cfg.MaxSizeMB, cfg.MaxBackups, cfg.MaxAgeDays, cfg.Compress)
		}
		return logging.NewJSONLStore(cfg.Path)
	})
	RegisterLogStore("sqlite", func(cfg config.LoggingConfig) (logging.LogStore, error) {
		return logging.NewSQLiteStore(cfg.Path)
	})
}
