package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/openlot/parkd/api"
	"github.com/openlot/parkd/app/plugins"
	"github.com/openlot/parkd/config"
	"github.com/openlot/parkd/core/allocation"
	"github.com/openlot/parkd/core/allocation/logging"
	"github.com/openlot/parkd/core/lot"
	coremetrics "github.com/openlot/parkd/core/metrics"
	usage "github.com/openlot/parkd/core/metrics/usage"
	coremon "github.com/openlot/parkd/core/monitoring"
	coremqtt "github.com/openlot/parkd/core/mqtt"
	"github.com/openlot/parkd/infra/kpi"
	"github.com/openlot/parkd/infra/logger"
	inframetrics "github.com/openlot/parkd/infra/metrics"
	"github.com/openlot/parkd/infra/monitoring"
	"github.com/openlot/parkd/infra/mqtt"
	"github.com/openlot/parkd/internal/eventbus"
	"github.com/openlot/parkd/jobs/utilization"
)

// Service wires the lot store, allocation manager, sensor feed and
// operator API together.
type Service struct {
	Manager *allocation.Manager
	Store   lot.Store

	cfg      *config.Config
	bus      eventbus.EventBus
	sink     coremetrics.Sink
	logs     logging.LogStore
	kpiStore usage.Store
	mqttCli  *mqtt.PahoClient
	apiSrv   *api.Server
	log      logger.Logger
}

// New creates a Service from the configuration.
func New(cfg *config.Config) (*Service, error) {
	logg := logger.New("service")

	monitor, err := monitoring.NewSentryMonitor(cfg.Sentry)
	if err != nil {
		return nil, fmt.Errorf("sentry monitor: %w", err)
	}
	coremon.Init(monitor)

	store, err := lot.NewFromLayout(cfg.Lot)
	if err != nil {
		return nil, fmt.Errorf("lot store: %w", err)
	}

	sink, err := coremetrics.NewSink(cfg.Metrics.Sinks)
	if err != nil {
		return nil, fmt.Errorf("metrics sink: %w", err)
	}

	logs, err := plugins.NewLogStore(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("log store: %w", err)
	}

	var kpiStore usage.Store
	if cfg.KPI.Enabled {
		if cfg.KPI.Path != "" {
			s, kerr := kpi.NewSQLiteStore(cfg.KPI.Path)
			if kerr != nil {
				return nil, fmt.Errorf("kpi store: %w", kerr)
			}
			kpiStore = s
		} else {
			// The in-memory aggregates vanish on restart; replaying the
			// allocation log rebuilds them. The sqlite store is durable
			// and must not be replayed into.
			mem := usage.NewMemoryStore()
			if recs, qerr := logs.Query(context.Background(), logging.LogQuery{}); qerr != nil {
				logg.Warnf("kpi backfill query failed: %v", qerr)
			} else if berr := utilization.Backfill(mem, recs); berr != nil {
				logg.Warnf("kpi backfill failed: %v", berr)
			}
			kpiStore = mem
		}
		sink = coremetrics.NewMultiSink(sink, inframetrics.NewUsageSink(kpiStore, nil))
	}

	bus := eventbus.New(16)

	var notifier coremqtt.Notifier = mqtt.NopNotifier{}
	var cli *mqtt.PahoClient
	if cfg.MQTT.Enabled {
		cli, err = mqtt.NewPahoClient(cfg.MQTT)
		if err != nil {
			return nil, fmt.Errorf("mqtt client: %w", err)
		}
		notifier = cli
		feed, ferr := mqtt.NewSpaceStateFeed(store, bus)
		if ferr != nil {
			return nil, fmt.Errorf("space state feed: %w", ferr)
		}
		if aerr := feed.Attach(cli); aerr != nil {
			return nil, fmt.Errorf("space state feed: %w", aerr)
		}
	}

	mgr, err := allocation.NewManager(store, allocation.NewEngine(cfg.Engine), notifier, sink, bus, logg, 0)
	if err != nil {
		return nil, fmt.Errorf("allocation manager: %w", err)
	}
	mgr.SetLogStore(logs)

	handler, err := api.NewHandler(mgr, store, logs, cfg.API.AuthToken, logger.New("api"))
	if err != nil {
		return nil, fmt.Errorf("api handler: %w", err)
	}
	if kpiStore != nil {
		handler.SetKPIStore(kpiStore)
	}
	apiSrv := api.NewServer(cfg.API.Addr, handler.Routes(), logger.New("api"))

	return &Service{
		Manager:  mgr,
		Store:    store,
		cfg:      cfg,
		bus:      bus,
		sink:     sink,
		logs:     logs,
		kpiStore: kpiStore,
		mqttCli:  cli,
		apiSrv:   apiSrv,
		log:      logg,
	}, nil
}

// Run starts the service components and blocks until the context is
// cancelled.
func (s *Service) Run(ctx context.Context) error {
	inframetrics.StartEventCollector(ctx, s.bus, s.sink)
	if addr := s.cfg.Metrics.PrometheusAddr; addr != "" {
		go func() {
			if err := inframetrics.StartPromServer(ctx, addr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	go func() {
		if err := s.apiSrv.Start(); err != nil {
			s.log.Errorf("api server: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.apiSrv.Shutdown(shutdownCtx)
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	if s.mqttCli != nil {
		s.mqttCli.Disconnect()
	}
	if c, ok := s.kpiStore.(io.Closer); ok {
		_ = c.Close()
	}
	err := s.Manager.Close()
	coremon.Flush(2 * time.Second)
	return err
}
