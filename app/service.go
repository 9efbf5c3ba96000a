package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/kilianp07/solaris/api/farms"
	"github.com/kilianp07/solaris/app/plugins"
	"github.com/kilianp07/solaris/config"
	"github.com/kilianp07/solaris/core/driver"
	"github.com/kilianp07/solaris/core/factory"
	"github.com/kilianp07/solaris/core/farm"
	coremetrics "github.com/kilianp07/solaris/core/metrics"
	"github.com/kilianp07/solaris/core/metrics/yield"
	coremon "github.com/kilianp07/solaris/core/monitoring"
	"github.com/kilianp07/solaris/core/state"
	"github.com/kilianp07/solaris/infra/logger"
	"github.com/kilianp07/solaris/infra/metrics"
	"github.com/kilianp07/solaris/infra/monitoring"
	_ "github.com/kilianp07/solaris/infra/mqtt"
	"github.com/kilianp07/solaris/infra/storage"
	"github.com/kilianp07/solaris/internal/eventbus"
)

// Service wires a simulation run: farm, driver, stores, metrics and
// monitoring.
type Service struct {
	Farm   *farm.Farm
	Driver *driver.Driver
	Stores *storage.Stores

	cfg     *config.Config
	sink    coremetrics.MetricsSink
	bus     *eventbus.Bus
	monitor coremon.Monitor
	log     logger.Logger
	resume  bool

	stopCollector context.CancelFunc
	collectorDone <-chan struct{}
}

// New prepares a fresh run.
func New(cfg *config.Config) (*Service, error) {
	s, err := open(cfg)
	if err != nil {
		return nil, err
	}
	if err := s.setup(cfg.Farm, cfg.Simulation.Config); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// NewResume prepares the continuation of a run from its latest checkpoint.
// An empty runID selects the most recent run. The farm is rebuilt from the
// configuration stored in the checkpoint.
func NewResume(ctx context.Context, cfg *config.Config, runID string) (*Service, error) {
	s, err := open(cfg)
	if err != nil {
		return nil, err
	}
	snap, err := LatestSnapshot(ctx, s.Stores.Checkpoints, runID)
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	sim := cfg.Simulation.Config
	sim.RunID = snap.RunID
	if sim.Start.IsZero() || sim.Start.Before(snap.Config.Start) {
		sim.Start = snap.Config.Start
	}
	if err := s.setup(snap.Config, sim); err != nil {
		_ = s.Close()
		return nil, err
	}
	s.resume = true
	return s, nil
}

// LatestSnapshot loads the latest checkpoint of runID from store.
func LatestSnapshot(ctx context.Context, store state.CheckpointStore, runID string) (state.Snapshot, error) {
	cp, err := store.Latest(ctx, runID)
	if err != nil {
		return state.Snapshot{}, fmt.Errorf("latest checkpoint: %w", err)
	}
	return state.Load(cp.Data)
}

func open(cfg *config.Config) (*Service, error) {
	if err := logger.Configure(logger.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format}); err != nil {
		return nil, err
	}
	log := logger.New("service")

	mon, err := monitoring.NewSentryMonitor(cfg.Sentry, cfg.Farm.ID)
	if err != nil {
		return nil, fmt.Errorf("sentry: %w", err)
	}
	coremon.Init(mon)

	stores, err := storage.Open(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	sink, err := coremetrics.NewMetricsSink(sinkConfigs(cfg.Metrics, cfg.Simulation.Step))
	if err != nil {
		_ = stores.Close()
		return nil, fmt.Errorf("metrics sinks: %w", err)
	}

	s := &Service{
		Stores:  stores,
		cfg:     cfg,
		sink:    sink,
		bus:     eventbus.New(),
		monitor: mon,
		log:     log,
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.stopCollector = cancel
	s.collectorDone = metrics.StartEventCollector(ctx, s.bus, sink)
	return s, nil
}

// sinkConfigs passes the global emission factor and the simulation step to
// the yield sinks that do not set their own.
func sinkConfigs(cfg coremetrics.Config, step time.Duration) []factory.ModuleConfig {
	out := make([]factory.ModuleConfig, len(cfg.Sinks))
	for i, m := range cfg.Sinks {
		out[i] = m
		if m.Type != "yield" {
			continue
		}
		conf := make(map[string]any, len(m.Conf)+2)
		for k, v := range m.Conf {
			conf[k] = v
		}
		if _, ok := conf["emission_factor"]; !ok && cfg.EmissionFactor != 0 {
			conf["emission_factor"] = cfg.EmissionFactor
		}
		if _, ok := conf["step"]; !ok && step > 0 {
			conf["step"] = step
		}
		out[i].Conf = conf
	}
	return out
}

func (s *Service) setup(farmCfg farm.Config, sim driver.Config) error {
	provider, err := plugins.NewProvider(s.cfg.Baseline)
	if err != nil {
		return err
	}
	feed, err := plugins.NewFeed(s.cfg.Weather)
	if err != nil {
		return fmt.Errorf("weather: %w", err)
	}
	f, err := farm.New(farmCfg, provider, logger.New("farm"))
	if err != nil {
		return fmt.Errorf("farm: %w", err)
	}
	d, err := driver.New(sim, f, logger.New("driver"))
	if err != nil {
		return err
	}
	if err := d.SetPlan(s.cfg.Simulation.Maintenance); err != nil {
		return fmt.Errorf("maintenance plan: %w", err)
	}
	d.SetFeed(feed)
	d.SetSeries(s.Stores.Series)
	d.SetCheckpointStore(s.Stores.Checkpoints)
	d.SetMetricsSink(s.sink)
	d.SetEventBus(s.bus)
	s.Farm = f
	s.Driver = d
	return nil
}

// Handler returns the read-only farm API backed by the service stores.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	h := &farms.Handler{
		Series:         s.Stores.Series,
		Yield:          yieldStore(s.sink),
		EmissionFactor: s.cfg.Metrics.EmissionFactor,
		Token:          s.cfg.API.Token,
	}
	h.Mount(mux)
	return mux
}

// yieldStore returns the store of the first yield sink.
func yieldStore(sink coremetrics.MetricsSink) yield.Store {
	switch v := sink.(type) {
	case *metrics.YieldSink:
		return v.Store()
	case *coremetrics.MultiSink:
		for _, sub := range v.Sinks {
			if ys := yieldStore(sub); ys != nil {
				return ys
			}
		}
	}
	return nil
}

// Run executes or resumes the run and blocks until it ends or ctx is
// canceled. The Prometheus endpoint and the API are served meanwhile when
// configured.
func (s *Service) Run(ctx context.Context) error {
	srvCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if addr := s.cfg.Metrics.PrometheusAddr; addr != "" {
		go func() {
			if err := metrics.StartPromServer(srvCtx, addr); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	if addr := s.cfg.API.Addr; addr != "" {
		go func() {
			if err := metrics.Serve(srvCtx, addr, s.Handler(), logger.New("api")); err != nil {
				s.log.Errorf("api server: %v", err)
			}
		}()
	}

	var err error
	if s.resume {
		err = s.Driver.Resume(ctx, s.Stores.Checkpoints)
	} else {
		err = s.Driver.Run(ctx)
	}
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		s.log.Warnf("run %s interrupted at step %d, resume with the same run id", s.Driver.RunID(), s.Driver.Step())
	default:
		step, panelID := -1, ""
		var se *driver.StepError
		if errors.As(err, &se) {
			step, panelID = se.Step, se.PanelID
		}
		coremon.CaptureException(err, coremon.StepTags("driver", s.Driver.RunID(), step, panelID))
	}
	return err
}

// Close stops the event collector and releases the sinks and the stores.
func (s *Service) Close() error {
	var result *multierror.Error
	s.bus.Close()
	select {
	case <-s.collectorDone:
	case <-time.After(5 * time.Second):
		s.log.Warnf("event collector did not stop")
	}
	s.stopCollector()
	if c, ok := s.sink.(io.Closer); ok {
		if err := c.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("metrics: %w", err))
		}
	}
	if err := s.Stores.Close(); err != nil {
		result = multierror.Append(result, fmt.Errorf("storage: %w", err))
	}
	s.monitor.Flush(2 * time.Second)
	return result.ErrorOrNil()
}
