package metrics

import (
	"errors"

	coremetrics "github.com/kilianp07/solaris/core/metrics"
	"github.com/kilianp07/solaris/core/model"
	"github.com/prometheus/client_golang/prometheus"
)

// PromSink exposes farm samples and run events as Prometheus metrics.
type PromSink struct {
	power       *prometheus.GaugeVec
	ratio       *prometheus.GaugeVec
	panels      *prometheus.GaugeVec
	soiling     *prometheus.GaugeVec
	degradation *prometheus.GaugeVec
	steps       *prometheus.CounterVec
	transitions *prometheus.CounterVec
	maintenance *prometheus.CounterVec
	checkpoints prometheus.Counter
	ckptBytes   prometheus.Gauge
	latency     *prometheus.HistogramVec
}

// NewPromSink registers the simulator metrics on the default Prometheus
// registerer. The HTTP endpoint is served separately by StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Collectors
// already registered by a previous sink are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		power: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "solaris_farm_power_watts",
			Help: "Farm power of the last step",
		}, []string{"farm_id", "kind"}),
		ratio: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "solaris_farm_performance_ratio",
			Help: "Actual over ideal farm power of the last step",
		}, []string{"farm_id"}),
		panels: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "solaris_farm_panels",
			Help: "Number of panels per health status",
		}, []string{"farm_id", "status"}),
		soiling: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "solaris_panel_soiling_level",
			Help: "Soiling level of each panel",
		}, []string{"farm_id", "panel_id"}),
		degradation: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "solaris_panel_degradation_factor",
			Help: "Remaining capacity of each panel",
		}, []string{"farm_id", "panel_id"}),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "solaris_steps_total",
			Help: "Number of simulated steps",
		}, []string{"farm_id"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "solaris_panel_status_transitions_total",
			Help: "Panel health transitions",
		}, []string{"farm_id", "from", "to"}),
		maintenance: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "solaris_maintenance_actions_total",
			Help: "Maintenance actions applied to panels",
		}, []string{"farm_id", "action"}),
		checkpoints: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "solaris_checkpoints_total",
			Help: "Number of checkpoints written",
		}),
		ckptBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "solaris_checkpoint_bytes",
			Help: "Size of the last checkpoint",
		}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "solaris_step_duration_seconds",
			Help:    "Wall clock time spent computing a step",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		}, []string{"farm_id"}),
	}
	var err error
	if s.power, err = register(reg, s.power); err != nil {
		return nil, err
	}
	if s.ratio, err = register(reg, s.ratio); err != nil {
		return nil, err
	}
	if s.panels, err = register(reg, s.panels); err != nil {
		return nil, err
	}
	if s.soiling, err = register(reg, s.soiling); err != nil {
		return nil, err
	}
	if s.degradation, err = register(reg, s.degradation); err != nil {
		return nil, err
	}
	if s.steps, err = register(reg, s.steps); err != nil {
		return nil, err
	}
	if s.transitions, err = register(reg, s.transitions); err != nil {
		return nil, err
	}
	if s.maintenance, err = register(reg, s.maintenance); err != nil {
		return nil, err
	}
	if s.checkpoints, err = register(reg, s.checkpoints); err != nil {
		return nil, err
	}
	if s.ckptBytes, err = register(reg, s.ckptBytes); err != nil {
		return nil, err
	}
	if s.latency, err = register(reg, s.latency); err != nil {
		return nil, err
	}
	return s, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing, nil
		}
	}
	return c, err
}

// RecordStep updates the farm and panel gauges.
func (s *PromSink) RecordStep(sample model.FarmSample) error {
	s.power.WithLabelValues(sample.FarmID, "actual").Set(sample.TotalActualW)
	s.power.WithLabelValues(sample.FarmID, "ideal").Set(sample.TotalIdealW)
	s.ratio.WithLabelValues(sample.FarmID).Set(sample.PerformanceRatio())
	s.panels.WithLabelValues(sample.FarmID, model.StatusOperational.String()).Set(float64(sample.Operational))
	s.panels.WithLabelValues(sample.FarmID, model.StatusDegraded.String()).Set(float64(sample.Degraded))
	s.panels.WithLabelValues(sample.FarmID, model.StatusFailed.String()).Set(float64(sample.Failed))
	for _, p := range sample.Panels {
		s.soiling.WithLabelValues(sample.FarmID, p.PanelID).Set(p.SoilingLevel)
		s.degradation.WithLabelValues(sample.FarmID, p.PanelID).Set(p.DegradationFactor)
	}
	s.steps.WithLabelValues(sample.FarmID).Inc()
	return nil
}

// RecordStepLatency observes the step duration histogram.
func (s *PromSink) RecordStepLatency(l coremetrics.StepLatency) error {
	s.latency.WithLabelValues(l.FarmID).Observe(l.Duration.Seconds())
	return nil
}

// RecordStatusChange counts a panel health transition.
func (s *PromSink) RecordStatusChange(ev coremetrics.StatusChangeEvent) error {
	s.transitions.WithLabelValues(ev.FarmID, ev.From.String(), ev.To.String()).Inc()
	return nil
}

// RecordCheckpoint counts a checkpoint and keeps its size.
func (s *PromSink) RecordCheckpoint(ev coremetrics.CheckpointEvent) error {
	s.checkpoints.Inc()
	s.ckptBytes.Set(float64(ev.Bytes))
	return nil
}

// RecordMaintenance counts a maintenance action.
func (s *PromSink) RecordMaintenance(ev coremetrics.MaintenanceEvent) error {
	s.maintenance.WithLabelValues(ev.FarmID, ev.Action).Inc()
	return nil
}
