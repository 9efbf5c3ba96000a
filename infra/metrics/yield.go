package metrics

import (
	"io"
	"sync"
	"time"

	"github.com/kilianp07/solaris/core/metrics/yield"
	"github.com/kilianp07/solaris/core/model"
	"github.com/prometheus/client_golang/prometheus"
)

// YieldSink integrates farm power into daily energy records and exposes the
// daily KPIs as Prometheus gauges.
type YieldSink struct {
	store  yield.Store
	factor float64
	step   time.Duration

	mu   sync.Mutex
	last map[string]time.Time

	energy *prometheus.GaugeVec
	ratio  *prometheus.GaugeVec
	co2    *prometheus.GaugeVec
}

// NewYieldSink creates a sink with gauges registered on reg. step is the
// duration assumed for the first sample of a farm, factor the grid emission
// intensity in gCO2/kWh.
func NewYieldSink(store yield.Store, factor float64, step time.Duration, reg prometheus.Registerer) (*YieldSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if store == nil {
		store = yield.NewMemoryStore()
	}
	s := &YieldSink{
		store:  store,
		factor: factor,
		step:   step,
		last:   map[string]time.Time{},
		energy: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "solaris_daily_energy_kwh",
			Help: "Daily energy per farm",
		}, []string{"farm_id", "day", "kind"}),
		ratio: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "solaris_daily_performance_ratio",
			Help: "Daily ratio of actual to ideal energy",
		}, []string{"farm_id", "day"}),
		co2: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "solaris_daily_co2_avoided_grams",
			Help: "Daily CO2 avoided per farm",
		}, []string{"farm_id", "day"}),
	}
	var err error
	if s.energy, err = register(reg, s.energy); err != nil {
		return nil, err
	}
	if s.ratio, err = register(reg, s.ratio); err != nil {
		return nil, err
	}
	if s.co2, err = register(reg, s.co2); err != nil {
		return nil, err
	}
	return s, nil
}

// RecordStep stores the energy produced since the previous sample of the
// farm. A replayed step falls back to the configured step and overwrites
// its earlier contribution.
func (s *YieldSink) RecordStep(sample model.FarmSample) error {
	s.mu.Lock()
	prev, seen := s.last[sample.FarmID]
	s.last[sample.FarmID] = sample.Timestamp
	s.mu.Unlock()

	dt := s.step
	if seen && sample.Timestamp.After(prev) {
		dt = sample.Timestamp.Sub(prev)
	}
	if dt <= 0 {
		return nil
	}
	rec := yield.FromSample(sample, dt)
	if err := s.store.Add(rec); err != nil {
		return err
	}
	records, err := s.store.Query(sample.FarmID, rec.Date, rec.Date)
	if err != nil || len(records) == 0 {
		return err
	}
	r := records[0]
	day := yield.Day(rec.Date).Format("2006-01-02")
	s.energy.WithLabelValues(sample.FarmID, day, "actual").Set(r.ActualKWh)
	s.energy.WithLabelValues(sample.FarmID, day, "ideal").Set(r.IdealKWh)
	s.ratio.WithLabelValues(sample.FarmID, day).Set(r.PerformanceRatio())
	s.co2.WithLabelValues(sample.FarmID, day).Set(r.CO2Avoided(s.factor))
	return nil
}

// Store returns the underlying yield store.
func (s *YieldSink) Store() yield.Store { return s.store }

// Close releases the store when it owns a resource.
func (s *YieldSink) Close() error {
	if c, ok := s.store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
