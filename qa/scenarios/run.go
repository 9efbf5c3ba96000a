package scenarios

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/kilianp07/solaris/core/driver"
	"github.com/kilianp07/solaris/core/farm"
	"github.com/kilianp07/solaris/core/model"
	"github.com/kilianp07/solaris/core/series"
	"github.com/kilianp07/solaris/infra/baseline"
	"github.com/kilianp07/solaris/infra/logger"
	"github.com/kilianp07/solaris/infra/metrics"
	"github.com/kilianp07/solaris/infra/storage"
	"github.com/kilianp07/solaris/internal/eventbus"
)

// RunScenario simulates sc on SQLite stores with Prometheus metrics fed from
// the event bus, then checks the expectations.
func RunScenario(t *testing.T, sc *Scenario) {
	t.Helper()
	ctx := context.Background()

	db, err := storage.OpenSQLite(filepath.Join(t.TempDir(), "scenario.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer func() { _ = db.Close() }()

	reg := prometheus.NewRegistry()
	sink, err := metrics.NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("prom sink: %v", err)
	}
	bus := eventbus.New()
	done := metrics.StartEventCollector(ctx, bus, sink)

	provider := baseline.Constant{Output: model.Output{PowerW: sc.IdealW, VoltageV: 25, CurrentA: sc.IdealW / 25}}
	build := func(cfg driver.Config) *driver.Driver {
		f, err := farm.New(sc.FarmConfig(), provider, logger.New("farm"))
		if err != nil {
			t.Fatalf("farm: %v", err)
		}
		d, err := driver.New(cfg, f, logger.New("driver"))
		if err != nil {
			t.Fatalf("driver: %v", err)
		}
		if err := d.SetPlan(sc.Plan(f)); err != nil {
			t.Fatalf("plan: %v", err)
		}
		d.SetSeries(db.Series())
		d.SetCheckpointStore(db.Checkpoints())
		d.SetMetricsSink(sink)
		d.SetEventBus(bus)
		return d
	}

	if sc.InterruptAfter > 0 {
		runCtx, cancel := context.WithCancel(ctx)
		d := build(sc.DriverConfig())
		d.SetFeed(&interrupt{EnvironmentFeed: driver.NewSliceFeed(sc.Frames()...), at: sc.At(sc.InterruptAfter + 1), cancel: cancel})
		if err := d.Run(runCtx); err == nil {
			t.Fatalf("scenario %s: interrupted run returned no error", sc.Name)
		}
		cancel()
		if d.Step() != sc.InterruptAfter {
			t.Fatalf("scenario %s: interrupted at step %d, want %d", sc.Name, d.Step(), sc.InterruptAfter)
		}
		d = build(sc.DriverConfig())
		d.SetFeed(driver.NewSliceFeed(sc.Frames()...))
		if err := d.Resume(ctx, db.Checkpoints()); err != nil {
			t.Fatalf("scenario %s: resume: %v", sc.Name, err)
		}
	} else {
		d := build(sc.DriverConfig())
		d.SetFeed(driver.NewSliceFeed(sc.Frames()...))
		if err := d.Run(ctx); err != nil {
			t.Fatalf("scenario %s: run: %v", sc.Name, err)
		}
	}
	bus.Close()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("scenario %s: event collector did not stop", sc.Name)
	}

	samples, err := db.Series().Query(ctx, series.Query{FarmID: sc.Name})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	check(t, sc, samples, reg)
}

func check(t *testing.T, sc *Scenario, samples []model.FarmSample, reg *prometheus.Registry) {
	t.Helper()
	exp := sc.Expected
	if len(samples) != sc.Steps {
		t.Fatalf("scenario %s: %d samples, want %d", sc.Name, len(samples), sc.Steps)
	}
	for i, s := range samples {
		if s.Step != i+1 {
			t.Errorf("scenario %s: sample %d has step %d", sc.Name, i, s.Step)
		}
		if s.TotalActualW > s.TotalIdealW+1e-9 {
			t.Errorf("scenario %s: step %d actual %.3f above ideal %.3f", sc.Name, s.Step, s.TotalActualW, s.TotalIdealW)
		}
	}
	for step, want := range exp.ActualW {
		got := samples[step-1].TotalActualW
		if diff := got - want; diff > exp.Tolerance+1e-9 || -diff > exp.Tolerance+1e-9 {
			t.Errorf("scenario %s: step %d actual %.6f, want %.6f", sc.Name, step, got, want)
		}
	}
	if exp.ZeroFrom > 0 {
		for _, s := range samples[exp.ZeroFrom-1:] {
			if s.TotalActualW != 0 {
				t.Errorf("scenario %s: step %d actual %.3f, want 0", sc.Name, s.Step, s.TotalActualW)
			}
		}
	}
	if exp.Monotone {
		for i := 1; i < len(samples); i++ {
			if samples[i].TotalActualW > samples[i-1].TotalActualW {
				t.Errorf("scenario %s: output rose at step %d", sc.Name, samples[i].Step)
			}
		}
	}
	if got := samples[len(samples)-1].Failed; got != exp.Failed {
		t.Errorf("scenario %s: %d failed panels, want %d", sc.Name, got, exp.Failed)
	}
	if got := counterSum(t, reg, "solaris_panel_status_transitions_total"); int(got) != exp.Transitions {
		t.Errorf("scenario %s: %v status transitions, want %d", sc.Name, got, exp.Transitions)
	}
	if got := counterSum(t, reg, "solaris_maintenance_actions_total"); int(got) != exp.Maintenance {
		t.Errorf("scenario %s: %v maintenance actions, want %d", sc.Name, got, exp.Maintenance)
	}
	if got := counterSum(t, reg, "solaris_steps_total"); int(got) != sc.Steps {
		t.Errorf("scenario %s: %v steps recorded, want %d", sc.Name, got, sc.Steps)
	}
}

func counterSum(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var sum float64
	for _, mf := range families {
		if mf.GetName() != name || mf.GetType() != dto.MetricType_COUNTER {
			continue
		}
		for _, m := range mf.GetMetric() {
			sum += m.GetCounter().GetValue()
		}
	}
	return sum
}

// interrupt cancels the run when the frame of a given step is requested.
type interrupt struct {
	driver.EnvironmentFeed
	at     time.Time
	cancel context.CancelFunc
}

func (i *interrupt) Next(ctx context.Context) (driver.Frame, error) {
	f, err := i.EnvironmentFeed.Next(ctx)
	if err == nil && f.Timestamp.Equal(i.at) {
		i.cancel()
		return driver.Frame{}, context.Canceled
	}
	return f, err
}
