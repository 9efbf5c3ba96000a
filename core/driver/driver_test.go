package driver

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/solaris/core/effects"
	"github.com/kilianp07/solaris/core/events"
	"github.com/kilianp07/solaris/core/farm"
	"github.com/kilianp07/solaris/core/metrics"
	"github.com/kilianp07/solaris/core/model"
	"github.com/kilianp07/solaris/core/series"
	"github.com/kilianp07/solaris/core/state"
	"github.com/kilianp07/solaris/internal/eventbus"
)

var (
	start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	day   = 24 * time.Hour
)

var constant = farm.ProviderFunc(func(context.Context, model.ModuleSpec, model.Location, model.EnvironmentSample) (model.Output, error) {
	return model.Output{PowerW: 100, VoltageV: 25, CurrentA: 4}, nil
})

func quietFarm(t *testing.T, mut func(*farm.Config)) *farm.Farm {
	t.Helper()
	cfg := farm.Config{
		ID:          "scenario",
		Seed:        3,
		Start:       start,
		Panels:      []farm.PanelDef{{ID: "P1"}},
		Soiling:     effects.SoilingConfig{MaxLevel: 0.2},
		Degradation: effects.DegradationConfig{DegradedThreshold: 0.8},
	}
	if mut != nil {
		mut(&cfg)
	}
	f, err := farm.New(cfg, constant, nil)
	require.NoError(t, err)
	return f
}

func tenDays() Config {
	return Config{Start: start, End: start.Add(10 * day), Step: day}
}

func actual(t *testing.T, s series.Store) []float64 {
	t.Helper()
	samples, err := s.Query(context.Background(), series.Query{})
	require.NoError(t, err)
	out := make([]float64, len(samples))
	for i, smp := range samples {
		require.Equal(t, i+1, smp.Step)
		out[i] = smp.TotalActualW
	}
	return out
}

func TestConstantOutputScenario(t *testing.T) {
	d, err := New(tenDays(), quietFarm(t, nil), nil)
	require.NoError(t, err)
	require.NoError(t, d.Run(context.Background()))

	got := actual(t, d.Series())
	require.Len(t, got, 10)
	for _, v := range got {
		assert.Equal(t, 100.0, v)
	}
	assert.Equal(t, 10, d.Step())
	assert.Equal(t, start.Add(10*day), d.Cursor())
	assert.NotEmpty(t, d.RunID())
}

func TestSoilingScenario(t *testing.T) {
	linear := func(c *farm.Config) {
		c.Soiling = effects.SoilingConfig{MaxLevel: 0.2, RatePerDay: 0.04, Curve: effects.CurveLinear}
	}

	d, err := New(tenDays(), quietFarm(t, linear), nil)
	require.NoError(t, err)
	require.NoError(t, d.Run(context.Background()))
	got := actual(t, d.Series())
	assert.InDelta(t, 80, got[4], 1e-9)
	for i := 1; i < len(got); i++ {
		assert.LessOrEqual(t, got[i], got[i-1])
	}

	var frames []Frame
	for k := 1; k <= 10; k++ {
		s := model.EnvironmentSample{IrradianceWm2: 1000, AmbientTempC: 25, Clean: k == 3}
		frames = append(frames, Frame{Timestamp: start.Add(time.Duration(k) * day), Shared: &s})
	}
	d, err = New(tenDays(), quietFarm(t, linear), nil)
	require.NoError(t, err)
	d.SetFeed(NewSliceFeed(frames...))
	require.NoError(t, d.Run(context.Background()))
	got = actual(t, d.Series())
	assert.InDelta(t, 92, got[1], 1e-9)
	assert.Equal(t, 100.0, got[2])
	assert.InDelta(t, 96, got[3], 1e-9)

	// a planned cleaning lands on the same step output
	d, err = New(tenDays(), quietFarm(t, linear), nil)
	require.NoError(t, err)
	require.NoError(t, d.SetPlan(MaintenancePlan{{At: start.Add(3 * day), PanelID: "P1", Action: ActionClean}}))
	require.NoError(t, d.Run(context.Background()))
	planned := actual(t, d.Series())
	assert.InDeltaSlice(t, got, planned, 1e-9)
}

func TestForcedFailureScenario(t *testing.T) {
	at := start.Add(4 * day)
	f := quietFarm(t, func(c *farm.Config) {
		c.Failure.Overrides = []effects.HazardOverride{{From: at, To: at, Probability: 1}}
	})
	d, err := New(tenDays(), f, nil)
	require.NoError(t, err)
	bus := eventbus.New()
	sub := bus.SubscribeBuffered(256)
	d.SetEventBus(bus)
	require.NoError(t, d.Run(context.Background()))
	bus.Close()

	got := actual(t, d.Series())
	for i, v := range got {
		if i < 3 {
			assert.Equal(t, 100.0, v, "step %d", i+1)
		} else {
			assert.Zero(t, v, "step %d", i+1)
		}
	}

	var changes []events.StatusChanged
	var finished bool
	for ev := range sub {
		switch e := ev.(type) {
		case events.StatusChanged:
			changes = append(changes, e)
		case events.RunFinished:
			finished = true
			assert.Equal(t, 10, e.Steps)
		}
	}
	require.Len(t, changes, 1)
	assert.Equal(t, model.StatusOperational, changes[0].From)
	assert.Equal(t, model.StatusFailed, changes[0].To)
	assert.Equal(t, at, changes[0].At)
	assert.True(t, finished)
}

func noisyFarm(t *testing.T, cfg *farm.Config) *farm.Farm {
	t.Helper()
	f, err := farm.New(*cfg, constant, nil)
	require.NoError(t, err)
	return f
}

func noisyConfig() farm.Config {
	cfg := farm.DefaultConfig()
	cfg.ID = "noisy"
	cfg.Start = start
	cfg.Seed = 2024
	cfg.Layout = farm.Layout{Rows: 4, Cols: 5, SpacingM: 2}
	cfg.Soiling.NoiseSigma = 0.3
	cfg.Failure.BaseRatePerYear = 8
	return cfg
}

func rainyFeed(n int) *SliceFeed {
	var frames []Frame
	for k := 1; k <= n; k++ {
		s := model.EnvironmentSample{IrradianceWm2: 900, AmbientTempC: 20, RainfallMM: float64(k%5) * 1.5}
		frames = append(frames, Frame{Timestamp: start.Add(time.Duration(k) * day), Shared: &s})
	}
	return NewSliceFeed(frames...)
}

type cancelAt struct {
	EnvironmentFeed
	at     time.Time
	cancel context.CancelFunc
}

func (c *cancelAt) Next(ctx context.Context) (Frame, error) {
	f, err := c.EnvironmentFeed.Next(ctx)
	if err == nil && f.Timestamp.Equal(c.at) {
		c.cancel()
		return Frame{}, context.Canceled
	}
	return f, err
}

func TestResumeIsBitIdentical(t *testing.T) {
	cfg := Config{RunID: "run-1", Start: start, End: start.Add(40 * day), Step: day, CheckpointEvery: 5}

	ref := noisyConfig()
	full, err := New(cfg, noisyFarm(t, &ref), nil)
	require.NoError(t, err)
	full.SetFeed(rainyFeed(40))
	require.NoError(t, full.Run(context.Background()))
	want, err := full.Series().Query(context.Background(), series.Query{})
	require.NoError(t, err)

	store := state.NewMemoryStore()
	out := series.NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	interrupted := noisyConfig()
	first, err := New(cfg, noisyFarm(t, &interrupted), nil)
	require.NoError(t, err)
	first.SetFeed(&cancelAt{EnvironmentFeed: rainyFeed(40), at: start.Add(13 * day), cancel: cancel})
	first.SetSeries(out)
	first.SetCheckpointStore(store)
	err = first.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 12, first.Step())

	cp, err := store.Latest(context.Background(), "run-1")
	require.NoError(t, err)
	snap, err := state.Load(cp.Data)
	require.NoError(t, err)
	assert.Equal(t, 12, snap.Step)

	resumedFarm := noisyFarm(t, &snap.Config)
	second, err := New(Config{Start: start, End: start.Add(40 * day), Step: day, CheckpointEvery: 5}, resumedFarm, nil)
	require.NoError(t, err)
	second.SetFeed(rainyFeed(40))
	second.SetSeries(out)
	require.NoError(t, second.Resume(context.Background(), store))
	assert.Equal(t, "run-1", second.RunID())

	got, err := out.Query(context.Background(), series.Query{})
	require.NoError(t, err)
	require.Equal(t, len(want), len(got))
	assert.Equal(t, want, got)
	assert.Positive(t, want[len(want)-1].Failed)
}

func TestProviderFailureHaltsRun(t *testing.T) {
	boom := errors.New("no irradiance model")
	calls := 0
	cfg := farm.Config{ID: "f", Start: start, Panels: []farm.PanelDef{{ID: "P1"}}, Soiling: effects.SoilingConfig{MaxLevel: 0.2}}
	f, err := farm.New(cfg, farm.ProviderFunc(func(ctx context.Context, m model.ModuleSpec, l model.Location, e model.EnvironmentSample) (model.Output, error) {
		calls++
		if calls == 3 {
			return model.Output{}, boom
		}
		return constant(ctx, m, l, e)
	}), nil)
	require.NoError(t, err)

	d, err := New(tenDays(), f, nil)
	require.NoError(t, err)
	store := state.NewMemoryStore()
	d.SetCheckpointStore(store)
	err = d.Run(context.Background())
	require.Error(t, err)

	var se *StepError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 3, se.Step)
	assert.Equal(t, "P1", se.PanelID)
	assert.Equal(t, start.Add(3*day), se.Timestamp)
	assert.ErrorIs(t, err, farm.ErrProvider)
	assert.ErrorIs(t, err, boom)
	assert.Len(t, actual(t, d.Series()), 2)
	assert.Zero(t, store.Len())
}

func TestFeedOutOfSync(t *testing.T) {
	s := model.EnvironmentSample{IrradianceWm2: 500, AmbientTempC: 10}
	feed := NewSliceFeed(
		Frame{Timestamp: start, Shared: &s},
		Frame{Timestamp: start.Add(day), Shared: &s},
		Frame{Timestamp: start.Add(2*day + time.Hour), Shared: &s},
	)
	d, err := New(tenDays(), quietFarm(t, nil), nil)
	require.NoError(t, err)
	d.SetFeed(feed)
	err = d.Run(context.Background())
	assert.ErrorIs(t, err, ErrFeedOutOfSync)
	assert.Equal(t, 1, d.Step())
}

func TestFeedExhaustedEndsRun(t *testing.T) {
	d, err := New(tenDays(), quietFarm(t, nil), nil)
	require.NoError(t, err)
	d.SetFeed(rainyFeed(4))
	require.NoError(t, d.Run(context.Background()))
	assert.Equal(t, 4, d.Step())
}

func TestMaintenancePlan(t *testing.T) {
	failAt := start.Add(2 * day)
	f := quietFarm(t, func(c *farm.Config) {
		c.Failure.Overrides = []effects.HazardOverride{{From: failAt, To: failAt, Probability: 1}}
	})
	d, err := New(tenDays(), f, nil)
	require.NoError(t, err)
	require.Error(t, d.SetPlan(MaintenancePlan{{At: start, Action: "paint"}}))
	require.NoError(t, d.SetPlan(MaintenancePlan{
		{At: start.Add(5*day - time.Hour), PanelID: "P1", Action: ActionRepair},
		{At: start.Add(8 * day), Action: ActionReplace},
	}))
	require.NoError(t, d.Run(context.Background()))

	got := actual(t, d.Series())
	assert.Equal(t, []float64{100, 0, 0, 0, 100, 100, 100, 100, 100, 100}, got)
	st, ok := f.Panel("P1")
	require.True(t, ok)
	assert.Equal(t, 1, st.Generation)
	assert.Equal(t, start.Add(8*day), st.CommissionedAt)
}

type seekErrFeed struct{ EnvironmentFeed }

func (seekErrFeed) Seek(time.Time) error { return errors.New("feed closed") }

type truncErrStore struct{ *series.MemoryStore }

func (truncErrStore) TruncateAfter(context.Context, string, int) error {
	return errors.New("read-only")
}

func forcedFailureSnapshot(t *testing.T) state.Snapshot {
	t.Helper()
	at := start.Add(2 * day)
	f := quietFarm(t, func(c *farm.Config) {
		c.Failure.Overrides = []effects.HazardOverride{{From: at, To: at, Probability: 1}}
	})
	d, err := New(Config{RunID: "r", Start: start, End: start.Add(4 * day), Step: day}, f, nil)
	require.NoError(t, err)
	require.NoError(t, d.Run(context.Background()))
	return state.Capture("r", f, d.Step(), d.Cursor())
}

func TestRestoreLeavesFarmOnError(t *testing.T) {
	snap := forcedFailureSnapshot(t)
	require.Equal(t, model.StatusFailed, snap.Panels[0].Status)

	f := quietFarm(t, nil)
	before := f.Snapshot()
	d, err := New(tenDays(), f, nil)
	require.NoError(t, err)
	d.SetFeed(seekErrFeed{rainyFeed(10)})
	assert.Error(t, d.Restore(context.Background(), snap))
	assert.Equal(t, before, f.Snapshot())
	assert.Zero(t, d.Step())
	assert.Equal(t, start, d.Cursor())

	f = quietFarm(t, nil)
	d, err = New(tenDays(), f, nil)
	require.NoError(t, err)
	d.SetSeries(truncErrStore{series.NewMemoryStore()})
	assert.Error(t, d.Restore(context.Background(), snap))
	assert.Equal(t, before, f.Snapshot())
	assert.Empty(t, d.RunID())
}

func TestRunRefusesExistingSamples(t *testing.T) {
	out := series.NewMemoryStore()
	d, err := New(tenDays(), quietFarm(t, nil), nil)
	require.NoError(t, err)
	d.SetSeries(out)
	require.NoError(t, d.Run(context.Background()))

	again, err := New(tenDays(), quietFarm(t, nil), nil)
	require.NoError(t, err)
	again.SetSeries(out)
	assert.ErrorIs(t, again.Run(context.Background()), ErrSeriesNotEmpty)
	assert.Len(t, actual(t, out), 10)
}

func TestFailedPanelReplacedAutomatically(t *testing.T) {
	failAt := start.Add(2 * day)
	f := quietFarm(t, func(c *farm.Config) {
		c.Failure.Overrides = []effects.HazardOverride{{From: failAt, To: failAt, Probability: 1}}
		c.Replacement = farm.ReplacementPolicy{Days: 2}
	})
	d, err := New(tenDays(), f, nil)
	require.NoError(t, err)
	bus := eventbus.New()
	sub := bus.SubscribeBuffered(256)
	d.SetEventBus(bus)
	require.NoError(t, d.Run(context.Background()))
	bus.Close()

	var replaced []events.MaintenanceApplied
	for ev := range sub {
		if e, ok := ev.(events.MaintenanceApplied); ok {
			replaced = append(replaced, e)
		}
	}
	require.Len(t, replaced, 1)
	assert.Equal(t, string(ActionReplace), replaced[0].Action)
	delay := replaced[0].At.Sub(failAt)
	assert.GreaterOrEqual(t, delay, day)
	assert.LessOrEqual(t, delay, 4*day)

	back := int(replaced[0].At.Sub(start) / day)
	got := actual(t, d.Series())
	for i, v := range got {
		switch k := i + 1; {
		case k < 2 || k >= back:
			assert.Equal(t, 100.0, v, "step %d", k)
		default:
			assert.Zero(t, v, "step %d", k)
		}
	}
	st, ok := f.Panel("P1")
	require.True(t, ok)
	assert.Equal(t, 1, st.Generation)
	assert.Equal(t, model.StatusOperational, st.Status)
}

func TestCheckpointEvery(t *testing.T) {
	cfg := tenDays()
	cfg.CheckpointEvery = 3
	d, err := New(cfg, quietFarm(t, nil), nil)
	require.NoError(t, err)
	store := state.NewMemoryStore()
	d.SetCheckpointStore(store)
	require.NoError(t, d.Run(context.Background()))
	// steps 3, 6, 9 and the final one
	assert.Equal(t, 4, store.Len())
	cp, err := store.Latest(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 10, cp.Step)
}

type countingSink struct{ steps, latencies int }

func (c *countingSink) RecordStep(model.FarmSample) error { c.steps++; return nil }

func (c *countingSink) RecordStepLatency(metrics.StepLatency) error { c.latencies++; return nil }

func TestMetricsRecorded(t *testing.T) {
	d, err := New(tenDays(), quietFarm(t, nil), nil)
	require.NoError(t, err)
	sink := &countingSink{}
	d.SetMetricsSink(sink)
	require.NoError(t, d.Run(context.Background()))
	assert.Equal(t, 10, sink.steps)
	assert.Equal(t, 10, sink.latencies)
}

func TestConfigValidate(t *testing.T) {
	assert.Error(t, Config{}.Validate())
	assert.Error(t, Config{Start: start, End: start.Add(-day), Step: day}.Validate())
	assert.Error(t, Config{Start: start, End: start, Step: -day}.Validate())
	assert.Equal(t, 10, tenDays().Steps())
	assert.Equal(t, start.Add(3*day), tenDays().At(3))
}
