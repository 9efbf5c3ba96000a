package farm

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/solaris/core/effects"
	"github.com/kilianp07/solaris/core/model"
	"github.com/kilianp07/solaris/core/panel"
)

var start = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

type mockProvider struct{ mock.Mock }

func (m *mockProvider) IdealOutput(ctx context.Context, module model.ModuleSpec, loc model.Location, env model.EnvironmentSample) (model.Output, error) {
	args := m.Called(ctx, module, loc, env)
	return args.Get(0).(model.Output), args.Error(1)
}

var hundred = ProviderFunc(func(context.Context, model.ModuleSpec, model.Location, model.EnvironmentSample) (model.Output, error) {
	return model.Output{PowerW: 100, VoltageV: 25, CurrentA: 4}, nil
})

func quiet(rows, cols int) Config {
	return Config{
		ID:          "test",
		Seed:        7,
		Start:       start,
		Layout:      Layout{Rows: rows, Cols: cols, Origin: model.Location{Latitude: 45, Longitude: 5}, SpacingM: 3},
		Soiling:     effects.SoilingConfig{MaxLevel: 0.2},
		Degradation: effects.DegradationConfig{DegradedThreshold: 0.8},
	}
}

func noisy(workers int) Config {
	cfg := DefaultConfig()
	cfg.Start = start
	cfg.Seed = 1234
	cfg.Layout = Layout{Rows: 8, Cols: 8, SpacingM: 2}
	cfg.Soiling.NoiseSigma = 0.4
	cfg.Failure.BaseRatePerYear = 40
	cfg.Workers = workers
	return cfg
}

func shared(ts time.Time) Environment {
	return Environment{Shared: model.EnvironmentSample{Timestamp: ts, IrradianceWm2: 900, AmbientTempC: 18, RainfallMM: 0}}
}

func TestNewGeneratesIDs(t *testing.T) {
	f, err := New(quiet(3, 4), hundred, nil)
	require.NoError(t, err)
	require.Equal(t, 12, f.Len())

	re := regexp.MustCompile(`^[A-Z]{2}[0-9]{6}$`)
	seen := map[string]bool{}
	for i, st := range f.Snapshot() {
		assert.Regexp(t, re, st.ID)
		assert.False(t, seen[st.ID])
		seen[st.ID] = true
		assert.Equal(t, i, st.Index)
	}

	again, err := New(quiet(3, 4), hundred, nil)
	require.NoError(t, err)
	assert.Equal(t, f.Snapshot(), again.Snapshot())

	cfg := quiet(3, 4)
	cfg.Seed = 8
	other, err := New(cfg, hundred, nil)
	require.NoError(t, err)
	assert.NotEqual(t, f.Snapshot()[0].ID, other.Snapshot()[0].ID)
}

func TestLayoutLocations(t *testing.T) {
	locs := Layout{Rows: 2, Cols: 2, Origin: model.Location{Latitude: 0, Longitude: 0}, SpacingM: metersPerDegree}.Locations()
	require.Len(t, locs, 4)
	assert.InDelta(t, 0, locs[0].Latitude, 1e-9)
	assert.InDelta(t, 1, locs[1].Longitude, 1e-9)
	assert.InDelta(t, 1, locs[2].Latitude, 1e-9)
}

func TestExplicitPanels(t *testing.T) {
	cfg := quiet(0, 0)
	cfg.Panels = []PanelDef{{ID: "north"}, {}, {ID: "south"}}
	f, err := New(cfg, hundred, nil)
	require.NoError(t, err)
	snap := f.Snapshot()
	assert.Equal(t, "north", snap[0].ID)
	assert.Equal(t, "south", snap[2].ID)
	assert.NotEmpty(t, snap[1].ID)

	cfg.Panels = []PanelDef{{ID: "x"}, {ID: "x"}}
	_, err = New(cfg, hundred, nil)
	assert.Error(t, err)
}

func TestConstantOutput(t *testing.T) {
	f, err := New(quiet(2, 5), hundred, nil)
	require.NoError(t, err)
	for step := 1; step <= 10; step++ {
		ts := start.Add(time.Duration(step) * time.Hour)
		s, err := f.Advance(context.Background(), ts, shared(ts))
		require.NoError(t, err)
		require.Len(t, s.Panels, 10)
		for _, p := range s.Panels {
			require.Equal(t, 100.0, p.Actual.PowerW)
		}
		assert.Equal(t, 1000.0, s.TotalActualW)
		assert.Equal(t, 10, s.Operational)
		assert.Equal(t, 1.0, s.PerformanceRatio())
	}
}

func TestAdvanceUsesMockProvider(t *testing.T) {
	p := new(mockProvider)
	p.On("IdealOutput", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(model.Output{PowerW: 50, VoltageV: 20, CurrentA: 2.5}, nil)
	f, err := New(quiet(1, 3), p, nil)
	require.NoError(t, err)
	ts := start.Add(time.Hour)
	s, err := f.Advance(context.Background(), ts, shared(ts))
	require.NoError(t, err)
	assert.Equal(t, 150.0, s.TotalIdealW)
	p.AssertNumberOfCalls(t, "IdealOutput", 3)
}

func TestDeterministicAcrossWorkerCounts(t *testing.T) {
	run := func(workers int) ([]model.FarmSample, []model.PanelState) {
		f, err := New(noisy(workers), hundred, nil)
		require.NoError(t, err)
		var samples []model.FarmSample
		for step := 1; step <= 60; step++ {
			ts := start.Add(time.Duration(step) * 24 * time.Hour)
			env := shared(ts)
			if step%7 == 0 {
				env.Shared.RainfallMM = 5
			}
			s, err := f.Advance(context.Background(), ts, env)
			require.NoError(t, err)
			samples = append(samples, s)
		}
		return samples, f.Snapshot()
	}
	s1, st1 := run(1)
	s8, st8 := run(8)
	assert.Equal(t, s1, s8)
	assert.Equal(t, st1, st8)
	assert.Positive(t, s1[len(s1)-1].Failed)
}

func TestProviderErrorLeavesStateUntouched(t *testing.T) {
	f, err := New(quiet(2, 2), hundred, nil)
	require.NoError(t, err)
	bad := f.Snapshot()[2].ID
	boom := errors.New("boom")
	f.provider = ProviderFunc(func(ctx context.Context, m model.ModuleSpec, loc model.Location, env model.EnvironmentSample) (model.Output, error) {
		if loc == f.cfg.Layout.Locations()[2] {
			return model.Output{}, boom
		}
		return hundred(ctx, m, loc, env)
	})

	before := f.Snapshot()
	ts := start.Add(time.Hour)
	_, err = f.Advance(context.Background(), ts, shared(ts))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProvider)
	assert.ErrorIs(t, err, boom)
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, bad, pe.PanelID)
	assert.Equal(t, ts, pe.Timestamp)
	assert.Equal(t, before, f.Snapshot())
}

func TestInvalidEnvironmentLeavesStateUntouched(t *testing.T) {
	f, err := New(quiet(1, 4), hundred, nil)
	require.NoError(t, err)
	bad := f.Snapshot()[3].ID
	ts := start.Add(time.Hour)
	env := shared(ts)
	env.PerPanel = map[string]model.EnvironmentSample{bad: {IrradianceWm2: -1}}

	before := f.Snapshot()
	_, err = f.Advance(context.Background(), ts, env)
	assert.ErrorIs(t, err, panel.ErrInvalidEnvironment)
	assert.Equal(t, before, f.Snapshot())
}

func TestCanceledContext(t *testing.T) {
	f, err := New(quiet(1, 4), hundred, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ts := start.Add(time.Hour)
	_, err = f.Advance(ctx, ts, shared(ts))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOverrideForcesSingleFailure(t *testing.T) {
	cfg := quiet(1, 3)
	cfg.Panels = []PanelDef{{ID: "p1"}, {ID: "p2"}, {ID: "p3"}}
	forced := []effects.HazardOverride{{From: start, To: start.Add(100 * time.Hour), Probability: 1}}
	cfg.Overrides = map[string]PanelOverride{"p2": {Failure: map[string]any{"overrides": forced}}}
	f, err := New(cfg, hundred, nil)
	require.NoError(t, err)

	ts := start.Add(time.Hour)
	s, err := f.Advance(context.Background(), ts, shared(ts))
	require.NoError(t, err)
	assert.Equal(t, 1, s.Failed)
	p2, ok := s.Panel("p2")
	require.True(t, ok)
	assert.True(t, p2.Actual.IsZero())
	p1, _ := s.Panel("p1")
	assert.Equal(t, 100.0, p1.Actual.PowerW)
}

func TestPartialOverrideInheritsFarmSettings(t *testing.T) {
	cfg := quiet(1, 2)
	cfg.Panels = []PanelDef{{ID: "p1"}, {ID: "p2"}}
	cfg.Soiling = effects.DefaultSoilingConfig()
	cfg.Overrides = map[string]PanelOverride{"p2": {Soiling: map[string]any{"rate_per_day": 0.5}}}

	eff, err := cfg.EffectsFor("p2")
	require.NoError(t, err)
	want := effects.DefaultSoilingConfig()
	want.RatePerDay = 0.5
	assert.Equal(t, want, eff.Soiling)
	assert.Equal(t, cfg.Degradation, eff.Degradation)
	same, err := cfg.EffectsFor("p1")
	require.NoError(t, err)
	assert.Equal(t, cfg.Effects(), same)

	f, err := New(cfg, hundred, nil)
	require.NoError(t, err)
	for d := 1; d <= 5; d++ {
		ts := start.Add(time.Duration(d) * 24 * time.Hour)
		_, err := f.Advance(context.Background(), ts, shared(ts))
		require.NoError(t, err)
	}
	p1, _ := f.Panel("p1")
	p2, _ := f.Panel("p2")
	assert.Greater(t, p1.SoilingLevel, 0.0)
	assert.Greater(t, p2.SoilingLevel, p1.SoilingLevel)
	assert.LessOrEqual(t, p2.SoilingLevel, 0.2)
}

func TestOverrideRejectsUnknownKey(t *testing.T) {
	cfg := quiet(1, 1)
	cfg.Overrides = map[string]PanelOverride{"p1": {Soiling: map[string]any{"rate_per_dya": 0.5}}}
	_, err := New(cfg, hundred, nil)
	assert.Error(t, err)
}

func TestRestore(t *testing.T) {
	f, err := New(quiet(1, 3), hundred, nil)
	require.NoError(t, err)
	snap := f.Snapshot()

	assert.Error(t, f.Restore(snap[:2]))
	dup := append([]model.PanelState{}, snap...)
	dup[1] = dup[0]
	assert.Error(t, f.Restore(dup))

	mod := append([]model.PanelState{}, snap...)
	mod[0].SoilingLevel = 0.15
	mod[2].SoilingLevel = -1
	assert.Error(t, f.Restore(mod))
	assert.Equal(t, snap, f.Snapshot())

	mod[2].SoilingLevel = 0.1
	require.NoError(t, f.Restore(mod))
	assert.Equal(t, mod, f.Snapshot())
}

func TestMaintenance(t *testing.T) {
	cfg := quiet(1, 1)
	cfg.Panels = []PanelDef{{ID: "only"}}
	cfg.Failure.Overrides = []effects.HazardOverride{{From: start, To: start.Add(time.Hour), Probability: 1}}
	f, err := New(cfg, hundred, nil)
	require.NoError(t, err)
	ts := start.Add(time.Hour)
	_, err = f.Advance(context.Background(), ts, shared(ts))
	require.NoError(t, err)

	ok, err := f.Repair("only", ts)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, f.Replace("only", ts))
	st, _ := f.Panel("only")
	assert.Equal(t, 1, st.Generation)
	require.NoError(t, f.Clean("only", ts))

	_, err = f.Repair("missing", ts)
	assert.ErrorIs(t, err, ErrUnknownPanel)
	assert.ErrorIs(t, f.Clean("missing", ts), ErrUnknownPanel)
}
