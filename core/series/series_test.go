package series

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/solaris/core/model"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func sample(step int, actual float64) model.FarmSample {
	return model.FarmSample{
		FarmID:       "f",
		Step:         step,
		Timestamp:    t0.Add(time.Duration(step) * time.Hour),
		TotalIdealW:  100,
		TotalActualW: actual,
		Operational:  2,
		Panels: []model.PanelSample{
			{PanelID: "a", Actual: model.Output{PowerW: actual / 2}},
			{PanelID: "b", Actual: model.Output{PowerW: actual / 2}},
		},
	}
}

func TestMemoryStoreQuery(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	for i := 1; i <= 5; i++ {
		require.NoError(t, s.Append(ctx, sample(i, float64(100-i))))
	}
	assert.Equal(t, 5, s.Len())

	all, err := s.Query(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, 1, all[0].Step)

	win, err := s.Query(ctx, Query{Start: t0.Add(2 * time.Hour), End: t0.Add(4 * time.Hour)})
	require.NoError(t, err)
	require.Len(t, win, 3)
	assert.Equal(t, 2, win[0].Step)

	one, err := s.Query(ctx, Query{PanelID: "b", Limit: 2})
	require.NoError(t, err)
	require.Len(t, one, 2)
	require.Len(t, one[0].Panels, 1)
	assert.Equal(t, "b", one[0].Panels[0].PanelID)

	none, err := s.Query(ctx, Query{FarmID: "other"})
	require.NoError(t, err)
	assert.Empty(t, none)

	missing, err := s.Query(ctx, Query{PanelID: "zz"})
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestAppendCopiesPanels(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	smp := sample(1, 80)
	require.NoError(t, s.Append(ctx, smp))
	smp.Panels[0].PanelID = "mutated"
	got, err := s.Query(ctx, Query{})
	require.NoError(t, err)
	assert.Equal(t, "a", got[0].Panels[0].PanelID)
}

func TestSummarize(t *testing.T) {
	samples := []model.FarmSample{sample(0, 100), sample(1, 80), sample(2, 60)}
	samples[2].Failed = 1
	samples[2].Operational = 1

	sum := Summarize(samples)
	assert.Equal(t, 3, sum.Steps)
	assert.Equal(t, t0, sum.Start)
	assert.Equal(t, t0.Add(2*time.Hour), sum.End)
	assert.InDelta(t, 200, sum.IdealEnergyWh, 1e-9)
	assert.InDelta(t, 160, sum.ActualEnergyWh, 1e-9)
	assert.InDelta(t, 80, sum.MeanActualW, 1e-9)
	assert.Equal(t, 100.0, sum.PeakActualW)
	assert.InDelta(t, 0.8, sum.MeanPerformanceRatio, 1e-9)
	assert.InDelta(t, 0.2, sum.StdDevPerformanceRatio, 1e-9)
	assert.InDelta(t, 0.6, sum.MinPerformanceRatio, 1e-9)
	assert.Equal(t, 1, sum.FinalFailed)

	assert.Equal(t, Summary{}, Summarize(nil))
}

func TestTruncateAfter(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	for i := 1; i <= 6; i++ {
		require.NoError(t, s.Append(ctx, sample(i, 50)))
	}
	var tr Truncater = s
	require.NoError(t, tr.TruncateAfter(ctx, "f", 4))
	got, err := s.Query(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, 4, got[3].Step)
}
