package yield

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreAggregation(t *testing.T) {
	s := NewMemoryStore()
	d := Day(time.Date(2024, 8, 3, 15, 4, 0, 0, time.UTC))
	require.NoError(t, s.Add(Record{FarmID: "f", Step: 9, Date: d.Add(9 * time.Hour), ActualKWh: 2, IdealKWh: 2.5}))
	require.NoError(t, s.Add(Record{FarmID: "f", Step: 10, Date: d.Add(10 * time.Hour), ActualKWh: 1, IdealKWh: 1.5}))
	require.NoError(t, s.Add(Record{FarmID: "f", Step: 30, Date: d.Add(30 * time.Hour), ActualKWh: 4, IdealKWh: 4}))
	require.NoError(t, s.Add(Record{FarmID: "g", Step: 1, Date: d, ActualKWh: 10}))

	recs, err := s.Query("f", d, d)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 3.0, recs[0].ActualKWh)
	assert.Equal(t, 4.0, recs[0].IdealKWh)

	recs, err = s.Query("f", d, d.Add(48*time.Hour))
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.True(t, recs[0].Date.Before(recs[1].Date))
}

func TestMemoryStoreReplacesReplayedStep(t *testing.T) {
	s := NewMemoryStore()
	d := Day(time.Date(2024, 8, 3, 0, 0, 0, 0, time.UTC))
	require.NoError(t, s.Add(Record{FarmID: "f", Step: 1, Date: d.Add(time.Hour), ActualKWh: 2, IdealKWh: 3}))
	require.NoError(t, s.Add(Record{FarmID: "f", Step: 2, Date: d.Add(2 * time.Hour), ActualKWh: 1, IdealKWh: 1}))
	require.NoError(t, s.Add(Record{FarmID: "f", Step: 2, Date: d.Add(2 * time.Hour), ActualKWh: 1, IdealKWh: 1}))

	recs, err := s.Query("f", d, d)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 3.0, recs[0].ActualKWh)
	assert.Equal(t, 4.0, recs[0].IdealKWh)
	assert.Zero(t, recs[0].Step)
}

func TestRecordCalculations(t *testing.T) {
	r := Record{ActualKWh: 4, IdealKWh: 5}
	assert.Equal(t, 40.0, r.CO2Avoided(10))
	assert.Equal(t, 1.0, r.LostKWh())
	assert.Equal(t, 0.8, r.PerformanceRatio())
	assert.Equal(t, 1.0, Record{}.PerformanceRatio())
}
