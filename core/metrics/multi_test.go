package metrics

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/solaris/core/model"
)

type recordSink struct {
	steps   int
	changes int
	latency int
}

func (r *recordSink) RecordStep(model.FarmSample) error { r.steps++; return nil }

func (r *recordSink) RecordStatusChange(StatusChangeEvent) error { r.changes++; return nil }

func (r *recordSink) RecordStepLatency(StepLatency) error { r.latency++; return nil }

type stepOnly struct{ steps int }

func (s *stepOnly) RecordStep(model.FarmSample) error { s.steps++; return nil }

type failing struct{}

func (failing) RecordStep(model.FarmSample) error { return errors.New("down") }

func TestMultiSinkForwards(t *testing.T) {
	s1 := &recordSink{}
	s2 := &stepOnly{}
	m := NewMultiSink(s1, s2)
	require.NoError(t, m.RecordStep(model.FarmSample{}))
	require.NoError(t, m.RecordStatusChange(StatusChangeEvent{}))
	require.NoError(t, m.RecordStepLatency(StepLatency{}))
	require.NoError(t, m.RecordCheckpoint(CheckpointEvent{}))
	require.NoError(t, m.RecordMaintenance(MaintenanceEvent{}))

	assert.Equal(t, 1, s1.steps)
	assert.Equal(t, 1, s1.changes)
	assert.Equal(t, 1, s1.latency)
	assert.Equal(t, 1, s2.steps)
}

func TestMultiSinkStopsOnError(t *testing.T) {
	after := &stepOnly{}
	m := NewMultiSink(failing{}, after)
	assert.Error(t, m.RecordStep(model.FarmSample{}))
	assert.Zero(t, after.steps)
}
