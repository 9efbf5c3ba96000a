package metrics

import (
	"time"

	"github.com/kilianp07/solaris/core/model"
)

// MetricsSink records the farm sample produced by each simulation step.
type MetricsSink interface {
	RecordStep(s model.FarmSample) error
}

// StatusChangeEvent is a panel health transition.
type StatusChangeEvent struct {
	FarmID  string
	PanelID string
	From    model.PanelStatus
	To      model.PanelStatus
	Time    time.Time
}

// StatusChangeRecorder records panel health transitions.
type StatusChangeRecorder interface {
	RecordStatusChange(ev StatusChangeEvent) error
}

// CheckpointEvent describes a persisted checkpoint.
type CheckpointEvent struct {
	RunID    string
	Step     int
	Bytes    int
	Duration time.Duration
	Time     time.Time
}

// CheckpointRecorder records checkpoint writes.
type CheckpointRecorder interface {
	RecordCheckpoint(ev CheckpointEvent) error
}

// StepLatency is the wall clock time spent computing one step.
type StepLatency struct {
	FarmID   string
	Step     int
	Duration time.Duration
}

// LatencyRecorder is implemented by sinks able to record step latency.
type LatencyRecorder interface {
	RecordStepLatency(l StepLatency) error
}

// MaintenanceEvent records a maintenance action applied to a panel.
type MaintenanceEvent struct {
	FarmID  string
	PanelID string
	Action  string
	Time    time.Time
}

// MaintenanceRecorder records maintenance actions.
type MaintenanceRecorder interface {
	RecordMaintenance(ev MaintenanceEvent) error
}

// NopSink implements MetricsSink and every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordStep(model.FarmSample) error          { return nil }
func (NopSink) RecordStatusChange(StatusChangeEvent) error { return nil }
func (NopSink) RecordCheckpoint(CheckpointEvent) error     { return nil }
func (NopSink) RecordStepLatency(StepLatency) error        { return nil }
func (NopSink) RecordMaintenance(MaintenanceEvent) error   { return nil }
