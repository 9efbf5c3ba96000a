package metrics

import (
	"io"

	"github.com/hashicorp/go-multierror"

	"github.com/kilianp07/solaris/core/model"
)

// MultiSink fans out records to several sinks. Optional recorders are only
// forwarded to the sinks implementing them.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordStep forwards the sample to all sinks, returning the first error encountered.
func (m *MultiSink) RecordStep(s model.FarmSample) error {
	for _, sink := range m.Sinks {
		if err := sink.RecordStep(s); err != nil {
			return err
		}
	}
	return nil
}

// RecordStatusChange forwards status transitions.
func (m *MultiSink) RecordStatusChange(ev StatusChangeEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(StatusChangeRecorder); ok {
			if err := rec.RecordStatusChange(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordCheckpoint forwards checkpoint events.
func (m *MultiSink) RecordCheckpoint(ev CheckpointEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(CheckpointRecorder); ok {
			if err := rec.RecordCheckpoint(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordStepLatency forwards latency metrics when supported by the sink.
func (m *MultiSink) RecordStepLatency(l StepLatency) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(LatencyRecorder); ok {
			if err := rec.RecordStepLatency(l); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordMaintenance forwards maintenance events.
func (m *MultiSink) RecordMaintenance(ev MaintenanceEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(MaintenanceRecorder); ok {
			if err := rec.RecordMaintenance(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close closes every sink implementing io.Closer.
func (m *MultiSink) Close() error {
	var result *multierror.Error
	for _, s := range m.Sinks {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil {
				result = multierror.Append(result, err)
			}
		}
	}
	return result.ErrorOrNil()
}
