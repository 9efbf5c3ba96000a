package metrics

import (
	"context"

	"github.com/kilianp07/solaris/core/events"
	coremetrics "github.com/kilianp07/solaris/core/metrics"
	"github.com/kilianp07/solaris/infra/logger"
	"github.com/kilianp07/solaris/internal/eventbus"
)

// StartEventCollector subscribes to the event bus and forwards run events to
// the recorders implemented by sink. It stops when the context is canceled or
// the bus is closed. The returned channel is closed once the collector exits.
func StartEventCollector(ctx context.Context, bus eventbus.EventBus, sink coremetrics.MetricsSink) <-chan struct{} {
	done := make(chan struct{})
	if bus == nil || sink == nil {
		close(done)
		return done
	}
	log := logger.New("event-collector")
	sub := bus.Subscribe()
	go func() {
		defer close(done)
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if err := collect(sink, ev); err != nil {
					log.Warnf("record %T: %v", ev, err)
				}
			}
		}
	}()
	return done
}

func collect(sink coremetrics.MetricsSink, ev eventbus.Event) error {
	switch e := ev.(type) {
	case events.StatusChanged:
		if r, ok := sink.(coremetrics.StatusChangeRecorder); ok {
			return r.RecordStatusChange(coremetrics.StatusChangeEvent{
				FarmID:  e.FarmID,
				PanelID: e.PanelID,
				From:    e.From,
				To:      e.To,
				Time:    e.At,
			})
		}
	case events.CheckpointSaved:
		if r, ok := sink.(coremetrics.CheckpointRecorder); ok {
			return r.RecordCheckpoint(coremetrics.CheckpointEvent{
				RunID:    e.RunID,
				Step:     e.Step,
				Bytes:    e.Bytes,
				Duration: e.Duration,
				Time:     e.At,
			})
		}
	case events.MaintenanceApplied:
		if r, ok := sink.(coremetrics.MaintenanceRecorder); ok {
			return r.RecordMaintenance(coremetrics.MaintenanceEvent{
				FarmID:  e.FarmID,
				PanelID: e.PanelID,
				Action:  e.Action,
				Time:    e.At,
			})
		}
	}
	return nil
}
