// Package driver advances a farm along a time axis, records its output and
// checkpoints its state so that an interrupted run can resume exactly where
// it stopped.
package driver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/solaris/core/events"
	"github.com/kilianp07/solaris/core/farm"
	"github.com/kilianp07/solaris/core/logger"
	"github.com/kilianp07/solaris/core/metrics"
	"github.com/kilianp07/solaris/core/model"
	"github.com/kilianp07/solaris/core/series"
	"github.com/kilianp07/solaris/core/state"
	"github.com/kilianp07/solaris/internal/eventbus"
)

// Driver runs the step loop. It is not safe for concurrent use.
type Driver struct {
	cfg         Config
	farm        *farm.Farm
	feed        EnvironmentFeed
	plan        MaintenancePlan
	series      series.Store
	checkpoints state.CheckpointStore
	metrics     metrics.MetricsSink
	bus         eventbus.EventBus
	logger      logger.Logger

	runID     string
	step      int
	cursor    time.Time
	statuses  []model.PanelStatus
	savedStep int
	restored  bool
}

// New creates a driver for f. The feed defaults to a constant clear-sky
// environment, the series to an in-memory store.
func New(cfg Config, f *farm.Farm, log logger.Logger) (*Driver, error) {
	if f == nil {
		return nil, fmt.Errorf("driver: farm is required")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("driver config: %w", err)
	}
	d := &Driver{
		cfg:       cfg,
		farm:      f,
		feed:      ConstantEnvironment{Sample: model.EnvironmentSample{IrradianceWm2: 1000, AmbientTempC: 25}},
		series:    series.NewMemoryStore(),
		metrics:   metrics.NopSink{},
		logger:    logger.OrNop(log),
		runID:     cfg.RunID,
		cursor:    cfg.Start,
		savedStep: -1,
	}
	d.refreshStatuses()
	return d, nil
}

// SetFeed configures the environment feed.
func (d *Driver) SetFeed(feed EnvironmentFeed) {
	if feed != nil {
		d.feed = feed
	}
}

// SetPlan configures the maintenance plan.
func (d *Driver) SetPlan(plan MaintenancePlan) error {
	if err := plan.Validate(); err != nil {
		return err
	}
	d.plan = plan
	return nil
}

// SetSeries configures the store receiving the farm samples.
func (d *Driver) SetSeries(s series.Store) {
	if s != nil {
		d.series = s
	}
}

// SetCheckpointStore enables checkpointing.
func (d *Driver) SetCheckpointStore(s state.CheckpointStore) { d.checkpoints = s }

// SetMetricsSink configures the metrics sink.
func (d *Driver) SetMetricsSink(m metrics.MetricsSink) {
	if m != nil {
		d.metrics = m
	}
}

// SetEventBus configures the bus receiving the run events.
func (d *Driver) SetEventBus(b eventbus.EventBus) { d.bus = b }

// RunID returns the identifier of the run, assigned on the first Run call
// when not configured.
func (d *Driver) RunID() string { return d.runID }

// Step returns the number of completed steps.
func (d *Driver) Step() int { return d.step }

// Cursor returns the timestamp of the last completed step.
func (d *Driver) Cursor() time.Time { return d.cursor }

// Series returns the output store.
func (d *Driver) Series() series.Store { return d.series }

// Restore positions the driver on a snapshot. The farm must have been built
// from the snapshot configuration. On error the farm and the feed are left
// where they were.
func (d *Driver) Restore(ctx context.Context, snap state.Snapshot) error {
	if snap.FarmID != d.farm.ID() {
		return fmt.Errorf("snapshot of farm %s cannot restore farm %s", snap.FarmID, d.farm.ID())
	}
	prev := d.farm.Snapshot()
	if err := d.farm.Restore(snap.Panels); err != nil {
		return err
	}
	if err := d.feed.Seek(snap.Cursor); err != nil {
		d.rollback(prev)
		return fmt.Errorf("seek feed: %w", err)
	}
	if tr, ok := d.series.(series.Truncater); ok {
		if err := tr.TruncateAfter(ctx, snap.FarmID, snap.Step); err != nil {
			d.rollback(prev)
			if serr := d.feed.Seek(d.cursor); serr != nil {
				d.logger.Errorf("seek feed back to %s: %v", d.cursor.Format(time.RFC3339), serr)
			}
			return fmt.Errorf("truncate series: %w", err)
		}
	} else {
		d.logger.Warnf("series store cannot drop samples after step %d, replayed steps will be duplicated", snap.Step)
	}
	d.runID = snap.RunID
	d.step = snap.Step
	d.cursor = snap.Cursor
	d.savedStep = snap.Step
	d.restored = true
	d.refreshStatuses()
	d.logger.Infof("run %s restored at step %d (%s)", d.runID, d.step, d.cursor.Format(time.RFC3339))
	return nil
}

func (d *Driver) rollback(prev []model.PanelState) {
	if err := d.farm.Restore(prev); err != nil {
		d.logger.Errorf("roll back farm state: %v", err)
	}
}

// Resume restores the latest checkpoint of the run from store and continues
// the run.
func (d *Driver) Resume(ctx context.Context, store state.CheckpointStore) error {
	cp, err := store.Latest(ctx, d.runID)
	if err != nil {
		return fmt.Errorf("latest checkpoint: %w", err)
	}
	snap, err := state.Load(cp.Data)
	if err != nil {
		return err
	}
	if err := d.Restore(ctx, snap); err != nil {
		return err
	}
	if d.checkpoints == nil {
		d.checkpoints = store
	}
	return d.Run(ctx)
}

// Run advances the farm until End, the end of the feed, an error or the
// cancellation of ctx. A checkpoint is written every CheckpointEvery steps
// and when the loop stops.
func (d *Driver) Run(ctx context.Context) error {
	if d.runID == "" {
		d.runID = uuid.NewString()
	}
	if !d.restored && d.step == 0 {
		if err := d.checkFreshSeries(ctx); err != nil {
			return err
		}
	}
	d.logger.Infof("run %s: farm %s with %d panels from step %d to %d", d.runID, d.farm.ID(), d.farm.Len(), d.step, d.cfg.Steps())

	for {
		ts := d.cursor.Add(d.cfg.Step)
		if ts.After(d.cfg.End) {
			break
		}
		if err := ctx.Err(); err != nil {
			d.saveFinal(ctx)
			return err
		}
		if err := d.advance(ctx, ts); err != nil {
			if errors.Is(err, io.EOF) {
				d.logger.Warnf("run %s: environment feed exhausted after step %d", d.runID, d.step)
				break
			}
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				d.saveFinal(ctx)
				return err
			}
			d.logger.Errorf("run %s halted: %v", d.runID, err)
			d.publish(events.RunFailed{RunID: d.runID, Step: d.step + 1, Err: err})
			return err
		}
	}

	d.saveFinal(ctx)
	d.publish(events.RunFinished{RunID: d.runID, Steps: d.step})
	d.logger.Infof("run %s finished after %d steps", d.runID, d.step)
	return nil
}

// checkFreshSeries refuses to start a new run over the samples of an
// earlier one, which would be overwritten step by step.
func (d *Driver) checkFreshSeries(ctx context.Context) error {
	existing, err := d.series.Query(ctx, series.Query{FarmID: d.farm.ID(), Limit: 1})
	if err != nil {
		return fmt.Errorf("inspect series: %w", err)
	}
	if len(existing) > 0 {
		return fmt.Errorf("%w: farm %s already has samples from step %d, resume the run or use a new storage path", ErrSeriesNotEmpty, d.farm.ID(), existing[0].Step)
	}
	return nil
}

func (d *Driver) advance(ctx context.Context, ts time.Time) error {
	started := time.Now()
	frame, err := d.frame(ctx, ts)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
			return err
		}
		return stepError(d.step+1, ts, err)
	}
	cleaned, err := d.maintain(d.cursor, ts)
	if err != nil {
		return stepError(d.step+1, ts, err)
	}

	sample, err := d.farm.Advance(ctx, ts, withCleaning(frame.Environment(), cleaned))
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return stepError(d.step+1, ts, err)
	}
	d.step++
	d.cursor = ts
	sample.Step = d.step

	if err := d.series.Append(ctx, sample); err != nil {
		return stepError(d.step, ts, fmt.Errorf("append sample: %w", err))
	}
	if err := d.metrics.RecordStep(sample); err != nil {
		d.logger.Warnf("record step %d: %v", d.step, err)
	}
	d.trackStatuses(sample)

	elapsed := time.Since(started)
	if lr, ok := d.metrics.(metrics.LatencyRecorder); ok {
		if err := lr.RecordStepLatency(metrics.StepLatency{FarmID: sample.FarmID, Step: d.step, Duration: elapsed}); err != nil {
			d.logger.Warnf("record latency: %v", err)
		}
	}
	d.publish(events.StepCompleted{RunID: d.runID, Sample: sample, Duration: elapsed})

	if d.cfg.CheckpointEvery > 0 && d.step%d.cfg.CheckpointEvery == 0 {
		if err := d.save(ctx); err != nil {
			return stepError(d.step, ts, err)
		}
	}
	return nil
}

// frame reads the feed frame of step ts, skipping frames older than the step.
func (d *Driver) frame(ctx context.Context, ts time.Time) (Frame, error) {
	for {
		f, err := d.feed.Next(ctx)
		if err != nil {
			return Frame{}, err
		}
		switch {
		case f.Timestamp.IsZero() || f.Timestamp.Equal(ts):
			return f, nil
		case f.Timestamp.Before(ts):
			d.logger.Debugf("skipping frame %s before step %s", f.Timestamp.Format(time.RFC3339), ts.Format(time.RFC3339))
		default:
			return Frame{}, fmt.Errorf("%w: frame at %s, step at %s", ErrFeedOutOfSync, f.Timestamp.Format(time.RFC3339), ts.Format(time.RFC3339))
		}
	}
}

// maintain applies the plan events due in (prev, ts], then the replacements
// scheduled by the farm policy. Cleanings are returned instead, to be applied
// with the step like a cleaning reported by the feed.
func (d *Driver) maintain(prev, ts time.Time) (map[string]bool, error) {
	var cleaned map[string]bool
	for _, ev := range d.plan.Due(prev, ts) {
		ids := []string{ev.PanelID}
		if ev.PanelID == "" {
			ids = ids[:0]
			for _, st := range d.farm.Snapshot() {
				ids = append(ids, st.ID)
			}
		}
		for _, id := range ids {
			if ev.Action == ActionClean {
				if _, ok := d.farm.Panel(id); !ok {
					return nil, fmt.Errorf("clean: %w %s", farm.ErrUnknownPanel, id)
				}
				if cleaned == nil {
					cleaned = map[string]bool{}
				}
				cleaned[id] = true
				d.publish(events.MaintenanceApplied{RunID: d.runID, FarmID: d.farm.ID(), PanelID: id, Action: string(ev.Action), At: ev.At})
				continue
			}
			applied, err := d.apply(ev.Action, id, ev.At)
			if err != nil {
				return nil, err
			}
			if !applied {
				continue
			}
			if st, ok := d.farm.Panel(id); ok {
				d.statuses[st.Index] = st.Status
			}
			d.publish(events.MaintenanceApplied{RunID: d.runID, FarmID: d.farm.ID(), PanelID: id, Action: string(ev.Action), At: ev.At})
		}
	}
	for _, st := range d.farm.DueReplacements(ts) {
		if err := d.farm.Replace(st.ID, st.ReplaceAt); err != nil {
			return nil, err
		}
		d.statuses[st.Index] = model.StatusOperational
		d.publish(events.MaintenanceApplied{RunID: d.runID, FarmID: d.farm.ID(), PanelID: st.ID, Action: string(ActionReplace), At: st.ReplaceAt})
	}
	return cleaned, nil
}

func (d *Driver) apply(action Action, id string, at time.Time) (bool, error) {
	switch action {
	case ActionRepair:
		return d.farm.Repair(id, at)
	case ActionReplace:
		return true, d.farm.Replace(id, at)
	}
	return false, fmt.Errorf("unknown maintenance action %q", action)
}

// withCleaning marks the samples of the cleaned panels. The frame maps are
// not modified.
func withCleaning(env farm.Environment, cleaned map[string]bool) farm.Environment {
	if len(cleaned) == 0 {
		return env
	}
	per := make(map[string]model.EnvironmentSample, len(env.PerPanel)+len(cleaned))
	for id, s := range env.PerPanel {
		per[id] = s
	}
	for id := range cleaned {
		s := env.For(id)
		s.Clean = true
		per[id] = s
	}
	env.PerPanel = per
	return env
}

func (d *Driver) refreshStatuses() {
	snap := d.farm.Snapshot()
	d.statuses = make([]model.PanelStatus, len(snap))
	for i, st := range snap {
		d.statuses[i] = st.Status
	}
}

func (d *Driver) trackStatuses(s model.FarmSample) {
	for i, p := range s.Panels {
		if d.statuses[i] == p.Status {
			continue
		}
		d.publish(events.StatusChanged{RunID: d.runID, FarmID: s.FarmID, PanelID: p.PanelID, From: d.statuses[i], To: p.Status, At: s.Timestamp})
		d.logger.Debugw("panel status changed", map[string]any{
			"panel": p.PanelID,
			"from":  d.statuses[i].String(),
			"to":    p.Status.String(),
			"step":  s.Step,
		})
		d.statuses[i] = p.Status
	}
}

func (d *Driver) save(ctx context.Context) error {
	if d.checkpoints == nil || d.savedStep == d.step {
		return nil
	}
	began := time.Now()
	data, err := state.Save(state.Capture(d.runID, d.farm, d.step, d.cursor))
	if err != nil {
		return err
	}
	if err := d.checkpoints.Put(ctx, d.runID, d.step, data); err != nil {
		return fmt.Errorf("put checkpoint: %w", err)
	}
	d.savedStep = d.step
	d.publish(events.CheckpointSaved{RunID: d.runID, Step: d.step, Bytes: len(data), Duration: time.Since(began), At: d.cursor})
	d.logger.Debugf("checkpoint saved at step %d (%d bytes)", d.step, len(data))
	return nil
}

// saveFinal writes the last checkpoint even when ctx is done.
func (d *Driver) saveFinal(ctx context.Context) {
	if err := d.save(context.WithoutCancel(ctx)); err != nil {
		d.logger.Errorf("final checkpoint: %v", err)
	}
}

func (d *Driver) publish(ev eventbus.Event) {
	if d.bus != nil {
		d.bus.Publish(ev)
	}
}
