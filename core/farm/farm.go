// Package farm groups the panels of a site and advances them together, one
// time step at a time.
package farm

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kilianp07/solaris/core/effects"
	"github.com/kilianp07/solaris/core/logger"
	"github.com/kilianp07/solaris/core/model"
	"github.com/kilianp07/solaris/core/panel"
	"github.com/kilianp07/solaris/core/rng"
)

// Provider computes the ideal output of a module. Implementations must be
// safe for concurrent use.
type Provider interface {
	IdealOutput(ctx context.Context, module model.ModuleSpec, loc model.Location, env model.EnvironmentSample) (model.Output, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, module model.ModuleSpec, loc model.Location, env model.EnvironmentSample) (model.Output, error)

// IdealOutput implements Provider.
func (f ProviderFunc) IdealOutput(ctx context.Context, module model.ModuleSpec, loc model.Location, env model.EnvironmentSample) (model.Output, error) {
	return f(ctx, module, loc, env)
}

// Environment holds the conditions of one step. PerPanel entries take
// precedence over Shared.
type Environment struct {
	Shared   model.EnvironmentSample
	PerPanel map[string]model.EnvironmentSample
}

// For returns the sample seen by a panel.
func (e Environment) For(id string) model.EnvironmentSample {
	if s, ok := e.PerPanel[id]; ok {
		return s
	}
	return e.Shared
}

// Farm is an ordered set of panels sharing a configuration.
type Farm struct {
	cfg      Config
	panels   []*panel.Panel
	index    map[string]int
	provider Provider
	logger   logger.Logger
}

// New builds the panels of the farm in layout order.
func New(cfg Config, provider Provider, log logger.Logger) (*Farm, error) {
	if provider == nil {
		return nil, fmt.Errorf("farm: provider is required")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("farm config: %w", err)
	}

	defs := cfg.Panels
	if len(defs) == 0 {
		for _, loc := range cfg.Layout.Locations() {
			defs = append(defs, PanelDef{Location: loc})
		}
	}
	ids := newIDGenerator(cfg.Seed)
	for _, d := range defs {
		if d.ID != "" {
			ids.reserve(d.ID)
		}
	}

	base, err := effects.NewChain(cfg.Effects())
	if err != nil {
		return nil, err
	}
	f := &Farm{
		cfg:      cfg,
		panels:   make([]*panel.Panel, 0, len(defs)),
		index:    make(map[string]int, len(defs)),
		provider: provider,
		logger:   logger.OrNop(log),
	}
	for i, d := range defs {
		id := d.ID
		if id == "" {
			id = ids.next()
		}
		chain := base
		if _, ok := cfg.Overrides[id]; ok {
			eff, err := cfg.EffectsFor(id)
			if err != nil {
				return nil, err
			}
			if chain, err = effects.NewChain(eff); err != nil {
				return nil, fmt.Errorf("panel %s: %w", id, err)
			}
		}
		st := model.NewPanelState(id, i, d.Location, cfg.Start, rng.Derive(cfg.Seed, i))
		f.index[id] = i
		f.panels = append(f.panels, panel.New(st, chain, cfg.Limits))
	}
	for id := range cfg.Overrides {
		if _, ok := f.index[id]; !ok {
			f.logger.Warnf("override for unknown panel %s ignored", id)
		}
	}
	f.logger.Infof("farm %s built with %d panels", cfg.ID, len(f.panels))
	return f, nil
}

// ID returns the farm identifier.
func (f *Farm) ID() string { return f.cfg.ID }

// Config returns the configuration the farm was built with, defaults applied.
func (f *Farm) Config() Config { return f.cfg }

// Len returns the number of panels.
func (f *Farm) Len() int { return len(f.panels) }

// Panel returns the state of one panel.
func (f *Farm) Panel(id string) (model.PanelState, bool) {
	i, ok := f.index[id]
	if !ok {
		return model.PanelState{}, false
	}
	return f.panels[i].State(), true
}

// Snapshot returns a copy of every panel state in layout order.
func (f *Farm) Snapshot() []model.PanelState {
	out := make([]model.PanelState, len(f.panels))
	for i, p := range f.panels {
		out[i] = p.State()
	}
	return out
}

// Restore replaces every panel state. Nothing is applied unless the states
// match the farm panels one to one and are all valid.
func (f *Farm) Restore(states []model.PanelState) error {
	if len(states) != len(f.panels) {
		return fmt.Errorf("restore: %d states for %d panels", len(states), len(f.panels))
	}
	seen := make(map[string]bool, len(states))
	for _, st := range states {
		if _, ok := f.index[st.ID]; !ok {
			return fmt.Errorf("restore: %w %s", ErrUnknownPanel, st.ID)
		}
		if seen[st.ID] {
			return fmt.Errorf("restore: duplicate panel %s", st.ID)
		}
		seen[st.ID] = true
		if err := st.Validate(); err != nil {
			return fmt.Errorf("restore: %w", err)
		}
	}
	for _, st := range states {
		f.panels[f.index[st.ID]].Commit(st)
	}
	return nil
}

// Advance moves every panel to ts. Ideal outputs are fetched first for the
// whole farm, then panels are advanced on the worker pool. If any panel fails
// no state is modified.
func (f *Farm) Advance(ctx context.Context, ts time.Time, env Environment) (model.FarmSample, error) {
	n := len(f.panels)
	envs := make([]model.EnvironmentSample, n)
	for i, p := range f.panels {
		envs[i] = env.For(p.ID()).At(ts)
	}

	ideals := make([]model.Output, n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.cfg.Workers)
	for i, p := range f.panels {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			st := p.State()
			out, err := f.provider.IdealOutput(gctx, f.cfg.Module, st.Location, envs[i])
			if err != nil {
				return &ProviderError{PanelID: st.ID, Timestamp: ts, Err: err}
			}
			ideals[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return model.FarmSample{}, err
	}

	next := make([]model.PanelState, n)
	actual := make([]model.Output, n)
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(f.cfg.Workers)
	for i, p := range f.panels {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			st, out, err := p.Step(envs[i], ideals[i])
			if err != nil {
				return err
			}
			next[i], actual[i] = f.cfg.Replacement.schedule(st, ts), out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return model.FarmSample{}, err
	}

	sample := model.FarmSample{FarmID: f.cfg.ID, Timestamp: ts, Panels: make([]model.PanelSample, n)}
	for i, p := range f.panels {
		p.Commit(next[i])
		sample.Panels[i] = model.PanelSample{
			PanelID:           next[i].ID,
			Ideal:             ideals[i],
			Actual:            actual[i],
			Status:            next[i].Status,
			SoilingLevel:      next[i].SoilingLevel,
			DegradationFactor: next[i].DegradationFactor,
		}
		sample.TotalIdealW += ideals[i].PowerW
		sample.TotalActualW += actual[i].PowerW
		switch next[i].Status {
		case model.StatusOperational:
			sample.Operational++
		case model.StatusDegraded:
			sample.Degraded++
		case model.StatusFailed:
			sample.Failed++
		}
	}
	return sample, nil
}

func (f *Farm) lookup(id string) (*panel.Panel, error) {
	i, ok := f.index[id]
	if !ok {
		return nil, fmt.Errorf("%w %s", ErrUnknownPanel, id)
	}
	return f.panels[i], nil
}

// Clean removes the soiling of one panel.
func (f *Farm) Clean(id string, at time.Time) error {
	p, err := f.lookup(id)
	if err != nil {
		return err
	}
	p.Clean(at)
	f.logger.Debugw("panel cleaned", map[string]any{"panel": id, "at": at})
	return nil
}

// Repair returns a failed panel to service. It reports whether the panel was
// failed.
func (f *Farm) Repair(id string, at time.Time) (bool, error) {
	p, err := f.lookup(id)
	if err != nil {
		return false, err
	}
	ok := p.Repair(at)
	if ok {
		f.logger.Infof("panel %s repaired at %s", id, at.Format(time.RFC3339))
	}
	return ok, nil
}

// Replace installs a new module in place of a panel.
func (f *Farm) Replace(id string, at time.Time) error {
	p, err := f.lookup(id)
	if err != nil {
		return err
	}
	p.Replace(at)
	f.logger.Infof("panel %s replaced at %s (generation %d)", id, at.Format(time.RFC3339), p.State().Generation)
	return nil
}
