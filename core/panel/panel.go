// Package panel holds the per-panel state machine: one state record driven by
// the effect chain, plus the maintenance operations applied from outside the
// chain.
package panel

import (
	"fmt"
	"math"
	"time"

	"github.com/kilianp07/solaris/core/effects"
	"github.com/kilianp07/solaris/core/model"
)

// Limits bounds the accepted ambient temperature.
type Limits struct {
	MinTempC float64 `json:"min_temp_c"`
	MaxTempC float64 `json:"max_temp_c"`
}

// DefaultLimits covers every climate a panel is rated for.
func DefaultLimits() Limits { return Limits{MinTempC: -60, MaxTempC: 70} }

// SetDefaults applies the default range when none is configured.
func (l *Limits) SetDefaults() {
	if l.MinTempC == 0 && l.MaxTempC == 0 {
		*l = DefaultLimits()
	}
}

// Validate checks that the range is not empty.
func (l Limits) Validate() error {
	if l.MaxTempC <= l.MinTempC {
		return fmt.Errorf("max_temp_c must be greater than min_temp_c")
	}
	return nil
}

// Panel is a single module of a farm. It is not safe for concurrent use; the
// farm guarantees that one goroutine at most touches a panel during a step.
type Panel struct {
	state  model.PanelState
	chain  effects.Chain
	limits Limits
}

// New wraps a state record. Zero limits are replaced by DefaultLimits.
func New(st model.PanelState, chain effects.Chain, limits Limits) *Panel {
	limits.SetDefaults()
	return &Panel{state: st, chain: chain, limits: limits}
}

// ID returns the panel identifier.
func (p *Panel) ID() string { return p.state.ID }

// State returns a copy of the current state record.
func (p *Panel) State() model.PanelState { return p.state }

// Chain returns the effect chain of the panel.
func (p *Panel) Chain() effects.Chain { return p.chain }

// SetState replaces the state record, typically when restoring a checkpoint.
func (p *Panel) SetState(st model.PanelState) error {
	if st.ID != p.state.ID {
		return fmt.Errorf("state for panel %s cannot be applied to %s", st.ID, p.state.ID)
	}
	if err := st.Validate(); err != nil {
		return err
	}
	p.state = st
	return nil
}

// Advance validates the inputs, runs the effect chain and commits the new
// state. On error the state is unchanged.
func (p *Panel) Advance(env model.EnvironmentSample, ideal model.Output) (model.Output, error) {
	next, out, err := p.Step(env, ideal)
	if err != nil {
		return model.Output{}, err
	}
	p.state = next
	return out, nil
}

// Step computes the state and output of the next step without committing
// them. Commit applies the returned state.
func (p *Panel) Step(env model.EnvironmentSample, ideal model.Output) (model.PanelState, model.Output, error) {
	if err := p.Check(env, ideal); err != nil {
		return model.PanelState{}, model.Output{}, err
	}
	next, out := p.chain.Apply(p.state, env, ideal)
	return next, out, nil
}

// Commit stores a state computed by Step.
func (p *Panel) Commit(st model.PanelState) { p.state = st }

// Check validates the inputs of a step.
func (p *Panel) Check(env model.EnvironmentSample, ideal model.Output) error {
	bad := func(field string, v any) error {
		return &InvalidEnvironmentError{PanelID: p.state.ID, Timestamp: env.Timestamp, Field: field, Value: v}
	}
	switch {
	case env.Timestamp.Before(p.state.LastStepAt):
		return bad("timestamp", env.Timestamp.Format(time.RFC3339))
	case invalid(ideal.PowerW):
		return bad("ideal power", ideal.PowerW)
	case invalid(ideal.VoltageV):
		return bad("ideal voltage", ideal.VoltageV)
	case invalid(ideal.CurrentA):
		return bad("ideal current", ideal.CurrentA)
	case invalid(env.IrradianceWm2):
		return bad("irradiance", env.IrradianceWm2)
	case math.IsNaN(env.AmbientTempC) || env.AmbientTempC < p.limits.MinTempC || env.AmbientTempC > p.limits.MaxTempC:
		return bad("ambient temperature", env.AmbientTempC)
	case invalid(env.WindSpeedMS):
		return bad("wind speed", env.WindSpeedMS)
	case invalid(env.RainfallMM):
		return bad("rainfall", env.RainfallMM)
	}
	return nil
}

func invalid(v float64) bool {
	return v < 0 || math.IsNaN(v) || math.IsInf(v, 0)
}

// Clean removes all soiling.
func (p *Panel) Clean(at time.Time) {
	p.state.SoilingLevel = 0
	p.state.LastCleanedAt = at
}

// Repair brings a failed panel back into service. Degradation is kept. It
// reports whether the panel was failed.
func (p *Panel) Repair(at time.Time) bool {
	if p.state.Status != model.StatusFailed {
		return false
	}
	p.state.Status = model.StatusOperational
	p.state.FailedAt = time.Time{}
	p.state.ReplaceAt = time.Time{}
	p.state.LastOutput = model.Output{}
	return true
}

// Replace installs a new module at the same position. The new module starts a
// fresh lifetime at at; the random stream carries on.
func (p *Panel) Replace(at time.Time) {
	st := p.state
	st.SoilingLevel = 0
	st.DegradationFactor = 1
	st.Status = model.StatusOperational
	st.FailedAt = time.Time{}
	st.ReplaceAt = time.Time{}
	st.LastCleanedAt = at
	st.CommissionedAt = at
	st.LastOutput = model.Output{}
	st.Generation++
	p.state = st
}
