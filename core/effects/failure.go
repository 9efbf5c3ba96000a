package effects

import (
	"math"
	"time"

	"github.com/kilianp07/solaris/core/model"
)

// FailureModel draws, once per step, whether an operating panel fails.
// Failure is permanent until the panel is repaired or replaced.
type FailureModel struct {
	Config FailureConfig
}

// Name implements Effect.
func (FailureModel) Name() string { return "failure" }

// Apply performs the failure draw. Failed panels produce nothing and consume
// no draw.
func (m FailureModel) Apply(st model.PanelState, env model.EnvironmentSample, out model.Output) (model.PanelState, model.Output) {
	if st.Status == model.StatusFailed {
		return st, model.Output{}
	}
	p := m.Probability(st, env.Timestamp, elapsed(st, env))
	if st.RNG.Float64() < p {
		st.Status = model.StatusFailed
		st.FailedAt = env.Timestamp
		return st, model.Output{}
	}
	return st, out
}

// HazardRate returns the failure rate per year of the panel at t.
func (m FailureModel) HazardRate(st model.PanelState, t time.Time) float64 {
	cfg := m.Config
	years := st.Age(t).Hours() / hoursPerYear
	lambda := (cfg.BaseRatePerYear + cfg.AgeRatePerYear*years) * (1 + cfg.SoilingWeight*st.SoilingLevel)
	if st.Status == model.StatusDegraded && cfg.DegradedMultiplier > 1 {
		lambda *= cfg.DegradedMultiplier
	}
	return lambda
}

// Probability returns the chance that the panel fails during a step of
// length dt ending at t.
func (m FailureModel) Probability(st model.PanelState, t time.Time, dt time.Duration) float64 {
	if p, ok := m.override(t); ok {
		return p
	}
	if dt <= 0 {
		return 0
	}
	return 1 - math.Exp(-m.HazardRate(st, t)*dt.Hours()/hoursPerYear)
}

func (m FailureModel) override(t time.Time) (float64, bool) {
	for _, o := range m.Config.Overrides {
		if !t.Before(o.From) && !t.After(o.To) {
			return o.Probability, true
		}
	}
	return 0, false
}
