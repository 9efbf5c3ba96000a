package effects

import (
	"math"
	"time"

	"github.com/kilianp07/solaris/core/model"
)

// DegradationModel applies the irreversible capacity loss of an ageing panel.
type DegradationModel struct {
	Config DegradationConfig
}

// Name implements Effect.
func (DegradationModel) Name() string { return "degradation" }

// Apply updates the degradation factor for the panel age at the step time. The
// factor never increases.
func (m DegradationModel) Apply(st model.PanelState, env model.EnvironmentSample, out model.Output) (model.PanelState, model.Output) {
	f := m.FactorAt(st.Age(env.Timestamp))
	if f < st.DegradationFactor {
		st.DegradationFactor = f
	}
	if st.Status == model.StatusOperational && st.DegradationFactor < m.Config.DegradedThreshold {
		st.Status = model.StatusDegraded
	}
	return st, out.Scale(st.DegradationFactor)
}

// FactorAt returns the fraction of capacity retained after age of service.
// The first year uses FirstYearRate, following years use AnnualRate.
func (m DegradationModel) FactorAt(age time.Duration) float64 {
	cfg := m.Config
	years := age.Hours() / hoursPerYear
	first := math.Min(years, 1)
	rest := math.Max(0, years-1)

	var f float64
	switch cfg.Mode {
	case ModeCompound:
		f = math.Pow(1-cfg.FirstYearRate, first) * math.Pow(1-cfg.AnnualRate, rest)
	default:
		f = 1 - cfg.FirstYearRate*first - cfg.AnnualRate*rest
	}
	minFactor := cfg.MinFactor
	if minFactor <= 0 {
		minFactor = 0.01
	}
	return math.Min(1, math.Max(minFactor, f))
}
