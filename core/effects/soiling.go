package effects

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/kilianp07/solaris/core/model"
)

// SoilingModel accumulates dirt on the panel surface and removes it on
// cleaning events or heavy enough rain.
type SoilingModel struct {
	Config SoilingConfig
}

// Name implements Effect.
func (SoilingModel) Name() string { return "soiling" }

// Apply grows the soiling level over the elapsed time, then applies the
// cleaning events of the step, and scales the output by (1 - level).
func (m SoilingModel) Apply(st model.PanelState, env model.EnvironmentSample, out model.Output) (model.PanelState, model.Output) {
	cfg := m.Config
	level := st.SoilingLevel

	days := elapsed(st, env).Hours() / 24
	if days > 0 && level < cfg.MaxLevel {
		level = m.grow(level, m.rate(&st), days)
	}

	switch {
	case env.Clean || m.cleaningDue(st, env):
		level = 0
		st.LastCleanedAt = env.Timestamp
	case cfg.RainMaxEffect > 0 && env.RainfallMM >= cfg.RainThresholdMM && env.RainfallMM > 0:
		level *= 1 - RainRemoval(cfg, env.RainfallMM)
		st.LastCleanedAt = env.Timestamp
	case env.RainfallMM > 0 && level < cfg.MaxLevel:
		// light rain glues dust to the glass
		level = math.Min(cfg.MaxLevel, level+cfg.CementationPenalty)
	}

	st.SoilingLevel = clamp01(level)
	return st, out.Scale(1 - st.SoilingLevel)
}

func (m SoilingModel) rate(st *model.PanelState) float64 {
	k := m.Config.RatePerDay
	if m.Config.NoiseSigma <= 0 || k == 0 {
		return k
	}
	n := distuv.Normal{Mu: 1, Sigma: m.Config.NoiseSigma, Src: &st.RNG}
	return k * math.Max(0, n.Rand())
}

func (m SoilingModel) grow(level, k, days float64) float64 {
	maxLevel := m.Config.MaxLevel
	if m.Config.Curve == CurveLinear {
		return math.Min(maxLevel, level+k*days)
	}
	return maxLevel - (maxLevel-level)*math.Exp(-k*days)
}

func (m SoilingModel) cleaningDue(st model.PanelState, env model.EnvironmentSample) bool {
	interval := m.Config.CleaningInterval()
	if interval <= 0 {
		return false
	}
	return env.Timestamp.Sub(st.LastCleanedAt) >= interval
}

// RainRemoval returns the fraction of soiling washed away by mm of rain. It
// saturates at RainMaxEffect for heavy rain.
func RainRemoval(cfg SoilingConfig, mm float64) float64 {
	if mm < cfg.RainThresholdMM || mm <= 0 {
		return 0
	}
	return cfg.RainMaxEffect * (1 - math.Exp(-cfg.RainEffectRate*mm))
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
