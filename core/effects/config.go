package effects

import (
	"fmt"
	"time"
)

// Growth curves for soiling.
const (
	CurveExponential = "exponential"
	CurveLinear      = "linear"
)

// Degradation modes.
const (
	ModeLinear   = "linear"
	ModeCompound = "compound"
)

// Config gathers the parameters of the three effects.
type Config struct {
	Soiling     SoilingConfig     `json:"soiling"`
	Degradation DegradationConfig `json:"degradation"`
	Failure     FailureConfig     `json:"failure"`
}

// DefaultConfig returns the parameters used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		Soiling:     DefaultSoilingConfig(),
		Degradation: DefaultDegradationConfig(),
		Failure:     DefaultFailureConfig(),
	}
}

// SetDefaults fills the fields whose zero value is not meaningful.
func (c *Config) SetDefaults() {
	c.Soiling.SetDefaults()
	c.Degradation.SetDefaults()
	c.Failure.SetDefaults()
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.Soiling.Validate(); err != nil {
		return fmt.Errorf("soiling: %w", err)
	}
	if err := c.Degradation.Validate(); err != nil {
		return fmt.Errorf("degradation: %w", err)
	}
	if err := c.Failure.Validate(); err != nil {
		return fmt.Errorf("failure: %w", err)
	}
	return nil
}

// SoilingConfig controls dirt accumulation and cleaning.
type SoilingConfig struct {
	// MaxLevel is the saturation ceiling of the soiling level.
	MaxLevel float64 `json:"max_level"`
	// RatePerDay is the growth rate: 1/day for the exponential curve,
	// level per day for the linear one.
	RatePerDay float64 `json:"rate_per_day"`
	Curve      string  `json:"curve"`
	// NoiseSigma is the standard deviation of the multiplicative noise
	// applied to the growth rate at each step. 0 disables it.
	NoiseSigma float64 `json:"noise_sigma"`

	// CleaningIntervalHours triggers a full cleaning when that much time has
	// passed since the last one. 0 disables scheduled cleaning.
	CleaningIntervalHours float64 `json:"cleaning_interval_hours"`

	RainThresholdMM    float64 `json:"rain_threshold_mm"`
	RainMaxEffect      float64 `json:"rain_max_effect"`
	RainEffectRate     float64 `json:"rain_effect_rate"`
	CementationPenalty float64 `json:"cementation_penalty"`
}

// DefaultSoilingConfig returns a moderately dusty site.
func DefaultSoilingConfig() SoilingConfig {
	return SoilingConfig{
		MaxLevel:           0.2,
		RatePerDay:         0.05,
		Curve:              CurveExponential,
		RainThresholdMM:    2,
		RainMaxEffect:      0.7,
		RainEffectRate:     0.15,
		CementationPenalty: 0.005,
	}
}

// SetDefaults applies fallback values for optional fields.
func (c *SoilingConfig) SetDefaults() {
	if c.Curve == "" {
		c.Curve = CurveExponential
	}
}

// Validate checks the configuration ranges.
func (c SoilingConfig) Validate() error {
	if c.MaxLevel < 0 || c.MaxLevel > 1 {
		return fmt.Errorf("max_level must be within [0,1]")
	}
	if c.RatePerDay < 0 || c.NoiseSigma < 0 || c.CleaningIntervalHours < 0 {
		return fmt.Errorf("rates and intervals must be positive")
	}
	if c.Curve != CurveExponential && c.Curve != CurveLinear {
		return fmt.Errorf("unknown curve %s", c.Curve)
	}
	if c.RainThresholdMM < 0 || c.RainEffectRate < 0 || c.CementationPenalty < 0 {
		return fmt.Errorf("rain parameters must be positive")
	}
	if c.RainMaxEffect < 0 || c.RainMaxEffect > 1 {
		return fmt.Errorf("rain_max_effect must be within [0,1]")
	}
	return nil
}

// CleaningInterval returns the scheduled cleaning period.
func (c SoilingConfig) CleaningInterval() time.Duration {
	return time.Duration(c.CleaningIntervalHours * float64(time.Hour))
}

// DegradationConfig controls the age-driven capacity loss.
type DegradationConfig struct {
	// AnnualRate is the yearly loss after the first year (0.005 = 0.5%/yr).
	AnnualRate float64 `json:"annual_rate"`
	// FirstYearRate is the loss applied during the first year of service.
	// Zero means AnnualRate.
	FirstYearRate float64 `json:"first_year_rate"`
	Mode          string  `json:"mode"`
	// DegradedThreshold moves an operational panel to degraded when the
	// factor falls below it.
	DegradedThreshold float64 `json:"degraded_threshold"`
	// MinFactor is the floor of the factor. It keeps the factor above zero.
	MinFactor float64 `json:"min_factor"`
}

// DefaultDegradationConfig returns typical crystalline silicon rates.
func DefaultDegradationConfig() DegradationConfig {
	return DegradationConfig{
		AnnualRate:        0.005,
		FirstYearRate:     0.02,
		Mode:              ModeLinear,
		DegradedThreshold: 0.8,
		MinFactor:         0.01,
	}
}

// SetDefaults applies fallback values for optional fields.
func (c *DegradationConfig) SetDefaults() {
	if c.Mode == "" {
		c.Mode = ModeLinear
	}
	if c.FirstYearRate == 0 {
		c.FirstYearRate = c.AnnualRate
	}
	if c.MinFactor <= 0 {
		c.MinFactor = 0.01
	}
}

// Validate checks the configuration ranges.
func (c DegradationConfig) Validate() error {
	if c.AnnualRate < 0 || c.AnnualRate >= 1 || c.FirstYearRate < 0 || c.FirstYearRate >= 1 {
		return fmt.Errorf("rates must be within [0,1)")
	}
	if c.Mode != ModeLinear && c.Mode != ModeCompound {
		return fmt.Errorf("unknown mode %s", c.Mode)
	}
	if c.MinFactor <= 0 || c.MinFactor > 1 {
		return fmt.Errorf("min_factor must be within (0,1]")
	}
	if c.DegradedThreshold < 0 || c.DegradedThreshold > 1 {
		return fmt.Errorf("degraded_threshold must be within [0,1]")
	}
	return nil
}

// FailureConfig is the hazard curve of the failure model.
type FailureConfig struct {
	// BaseRatePerYear is the hazard of a new, clean panel.
	BaseRatePerYear float64 `json:"base_rate_per_year"`
	// AgeRatePerYear is added to the hazard for each year of service.
	AgeRatePerYear float64 `json:"age_rate_per_year"`
	// SoilingWeight scales the hazard by (1 + weight*soiling).
	SoilingWeight float64 `json:"soiling_weight"`
	// DegradedMultiplier applies to degraded panels. Values below 1 are
	// raised to 1.
	DegradedMultiplier float64 `json:"degraded_multiplier"`
	// Overrides force the per-step probability inside time windows.
	Overrides []HazardOverride `json:"overrides"`
}

// HazardOverride fixes the failure probability of every step whose timestamp
// falls in [From, To].
type HazardOverride struct {
	From        time.Time `json:"from"`
	To          time.Time `json:"to"`
	Probability float64   `json:"probability"`
}

// DefaultFailureConfig returns a low, slowly increasing hazard.
func DefaultFailureConfig() FailureConfig {
	return FailureConfig{
		BaseRatePerYear:    0.002,
		AgeRatePerYear:     0.0005,
		SoilingWeight:      0.5,
		DegradedMultiplier: 2,
	}
}

// SetDefaults applies fallback values for optional fields.
func (c *FailureConfig) SetDefaults() {
	if c.DegradedMultiplier < 1 {
		c.DegradedMultiplier = 1
	}
}

// Validate checks the configuration ranges.
func (c FailureConfig) Validate() error {
	if c.BaseRatePerYear < 0 || c.AgeRatePerYear < 0 || c.SoilingWeight < 0 {
		return fmt.Errorf("hazard parameters must be positive")
	}
	if c.DegradedMultiplier < 1 {
		return fmt.Errorf("degraded_multiplier must be >= 1")
	}
	for i, o := range c.Overrides {
		if o.Probability < 0 || o.Probability > 1 {
			return fmt.Errorf("override %d: probability must be within [0,1]", i)
		}
		if o.To.Before(o.From) {
			return fmt.Errorf("override %d: to before from", i)
		}
	}
	return nil
}
