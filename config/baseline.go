package config

import "fmt"

// Baseline models.
const (
	BaselinePVWatts  = "pvwatts"
	BaselineConstant = "constant"
)

// BaselineConfig selects the provider of the ideal panel output.
type BaselineConfig struct {
	// Model is pvwatts or constant.
	Model string `json:"model"`
	// PowerW, VoltageV and CurrentA define the constant output.
	PowerW   float64 `json:"power_w"`
	VoltageV float64 `json:"voltage_v"`
	CurrentA float64 `json:"current_a"`
}

// DefaultBaseline uses the PVWatts model with the farm module.
func DefaultBaseline() BaselineConfig {
	return BaselineConfig{Model: BaselinePVWatts}
}

// SetDefaults applies sane defaults.
func (c *BaselineConfig) SetDefaults() {
	if c.Model == "" {
		c.Model = BaselinePVWatts
	}
}

// Validate checks the model name and the constant output.
func (c BaselineConfig) Validate() error {
	switch c.Model {
	case BaselinePVWatts:
	case BaselineConstant:
		if c.PowerW < 0 || c.VoltageV < 0 || c.CurrentA < 0 {
			return fmt.Errorf("constant output must not be negative")
		}
	default:
		return fmt.Errorf("unknown model %s", c.Model)
	}
	return nil
}
