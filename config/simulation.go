package config

import (
	"github.com/kilianp07/solaris/core/driver"
)

// SimulationConfig is the time axis of a run and its maintenance plan.
type SimulationConfig struct {
	driver.Config `json:",squash"`
	Maintenance   driver.MaintenancePlan `json:"maintenance"`
}

// Validate checks the time axis and the maintenance plan.
func (c SimulationConfig) Validate() error {
	if err := c.Config.Validate(); err != nil {
		return err
	}
	return c.Maintenance.Validate()
}
