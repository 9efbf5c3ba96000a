package driver

import (
	"fmt"
	"time"
)

// Config is the time axis of a run. Step k happens at Start + k*Step for
// k = 1..n with the last step not after End. The farm state at Start is the
// initial condition.
type Config struct {
	RunID string        `json:"run_id"`
	Start time.Time     `json:"start"`
	End   time.Time     `json:"end"`
	Step  time.Duration `json:"step"`
	// CheckpointEvery writes a checkpoint every N steps. 0 only writes the
	// final one.
	CheckpointEvery int `json:"checkpoint_every"`
}

// SetDefaults applies fallback values for optional fields.
func (c *Config) SetDefaults() {
	if c.Step == 0 {
		c.Step = time.Hour
	}
}

// Validate checks the time axis.
func (c Config) Validate() error {
	if c.Start.IsZero() || c.End.IsZero() {
		return fmt.Errorf("start and end are required")
	}
	if c.End.Before(c.Start) {
		return fmt.Errorf("end before start")
	}
	if c.Step <= 0 {
		return fmt.Errorf("step must be positive")
	}
	if c.CheckpointEvery < 0 {
		return fmt.Errorf("checkpoint_every must be positive")
	}
	return nil
}

// Steps returns the number of steps of the run.
func (c Config) Steps() int {
	if c.Step <= 0 || c.End.Before(c.Start) {
		return 0
	}
	return int(c.End.Sub(c.Start) / c.Step)
}

// At returns the timestamp of step k.
func (c Config) At(k int) time.Time { return c.Start.Add(time.Duration(k) * c.Step) }
