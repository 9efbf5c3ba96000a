// Package scenarios runs end-to-end simulations described in YAML files and
// checks their output.
package scenarios

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/solaris/core/driver"
	"github.com/kilianp07/solaris/core/effects"
	"github.com/kilianp07/solaris/core/farm"
	"github.com/kilianp07/solaris/core/model"
)

// Epoch is the start of every scenario run.
var Epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

type SoilingDef struct {
	MaxLevel   float64 `yaml:"max_level"`
	RatePerDay float64 `yaml:"rate_per_day"`
	Curve      string  `yaml:"curve"`
}

type MaintenanceDef struct {
	Step   int    `yaml:"step"`
	Action string `yaml:"action"`
	// Panel is the index of the target panel in layout order. Negative
	// targets every panel.
	Panel int `yaml:"panel"`
}

type Expected struct {
	// ActualW maps a step to the expected farm output.
	ActualW   map[int]float64 `yaml:"actual_w"`
	Tolerance float64         `yaml:"tolerance"`
	// ZeroFrom expects a zero output from that step to the end.
	ZeroFrom    int  `yaml:"zero_from"`
	Failed      int  `yaml:"failed"`
	Transitions int  `yaml:"transitions"`
	Maintenance int  `yaml:"maintenance"`
	Monotone    bool `yaml:"monotone"`
}

type Scenario struct {
	Name        string           `yaml:"name"`
	Description string           `yaml:"description,omitempty"`
	Panels      int              `yaml:"panels"`
	Seed        uint64           `yaml:"seed"`
	Steps       int              `yaml:"steps"`
	StepHours   float64          `yaml:"step_hours"`
	IdealW      float64          `yaml:"ideal_w"`
	Soiling     SoilingDef       `yaml:"soiling"`
	FailAtStep  int              `yaml:"fail_at_step,omitempty"`
	CleanSteps  []int            `yaml:"clean_steps,omitempty"`
	Maintenance []MaintenanceDef `yaml:"maintenance,omitempty"`
	// InterruptAfter stops the run after that many steps and resumes it
	// from the checkpoint store.
	InterruptAfter int      `yaml:"interrupt_after,omitempty"`
	Expected       Expected `yaml:"expected"`
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	sc.setDefaults()
	if err := sc.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &sc, nil
}

func (sc *Scenario) setDefaults() {
	if sc.Panels == 0 {
		sc.Panels = 1
	}
	if sc.StepHours == 0 {
		sc.StepHours = 24
	}
	if sc.Soiling.Curve == "" {
		sc.Soiling.Curve = effects.CurveLinear
	}
}

// Validate checks the scenario parameters.
func (sc *Scenario) Validate() error {
	if sc.Name == "" {
		return fmt.Errorf("name is required")
	}
	if sc.Steps <= 0 || sc.IdealW <= 0 {
		return fmt.Errorf("steps and ideal_w must be positive")
	}
	if sc.InterruptAfter < 0 || sc.InterruptAfter >= sc.Steps {
		return fmt.Errorf("interrupt_after must be within [0,%d)", sc.Steps)
	}
	for i, m := range sc.Maintenance {
		if m.Step < 1 || m.Step > sc.Steps || m.Panel >= sc.Panels {
			return fmt.Errorf("maintenance %d out of range", i)
		}
	}
	return nil
}

// Step returns the duration of one step.
func (sc *Scenario) Step() time.Duration {
	return time.Duration(sc.StepHours * float64(time.Hour))
}

// At returns the timestamp of step k.
func (sc *Scenario) At(k int) time.Time { return Epoch.Add(time.Duration(k) * sc.Step()) }

// DriverConfig returns the time axis of the scenario.
func (sc *Scenario) DriverConfig() driver.Config {
	return driver.Config{
		RunID:           sc.Name,
		Start:           Epoch,
		End:             sc.At(sc.Steps),
		Step:            sc.Step(),
		CheckpointEvery: 1,
	}
}

// FarmConfig builds a farm whose only sources of loss are the soiling and
// failure settings of the scenario.
func (sc *Scenario) FarmConfig() farm.Config {
	cfg := farm.Config{
		ID:     sc.Name,
		Seed:   sc.Seed,
		Start:  Epoch,
		Module: model.ModuleSpec{Name: "scenario", PeakPowerW: sc.IdealW, VmpV: 25},
		Layout: farm.Layout{Rows: 1, Cols: sc.Panels, SpacingM: 2},
		Soiling: effects.SoilingConfig{
			MaxLevel:   sc.Soiling.MaxLevel,
			RatePerDay: sc.Soiling.RatePerDay,
			Curve:      sc.Soiling.Curve,
		},
		Degradation: effects.DegradationConfig{DegradedThreshold: 0.8},
		Workers:     2,
	}
	if sc.FailAtStep > 0 {
		at := sc.At(sc.FailAtStep)
		cfg.Failure.Overrides = []effects.HazardOverride{{From: at, To: at, Probability: 1}}
	}
	return cfg
}

// Frames returns a clear-sky feed with the configured cleaning steps.
func (sc *Scenario) Frames() []driver.Frame {
	clean := make(map[int]bool, len(sc.CleanSteps))
	for _, k := range sc.CleanSteps {
		clean[k] = true
	}
	frames := make([]driver.Frame, 0, sc.Steps)
	for k := 1; k <= sc.Steps; k++ {
		s := model.EnvironmentSample{IrradianceWm2: 1000, AmbientTempC: 25, Clean: clean[k]}
		frames = append(frames, driver.Frame{Timestamp: sc.At(k), Shared: &s})
	}
	return frames
}

// Plan converts the maintenance definitions for a farm.
func (sc *Scenario) Plan(f *farm.Farm) driver.MaintenancePlan {
	panels := f.Snapshot()
	plan := make(driver.MaintenancePlan, 0, len(sc.Maintenance))
	for _, m := range sc.Maintenance {
		ev := driver.MaintenanceEvent{At: sc.At(m.Step), Action: driver.Action(m.Action)}
		if m.Panel >= 0 {
			ev.PanelID = panels[m.Panel].ID
		}
		plan = append(plan, ev)
	}
	return plan
}
