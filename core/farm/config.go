package farm

import (
	"fmt"
	"math"
	"runtime"
	"time"

	"github.com/kilianp07/solaris/core/effects"
	"github.com/kilianp07/solaris/core/factory"
	"github.com/kilianp07/solaris/core/model"
	"github.com/kilianp07/solaris/core/panel"
)

const metersPerDegree = 111320.0

// Layout places Rows x Cols panels on a regular grid starting at Origin.
// Rows run north, columns run east.
type Layout struct {
	Rows     int            `json:"rows"`
	Cols     int            `json:"cols"`
	Origin   model.Location `json:"origin"`
	SpacingM float64        `json:"spacing_m"`
}

// Locations returns the grid positions in row-major order.
func (l Layout) Locations() []model.Location {
	if l.Rows <= 0 || l.Cols <= 0 {
		return nil
	}
	out := make([]model.Location, 0, l.Rows*l.Cols)
	cos := math.Cos(l.Origin.Latitude * math.Pi / 180)
	for r := 0; r < l.Rows; r++ {
		for c := 0; c < l.Cols; c++ {
			loc := l.Origin
			loc.Latitude += float64(r) * l.SpacingM / metersPerDegree
			if cos > 1e-9 {
				loc.Longitude += float64(c) * l.SpacingM / (metersPerDegree * cos)
			}
			out = append(out, loc)
		}
	}
	return out
}

// PanelDef declares a panel explicitly. An empty ID is generated.
type PanelDef struct {
	ID       string         `json:"id"`
	Location model.Location `json:"location"`
}

// PanelOverride sets some effect parameters of a single panel. Each section
// holds only the keys to change, named as in the farm-wide section; the other
// parameters are inherited.
//
//	overrides:
//	  AB000002:
//	    soiling: {rate_per_day: 0.5}
type PanelOverride struct {
	Soiling     map[string]any `json:"soiling,omitempty"`
	Degradation map[string]any `json:"degradation,omitempty"`
	Failure     map[string]any `json:"failure,omitempty"`
}

// Config describes a farm. It is read-only once the farm is built and is
// persisted with every checkpoint.
type Config struct {
	ID     string           `json:"id"`
	Seed   uint64           `json:"seed"`
	Start  time.Time        `json:"start"`
	Module model.ModuleSpec `json:"module"`

	// Panels takes precedence over Layout when set.
	Layout Layout     `json:"layout"`
	Panels []PanelDef `json:"panels"`

	Soiling     effects.SoilingConfig     `json:"soiling"`
	Degradation effects.DegradationConfig `json:"degradation"`
	Failure     effects.FailureConfig     `json:"failure"`
	Limits      panel.Limits              `json:"limits"`
	Replacement ReplacementPolicy         `json:"replacement"`

	// Workers bounds the number of panels processed concurrently.
	Workers   int                      `json:"workers"`
	Overrides map[string]PanelOverride `json:"overrides"`
}

// DefaultConfig returns a small farm using the default effect parameters.
func DefaultConfig() Config {
	eff := effects.DefaultConfig()
	return Config{
		ID:          "farm",
		Seed:        1,
		Module:      model.ModuleSpec{Name: "generic-400", PeakPowerW: 400, GammaPdc: -0.0035, NOCTC: 45, VmpV: 34},
		Layout:      Layout{Rows: 1, Cols: 10, SpacingM: 2},
		Soiling:     eff.Soiling,
		Degradation: eff.Degradation,
		Failure:     eff.Failure,
		Limits:      panel.DefaultLimits(),
	}
}

// SetDefaults applies fallback values for optional fields.
func (c *Config) SetDefaults() {
	if c.ID == "" {
		c.ID = "farm"
	}
	if c.Workers <= 0 {
		c.Workers = runtime.GOMAXPROCS(0)
	}
	c.Limits.SetDefaults()
	c.Soiling.SetDefaults()
	c.Degradation.SetDefaults()
	c.Failure.SetDefaults()
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Start.IsZero() {
		return fmt.Errorf("start is required")
	}
	if len(c.Panels) == 0 && (c.Layout.Rows <= 0 || c.Layout.Cols <= 0) {
		return fmt.Errorf("either panels or a layout with rows and cols is required")
	}
	if c.Layout.SpacingM < 0 {
		return fmt.Errorf("layout spacing must be positive")
	}
	if err := c.Effects().Validate(); err != nil {
		return err
	}
	if err := c.Limits.Validate(); err != nil {
		return err
	}
	if err := c.Replacement.Validate(); err != nil {
		return err
	}
	seen := make(map[string]bool, len(c.Panels))
	for _, p := range c.Panels {
		if p.ID == "" {
			continue
		}
		if seen[p.ID] {
			return fmt.Errorf("duplicate panel id %s", p.ID)
		}
		seen[p.ID] = true
	}
	for id := range c.Overrides {
		eff, err := c.EffectsFor(id)
		if err != nil {
			return err
		}
		if err := eff.Validate(); err != nil {
			return fmt.Errorf("override %s: %w", id, err)
		}
	}
	return nil
}

// Effects returns the farm-wide effect parameters.
func (c Config) Effects() effects.Config {
	return effects.Config{Soiling: c.Soiling, Degradation: c.Degradation, Failure: c.Failure}
}

// EffectsFor returns the effect parameters of one panel: the farm-wide ones
// with the panel's override keys applied on top.
func (c Config) EffectsFor(id string) (effects.Config, error) {
	cfg := c.Effects()
	o, ok := c.Overrides[id]
	if !ok {
		return cfg, nil
	}
	if err := factory.DecodeStrict(o.Soiling, &cfg.Soiling); err != nil {
		return cfg, fmt.Errorf("override %s: soiling: %w", id, err)
	}
	if err := factory.DecodeStrict(o.Degradation, &cfg.Degradation); err != nil {
		return cfg, fmt.Errorf("override %s: degradation: %w", id, err)
	}
	if _, ok := o.Failure["overrides"]; ok {
		// hazard windows are replaced as a whole
		cfg.Failure.Overrides = nil
	}
	if err := factory.DecodeStrict(o.Failure, &cfg.Failure); err != nil {
		return cfg, fmt.Errorf("override %s: failure: %w", id, err)
	}
	cfg.SetDefaults()
	return cfg, nil
}
