// Package baseline provides reference implementations of farm.Provider.
package baseline

import (
	"context"
	"fmt"

	"github.com/kilianp07/solaris/core/model"
)

const (
	stcIrradiance  = 1000.0
	stcTempC       = 25.0
	noctIrradiance = 800.0
	noctAmbientC   = 20.0
)

// PVWatts computes the DC output of a module with the PVWatts model. The
// cell temperature is derived from the NOCT rating.
type PVWatts struct{}

// NewPVWatts returns the provider.
func NewPVWatts() PVWatts { return PVWatts{} }

// CellTemp returns the cell temperature for an ambient temperature and a
// plane of array irradiance.
func CellTemp(module model.ModuleSpec, ambientC, irradiance float64) float64 {
	return ambientC + (module.NOCTC-noctAmbientC)/noctIrradiance*irradiance
}

// IdealOutput implements farm.Provider. Night or an output driven negative
// by temperature yields a zero operating point.
func (PVWatts) IdealOutput(ctx context.Context, module model.ModuleSpec, _ model.Location, env model.EnvironmentSample) (model.Output, error) {
	if err := ctx.Err(); err != nil {
		return model.Output{}, err
	}
	if module.PeakPowerW <= 0 || module.VmpV <= 0 {
		return model.Output{}, fmt.Errorf("module %q: peak power and vmp must be positive", module.Name)
	}
	g := env.IrradianceWm2
	if g <= 0 {
		return model.Output{}, nil
	}
	tc := CellTemp(module, env.AmbientTempC, g)
	p := module.PeakPowerW * g / stcIrradiance * (1 + module.GammaPdc*(tc-stcTempC))
	if p <= 0 {
		return model.Output{}, nil
	}
	return model.Output{PowerW: p, VoltageV: module.VmpV, CurrentA: p / module.VmpV}, nil
}

// Constant returns the same output whenever there is light.
type Constant struct {
	Output model.Output
}

// IdealOutput implements farm.Provider.
func (c Constant) IdealOutput(ctx context.Context, _ model.ModuleSpec, _ model.Location, env model.EnvironmentSample) (model.Output, error) {
	if err := ctx.Err(); err != nil {
		return model.Output{}, err
	}
	if env.IrradianceWm2 <= 0 {
		return model.Output{}, nil
	}
	return c.Output, nil
}
