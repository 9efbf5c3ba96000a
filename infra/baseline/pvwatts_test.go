package baseline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/solaris/core/model"
)

var module = model.ModuleSpec{Name: "m", PeakPowerW: 400, GammaPdc: -0.004, NOCTC: 45, VmpV: 40}

func TestPVWatts(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name   string
		env    model.EnvironmentSample
		powerW float64
	}{
		{"night", model.EnvironmentSample{IrradianceWm2: 0, AmbientTempC: 10}, 0},
		// Tcell = 0 + 25/800*1000 = 31.25 -> 400*(1-0.004*6.25) = 390
		{"stc irradiance", model.EnvironmentSample{IrradianceWm2: 1000, AmbientTempC: 0}, 390},
		// Tcell = 5 + 25/800*800 = 30 -> 400*0.8*(1-0.02) = 313.6
		{"noct irradiance", model.EnvironmentSample{IrradianceWm2: 800, AmbientTempC: 5}, 313.6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := NewPVWatts().IdealOutput(ctx, module, model.Location{}, tt.env)
			require.NoError(t, err)
			assert.InDelta(t, tt.powerW, out.PowerW, 1e-9)
			if tt.powerW > 0 {
				assert.Equal(t, 40.0, out.VoltageV)
				assert.InDelta(t, tt.powerW/40, out.CurrentA, 1e-9)
			} else {
				assert.True(t, out.IsZero())
			}
		})
	}
}

func TestPVWattsInvalidModule(t *testing.T) {
	_, err := NewPVWatts().IdealOutput(context.Background(), model.ModuleSpec{}, model.Location{}, model.EnvironmentSample{IrradianceWm2: 500})
	assert.Error(t, err)
}

func TestCellTemp(t *testing.T) {
	assert.InDelta(t, 45.0, CellTemp(module, 20, 800), 1e-9)
}

func TestConstant(t *testing.T) {
	c := Constant{Output: model.Output{PowerW: 100, VoltageV: 10, CurrentA: 10}}
	out, err := c.IdealOutput(context.Background(), module, model.Location{}, model.EnvironmentSample{IrradianceWm2: 1})
	require.NoError(t, err)
	assert.Equal(t, 100.0, out.PowerW)
	out, err = c.IdealOutput(context.Background(), module, model.Location{}, model.EnvironmentSample{})
	require.NoError(t, err)
	assert.True(t, out.IsZero())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = c.IdealOutput(ctx, module, model.Location{}, model.EnvironmentSample{IrradianceWm2: 1})
	assert.ErrorIs(t, err, context.Canceled)
}
