package plugins

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/solaris/config"
	"github.com/kilianp07/solaris/core/model"
)

func TestBuiltins(t *testing.T) {
	assert.Equal(t, []string{"constant", "pvwatts"}, Providers())
	assert.Equal(t, []string{"constant", "csv"}, Feeds())
}

func TestNewProvider(t *testing.T) {
	p, err := NewProvider(config.BaselineConfig{Model: config.BaselineConstant, PowerW: 100, VoltageV: 25, CurrentA: 4})
	require.NoError(t, err)
	out, err := p.IdealOutput(context.Background(), model.ModuleSpec{}, model.Location{}, model.EnvironmentSample{IrradianceWm2: 500})
	require.NoError(t, err)
	assert.Equal(t, 100.0, out.PowerW)

	_, err = NewProvider(config.BaselineConfig{Model: "sandia"})
	assert.Error(t, err)
}

func TestNewFeed(t *testing.T) {
	f, err := NewFeed(config.DefaultWeather())
	assert.Error(t, err, "source is set by SetDefaults")
	assert.Nil(t, f)

	w := config.DefaultWeather()
	w.SetDefaults()
	f, err = NewFeed(w)
	require.NoError(t, err)
	frame, err := f.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1000.0, frame.Shared.IrradianceWm2)

	path := filepath.Join(t.TempDir(), "weather.csv")
	require.NoError(t, os.WriteFile(path, []byte("timestamp,irradiance,temp_air\n2024-01-01T01:00:00Z,800,20\n"), 0o600))
	f, err = NewFeed(config.WeatherConfig{Source: config.WeatherCSV, Path: path})
	require.NoError(t, err)
	frame, err = f.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 800.0, frame.Shared.IrradianceWm2)

	_, err = NewFeed(config.WeatherConfig{Source: "satellite"})
	assert.Error(t, err)
}
