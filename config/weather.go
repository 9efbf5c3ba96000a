package config

import (
	"fmt"

	"github.com/kilianp07/solaris/core/model"
)

// Weather sources.
const (
	WeatherCSV      = "csv"
	WeatherConstant = "constant"
)

// WeatherConfig selects the environment feed of a run.
type WeatherConfig struct {
	// Source is csv or constant. It defaults to csv when Path is set.
	Source string `json:"source"`
	// Path is a CSV file read by the weather feed.
	Path     string                  `json:"path"`
	Constant model.EnvironmentSample `json:"constant"`
}

// DefaultWeather is a clear sky at 25 °C.
func DefaultWeather() WeatherConfig {
	return WeatherConfig{Constant: model.EnvironmentSample{IrradianceWm2: 1000, AmbientTempC: 25}}
}

// SetDefaults picks the source from the path.
func (c *WeatherConfig) SetDefaults() {
	if c.Source != "" {
		return
	}
	c.Source = WeatherConstant
	if c.Path != "" {
		c.Source = WeatherCSV
	}
}

// Validate checks the source and the constant sample.
func (c WeatherConfig) Validate() error {
	switch c.Source {
	case WeatherCSV:
		if c.Path == "" {
			return fmt.Errorf("csv source requires a path")
		}
	case WeatherConstant, "":
	default:
		return fmt.Errorf("unknown source %s", c.Source)
	}
	e := c.Constant
	if e.IrradianceWm2 < 0 || e.WindSpeedMS < 0 || e.RainfallMM < 0 {
		return fmt.Errorf("constant sample must not be negative")
	}
	return nil
}
