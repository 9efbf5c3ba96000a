package plugins

import (
	"github.com/kilianp07/solaris/config"
	"github.com/kilianp07/solaris/core/driver"
	"github.com/kilianp07/solaris/core/farm"
	"github.com/kilianp07/solaris/core/model"
	"github.com/kilianp07/solaris/infra/baseline"
	"github.com/kilianp07/solaris/infra/weather"
)

func init() {
	RegisterProvider(config.BaselinePVWatts, func(config.BaselineConfig) (farm.Provider, error) {
		return baseline.NewPVWatts(), nil
	})
	RegisterProvider(config.BaselineConstant, func(c config.BaselineConfig) (farm.Provider, error) {
		return baseline.Constant{Output: model.Output{PowerW: c.PowerW, VoltageV: c.VoltageV, CurrentA: c.CurrentA}}, nil
	})

	RegisterFeed(config.WeatherCSV, func(c config.WeatherConfig) (driver.EnvironmentFeed, error) {
		feed, err := weather.OpenCSV(c.Path)
		if err != nil {
			return nil, err
		}
		return feed, nil
	})
	RegisterFeed(config.WeatherConstant, func(c config.WeatherConfig) (driver.EnvironmentFeed, error) {
		return driver.ConstantEnvironment{Sample: c.Constant}, nil
	})
}
