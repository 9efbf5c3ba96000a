package metrics

import "github.com/kilianp07/solaris/core/factory"

// Config defines settings for metrics sinks.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks"`
	// PrometheusAddr starts the /metrics endpoint when set (e.g. ":2112").
	PrometheusAddr string `json:"prometheus_addr"`
	// EmissionFactor is the grid intensity in gCO2/kWh used for the avoided
	// emissions of the yield sink.
	EmissionFactor float64 `json:"emission_factor"`
}
