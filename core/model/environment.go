package model

import "time"

// Location is a geocoordinate of a panel.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	AltitudeM float64 `json:"altitude_m"`
	TimeZone  string  `json:"time_zone,omitempty"`
}

// EnvironmentSample holds the conditions seen by a panel at one instant.
type EnvironmentSample struct {
	Timestamp     time.Time `json:"timestamp"`
	IrradianceWm2 float64   `json:"irradiance_wm2"`
	AmbientTempC  float64   `json:"ambient_temp_c"`
	WindSpeedMS   float64   `json:"wind_speed_ms"`
	// RainfallMM is the rain accumulated since the previous step.
	RainfallMM float64 `json:"rainfall_mm"`
	// Clean requests a manual cleaning at this step.
	Clean bool `json:"clean,omitempty"`
}

// At returns a copy of the sample stamped with t.
func (e EnvironmentSample) At(t time.Time) EnvironmentSample {
	e.Timestamp = t
	return e
}

// ModuleSpec describes the nameplate of the modules installed on a farm. It
// is passed through to the baseline provider untouched.
type ModuleSpec struct {
	Name       string  `json:"name"`
	PeakPowerW float64 `json:"peak_power_w"`
	// GammaPdc is the power temperature coefficient in 1/°C (e.g. -0.004).
	GammaPdc float64 `json:"gamma_pdc"`
	NOCTC    float64 `json:"noct_c"`
	VmpV     float64 `json:"vmp_v"`
}
