package yield

import (
	"time"

	"github.com/kilianp07/solaris/core/model"
)

// Record is the energy produced by a farm. Stores take the contribution of
// a single step and return it aggregated per day, with Step left zero.
type Record struct {
	FarmID    string
	Step      int
	Date      time.Time
	ActualKWh float64
	IdealKWh  float64
}

// CO2Avoided returns the grams of CO2 avoided using the emission factor in
// gCO2/kWh.
func (r Record) CO2Avoided(factor float64) float64 {
	return r.ActualKWh * factor
}

// LostKWh returns the energy lost to soiling, degradation and failures.
func (r Record) LostKWh() float64 {
	if r.IdealKWh < r.ActualKWh {
		return 0
	}
	return r.IdealKWh - r.ActualKWh
}

// PerformanceRatio returns actual over ideal energy, 1 for a day without
// production.
func (r Record) PerformanceRatio() float64 {
	if r.IdealKWh == 0 {
		return 1
	}
	return r.ActualKWh / r.IdealKWh
}

// FromSample converts the power of a farm sample held for dt into energy.
func FromSample(s model.FarmSample, dt time.Duration) Record {
	h := dt.Hours()
	return Record{
		FarmID:    s.FarmID,
		Step:      s.Step,
		Date:      s.Timestamp,
		ActualKWh: s.TotalActualW * h / 1000,
		IdealKWh:  s.TotalIdealW * h / 1000,
	}
}
