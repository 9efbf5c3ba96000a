package series

import (
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/solaris/core/model"
)

// Summary describes a run from its samples.
type Summary struct {
	Steps int       `json:"steps"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`

	// Energies integrate power over time with the trapezoidal rule.
	IdealEnergyWh  float64 `json:"ideal_energy_wh"`
	ActualEnergyWh float64 `json:"actual_energy_wh"`

	MeanActualW float64 `json:"mean_actual_w"`
	PeakActualW float64 `json:"peak_actual_w"`

	MeanPerformanceRatio   float64 `json:"mean_performance_ratio"`
	StdDevPerformanceRatio float64 `json:"stddev_performance_ratio"`
	MinPerformanceRatio    float64 `json:"min_performance_ratio"`

	FinalOperational int `json:"final_operational"`
	FinalDegraded    int `json:"final_degraded"`
	FinalFailed      int `json:"final_failed"`
}

// Summarize computes the summary of samples ordered by timestamp.
func Summarize(samples []model.FarmSample) Summary {
	n := len(samples)
	if n == 0 {
		return Summary{}
	}
	hours := make([]float64, n)
	ideal := make([]float64, n)
	actual := make([]float64, n)
	pr := make([]float64, n)
	first := samples[0].Timestamp
	for i, s := range samples {
		hours[i] = s.Timestamp.Sub(first).Hours()
		ideal[i] = s.TotalIdealW
		actual[i] = s.TotalActualW
		pr[i] = s.PerformanceRatio()
	}
	last := samples[n-1]
	sum := Summary{
		Steps:                n,
		Start:                first,
		End:                  last.Timestamp,
		MeanActualW:          stat.Mean(actual, nil),
		PeakActualW:          floats.Max(actual),
		MeanPerformanceRatio: stat.Mean(pr, nil),
		MinPerformanceRatio:  floats.Min(pr),
		FinalOperational:     last.Operational,
		FinalDegraded:        last.Degraded,
		FinalFailed:          last.Failed,
	}
	if n > 1 {
		sum.IdealEnergyWh = integrate.Trapezoidal(hours, ideal)
		sum.ActualEnergyWh = integrate.Trapezoidal(hours, actual)
		sum.StdDevPerformanceRatio = stat.StdDev(pr, nil)
	}
	return sum
}
