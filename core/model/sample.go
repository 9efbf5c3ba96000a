package model

import "time"

// PanelSample is the result of one panel step.
type PanelSample struct {
	PanelID           string      `json:"panel_id"`
	Ideal             Output      `json:"ideal"`
	Actual            Output      `json:"actual"`
	Status            PanelStatus `json:"status"`
	SoilingLevel      float64     `json:"soiling_level"`
	DegradationFactor float64     `json:"degradation_factor"`
}

// FarmSample aggregates one farm step. Panels are listed in layout order.
type FarmSample struct {
	FarmID       string        `json:"farm_id"`
	Step         int           `json:"step"`
	Timestamp    time.Time     `json:"timestamp"`
	Panels       []PanelSample `json:"panels"`
	TotalIdealW  float64       `json:"total_ideal_w"`
	TotalActualW float64       `json:"total_actual_w"`
	Operational  int           `json:"operational"`
	Degraded     int           `json:"degraded"`
	Failed       int           `json:"failed"`
}

// Panel returns the sample of a panel by id.
func (s FarmSample) Panel(id string) (PanelSample, bool) {
	for _, p := range s.Panels {
		if p.PanelID == id {
			return p, true
		}
	}
	return PanelSample{}, false
}

// PerformanceRatio returns actual over ideal power, 1 when there is no light.
func (s FarmSample) PerformanceRatio() float64 {
	if s.TotalIdealW <= 0 {
		return 1
	}
	return s.TotalActualW / s.TotalIdealW
}
