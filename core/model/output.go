package model

import "math"

// Output is an electrical operating point of a module.
type Output struct {
	PowerW   float64 `json:"power_w"`
	VoltageV float64 `json:"voltage_v"`
	CurrentA float64 `json:"current_a"`
}

// Scale attenuates the operating point by f. Voltage is kept, power and
// current are multiplied. f is clamped to [0,1] so effects can only reduce
// output.
func (o Output) Scale(f float64) Output {
	if f < 0 || math.IsNaN(f) {
		f = 0
	}
	if f > 1 {
		f = 1
	}
	return Output{PowerW: o.PowerW * f, VoltageV: o.VoltageV, CurrentA: o.CurrentA * f}
}

// Zero is the output of a failed module.
func (o Output) Zero() Output { return Output{} }

// IsZero reports whether no power is produced.
func (o Output) IsZero() bool { return o.PowerW == 0 && o.CurrentA == 0 }

// Valid reports whether every field is a finite, non-negative number.
func (o Output) Valid() bool {
	for _, v := range []float64{o.PowerW, o.VoltageV, o.CurrentA} {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
