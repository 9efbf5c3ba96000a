package farm

import (
	"fmt"
	"math"
	"time"

	"github.com/kilianp07/solaris/core/model"
	"github.com/kilianp07/solaris/core/rng"
)

// ReplacementPolicy schedules the replacement of failed panels by the
// maintenance crew.
type ReplacementPolicy struct {
	// Days is the usual delay between a failure and the replacement. Zero
	// leaves failed panels in place until a planned event.
	Days float64 `json:"days"`
}

// Enabled reports whether failed panels are replaced automatically.
func (r ReplacementPolicy) Enabled() bool { return r.Days > 0 }

// Validate checks the policy.
func (r ReplacementPolicy) Validate() error {
	if r.Days < 0 || math.IsNaN(r.Days) || math.IsInf(r.Days, 0) {
		return fmt.Errorf("replacement days must be a positive number, got %v", r.Days)
	}
	return nil
}

// Delay draws the delay of one replacement from the panel stream. The crew
// comes a day early 4% of the time, a day late 20% and two days late 15%.
func (r ReplacementPolicy) Delay(s *rng.Stream) time.Duration {
	days := r.Days
	switch u := s.Float64(); {
	case u < 0.04:
		days = math.Max(days-1, 0)
	case u >= 0.85:
		days += 2
	case u >= 0.65:
		days++
	}
	return time.Duration(days * float64(24*time.Hour))
}

// schedule sets the replacement date of a panel that has just failed. It
// draws at most once per failure.
func (r ReplacementPolicy) schedule(st model.PanelState, ts time.Time) model.PanelState {
	if !r.Enabled() || st.Status != model.StatusFailed || !st.ReplaceAt.IsZero() {
		return st
	}
	from := st.FailedAt
	if from.IsZero() {
		from = ts
	}
	st.ReplaceAt = from.Add(r.Delay(&st.RNG))
	return st
}

// DueReplacements returns, in layout order, the panels whose scheduled
// replacement is not after ts.
func (f *Farm) DueReplacements(ts time.Time) []model.PanelState {
	var out []model.PanelState
	for _, p := range f.panels {
		st := p.State()
		if !st.ReplaceAt.IsZero() && !st.ReplaceAt.After(ts) {
			out = append(out, st)
		}
	}
	return out
}
