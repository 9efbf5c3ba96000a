package driver

import (
	"errors"
	"fmt"
	"time"

	"github.com/kilianp07/solaris/core/farm"
	"github.com/kilianp07/solaris/core/panel"
)

// ErrFeedOutOfSync is returned when a feed frame does not match the step
// timestamp.
var ErrFeedOutOfSync = errors.New("environment feed out of sync")

// ErrSeriesNotEmpty is returned when a new run would write over the samples
// of an earlier run.
var ErrSeriesNotEmpty = errors.New("series already holds samples")

// StepError reports the step at which a run halted.
type StepError struct {
	Step      int
	Timestamp time.Time
	// PanelID is set when the failure is attributable to one panel.
	PanelID string
	Err     error
}

func (e *StepError) Error() string {
	if e.PanelID != "" {
		return fmt.Sprintf("step %d (%s) panel %s: %v", e.Step, e.Timestamp.Format(time.RFC3339), e.PanelID, e.Err)
	}
	return fmt.Sprintf("step %d (%s): %v", e.Step, e.Timestamp.Format(time.RFC3339), e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

func stepError(step int, ts time.Time, err error) *StepError {
	se := &StepError{Step: step, Timestamp: ts, Err: err}
	var pe *farm.ProviderError
	var ie *panel.InvalidEnvironmentError
	switch {
	case errors.As(err, &pe):
		se.PanelID = pe.PanelID
	case errors.As(err, &ie):
		se.PanelID = ie.PanelID
	}
	return se
}
