package farm

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrProvider is matched by every ProviderError.
	ErrProvider = errors.New("baseline provider error")
	// ErrUnknownPanel is returned when a panel id does not belong to the farm.
	ErrUnknownPanel = errors.New("unknown panel")
)

// ProviderError reports a failure of the ideal output provider for one panel.
type ProviderError struct {
	PanelID   string
	Timestamp time.Time
	Err       error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("ideal output for panel %s at %s: %v", e.PanelID, e.Timestamp.Format(time.RFC3339), e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrProvider) succeed.
func (e *ProviderError) Is(target error) bool { return target == ErrProvider }
