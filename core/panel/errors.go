package panel

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidEnvironment is matched by every InvalidEnvironmentError.
var ErrInvalidEnvironment = errors.New("invalid environment")

// InvalidEnvironmentError reports an input rejected before the panel state
// was touched.
type InvalidEnvironmentError struct {
	PanelID   string
	Timestamp time.Time
	Field     string
	Value     any
}

func (e *InvalidEnvironmentError) Error() string {
	return fmt.Sprintf("panel %s at %s: invalid %s: %v", e.PanelID, e.Timestamp.Format(time.RFC3339), e.Field, e.Value)
}

// Is makes errors.Is(err, ErrInvalidEnvironment) succeed.
func (e *InvalidEnvironmentError) Is(target error) bool { return target == ErrInvalidEnvironment }
