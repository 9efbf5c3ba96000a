// Package state persists and restores the full state of a simulation run.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kilianp07/solaris/core/farm"
	"github.com/kilianp07/solaris/core/model"
)

// SchemaVersion is the version written by Save.
const SchemaVersion = 1

// ErrStateLoad is matched by every StateLoadError.
var ErrStateLoad = errors.New("state load failed")

// StateLoadError reports a snapshot that cannot be restored.
type StateLoadError struct {
	Reason string
	Err    error
}

func (e *StateLoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("load state: %s: %v", e.Reason, e.Err)
	}
	return "load state: " + e.Reason
}

func (e *StateLoadError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrStateLoad) succeed.
func (e *StateLoadError) Is(target error) bool { return target == ErrStateLoad }

// Snapshot is everything needed to continue a run: the farm configuration,
// the step cursor and every panel state, random streams included.
type Snapshot struct {
	SchemaVersion int                `json:"schema_version"`
	RunID         string             `json:"run_id"`
	FarmID        string             `json:"farm_id"`
	Config        farm.Config        `json:"config"`
	Step          int                `json:"step"`
	Cursor        time.Time          `json:"cursor"`
	Panels        []model.PanelState `json:"panels"`
	SavedAt       time.Time          `json:"saved_at"`
}

// Capture builds a snapshot of f after step, taken at cursor.
func Capture(runID string, f *farm.Farm, step int, cursor time.Time) Snapshot {
	return Snapshot{
		SchemaVersion: SchemaVersion,
		RunID:         runID,
		FarmID:        f.ID(),
		Config:        f.Config(),
		Step:          step,
		Cursor:        cursor,
		Panels:        f.Snapshot(),
		SavedAt:       time.Now().UTC(),
	}
}

// Save encodes a snapshot.
func Save(s Snapshot) ([]byte, error) {
	if s.SchemaVersion == 0 {
		s.SchemaVersion = SchemaVersion
	}
	b, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("save state: %w", err)
	}
	return b, nil
}

// Load decodes and validates a snapshot. It never returns a partially valid
// snapshot.
func Load(data []byte) (Snapshot, error) {
	var head struct {
		SchemaVersion int `json:"schema_version"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return Snapshot{}, &StateLoadError{Reason: "corrupt payload", Err: err}
	}
	if head.SchemaVersion != SchemaVersion {
		return Snapshot{}, &StateLoadError{Reason: fmt.Sprintf("unsupported schema version %d", head.SchemaVersion)}
	}
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return Snapshot{}, &StateLoadError{Reason: "corrupt payload", Err: err}
	}
	if err := s.Validate(); err != nil {
		return Snapshot{}, &StateLoadError{Reason: "invalid snapshot", Err: err}
	}
	return s, nil
}

// Validate checks the structural invariants of a snapshot.
func (s Snapshot) Validate() error {
	if s.Step < 0 {
		return fmt.Errorf("negative step %d", s.Step)
	}
	if len(s.Panels) == 0 {
		return fmt.Errorf("no panels")
	}
	seen := make(map[string]bool, len(s.Panels))
	for _, p := range s.Panels {
		if seen[p.ID] {
			return fmt.Errorf("duplicate panel id %s", p.ID)
		}
		seen[p.ID] = true
		if err := p.Validate(); err != nil {
			return err
		}
		if p.LastStepAt.After(s.Cursor) {
			return fmt.Errorf("panel %s stepped after the cursor", p.ID)
		}
	}
	return nil
}
