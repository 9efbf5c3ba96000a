package events

import (
	"time"

	"github.com/kilianp07/solaris/core/model"
)

// StepCompleted is published after each successful step.
type StepCompleted struct {
	RunID    string
	Sample   model.FarmSample
	Duration time.Duration
}

// StatusChanged is published when a panel changes health status.
type StatusChanged struct {
	RunID   string
	FarmID  string
	PanelID string
	From    model.PanelStatus
	To      model.PanelStatus
	At      time.Time
}

// MaintenanceApplied is published for each maintenance action.
type MaintenanceApplied struct {
	RunID   string
	FarmID  string
	PanelID string
	Action  string
	At      time.Time
}
