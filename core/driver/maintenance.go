package driver

import (
	"fmt"
	"sort"
	"time"
)

// Action is a maintenance operation.
type Action string

const (
	ActionClean   Action = "clean"
	ActionRepair  Action = "repair"
	ActionReplace Action = "replace"
)

// MaintenanceEvent schedules an action. An empty PanelID targets every panel.
type MaintenanceEvent struct {
	At      time.Time `json:"at" yaml:"at"`
	PanelID string    `json:"panel_id" yaml:"panel_id"`
	Action  Action    `json:"action" yaml:"action"`
}

// MaintenancePlan is a list of maintenance events. Repairs and replacements
// are applied before the step whose timestamp is the first one not before At.
// A cleaning is applied during that step after the soiling growth, the same
// way as a cleaning flag carried by the environment.
type MaintenancePlan []MaintenanceEvent

// Validate checks every event.
func (p MaintenancePlan) Validate() error {
	for i, ev := range p {
		switch ev.Action {
		case ActionClean, ActionRepair, ActionReplace:
		default:
			return fmt.Errorf("maintenance %d: unknown action %q", i, ev.Action)
		}
		if ev.At.IsZero() {
			return fmt.Errorf("maintenance %d: time is required", i)
		}
	}
	return nil
}

// Due returns the events in (prev, ts], ordered by time.
func (p MaintenancePlan) Due(prev, ts time.Time) []MaintenanceEvent {
	var out []MaintenanceEvent
	for _, ev := range p {
		if ev.At.After(prev) && !ev.At.After(ts) {
			out = append(out, ev)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].At.Before(out[j].At) })
	return out
}
