// Package events defines the simulation events emitted on the event bus.
//
// Available event types:
//   - StepCompleted: a farm step was computed and stored
//   - StatusChanged: a panel moved to another health status
//   - MaintenanceApplied: a cleaning, repair or replacement was applied
//   - CheckpointSaved: a snapshot was persisted
//   - RunFinished / RunFailed: end of a run
package events
