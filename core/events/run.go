package events

import "time"

// CheckpointSaved is published when a snapshot has been persisted.
type CheckpointSaved struct {
	RunID    string
	Step     int
	Bytes    int
	Duration time.Duration
	At       time.Time
}

// RunFinished is published when the driver reaches the end of the run.
type RunFinished struct {
	RunID string
	Steps int
}

// RunFailed is published when the run halts on an error.
type RunFailed struct {
	RunID string
	Step  int
	Err   error
}
