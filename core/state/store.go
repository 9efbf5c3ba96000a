package state

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNoCheckpoint is returned by Latest when nothing was saved.
var ErrNoCheckpoint = errors.New("no checkpoint")

// Checkpoint is one encoded snapshot.
type Checkpoint struct {
	RunID   string
	Step    int
	SavedAt time.Time
	Data    []byte
}

// CheckpointStore persists encoded snapshots.
type CheckpointStore interface {
	Put(ctx context.Context, runID string, step int, blob []byte) error
	// Latest returns the most recent checkpoint of runID, or of any run when
	// runID is empty.
	Latest(ctx context.Context, runID string) (Checkpoint, error)
	Close() error
}

// MemoryStore keeps checkpoints in memory.
type MemoryStore struct {
	mu    sync.Mutex
	items []Checkpoint
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

// Put implements CheckpointStore.
func (m *MemoryStore) Put(_ context.Context, runID string, step int, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, Checkpoint{RunID: runID, Step: step, SavedAt: time.Now().UTC(), Data: append([]byte(nil), blob...)})
	return nil
}

// Latest implements CheckpointStore.
func (m *MemoryStore) Latest(_ context.Context, runID string) (Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.items) - 1; i >= 0; i-- {
		if runID == "" || m.items[i].RunID == runID {
			return m.items[i], nil
		}
	}
	return Checkpoint{}, ErrNoCheckpoint
}

// Len returns the number of checkpoints stored.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

// Close implements CheckpointStore.
func (m *MemoryStore) Close() error { return nil }
