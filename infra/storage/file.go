package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/kilianp07/solaris/core/state"
)

const checkpointExt = ".json"

// FileCheckpointStore writes each checkpoint to <dir>/<run>/<step>.json.
// Files are written to a temporary name and renamed so a crash never leaves
// a truncated checkpoint behind.
type FileCheckpointStore struct {
	dir string
	// Keep prunes all but the last Keep checkpoints of a run when positive.
	Keep int
	mu   sync.Mutex
}

// NewFileCheckpointStore creates the directory if needed.
func NewFileCheckpointStore(dir string) (*FileCheckpointStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileCheckpointStore{dir: dir}, nil
}

// Put implements state.CheckpointStore.
func (s *FileCheckpointStore) Put(_ context.Context, runID string, step int, blob []byte) error {
	if runID == "" || strings.ContainsAny(runID, `/\`) || runID == "." || runID == ".." {
		return fmt.Errorf("invalid run id %q", runID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	runDir := filepath.Join(s.dir, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(runDir, ".checkpoint-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(blob); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), filepath.Join(runDir, stepFile(step))); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return s.prune(runDir)
}

// Latest implements state.CheckpointStore. Without a run id the most recently
// written checkpoint of any run is returned.
func (s *FileCheckpointStore) Latest(_ context.Context, runID string) (state.Checkpoint, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	runs := []string{runID}
	if runID == "" {
		entries, err := os.ReadDir(s.dir)
		if err != nil {
			return state.Checkpoint{}, err
		}
		runs = runs[:0]
		for _, e := range entries {
			if e.IsDir() {
				runs = append(runs, e.Name())
			}
		}
	}
	var (
		best  state.Checkpoint
		found bool
	)
	for _, run := range runs {
		steps, err := listSteps(filepath.Join(s.dir, run))
		if err != nil || len(steps) == 0 {
			continue
		}
		step := steps[len(steps)-1]
		path := filepath.Join(s.dir, run, stepFile(step))
		info, err := os.Stat(path)
		if err != nil {
			return state.Checkpoint{}, err
		}
		if found && !info.ModTime().After(best.SavedAt) {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return state.Checkpoint{}, err
		}
		best = state.Checkpoint{RunID: run, Step: step, SavedAt: info.ModTime().UTC(), Data: data}
		found = true
	}
	if !found {
		return state.Checkpoint{}, state.ErrNoCheckpoint
	}
	return best, nil
}

// Close implements state.CheckpointStore.
func (s *FileCheckpointStore) Close() error { return nil }

func (s *FileCheckpointStore) prune(runDir string) error {
	if s.Keep <= 0 {
		return nil
	}
	steps, err := listSteps(runDir)
	if err != nil {
		return err
	}
	for len(steps) > s.Keep {
		if err := os.Remove(filepath.Join(runDir, stepFile(steps[0]))); err != nil {
			return err
		}
		steps = steps[1:]
	}
	return nil
}

func stepFile(step int) string { return fmt.Sprintf("%010d%s", step, checkpointExt) }

func listSteps(dir string) ([]int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var steps []int
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, checkpointExt) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSuffix(name, checkpointExt))
		if err != nil {
			continue
		}
		steps = append(steps, n)
	}
	sort.Ints(steps)
	return steps, nil
}
