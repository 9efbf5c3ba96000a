// Package series stores the per-step farm samples produced by a run.
package series

import (
	"context"
	"sync"
	"time"

	"github.com/kilianp07/solaris/core/model"
)

// Query selects samples. Zero fields do not filter.
type Query struct {
	FarmID string
	// PanelID keeps only the sample of that panel in each farm sample.
	PanelID string
	Start   time.Time
	End     time.Time
	// Limit caps the number of returned samples.
	Limit int
}

// Match reports whether a farm sample is selected by the time and farm
// filters.
func (q Query) Match(s model.FarmSample) bool {
	if q.FarmID != "" && s.FarmID != q.FarmID {
		return false
	}
	if !q.Start.IsZero() && s.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && s.Timestamp.After(q.End) {
		return false
	}
	return true
}

// Project applies the panel filter. It returns false when the panel is not
// part of the sample.
func (q Query) Project(s model.FarmSample) (model.FarmSample, bool) {
	if q.PanelID == "" {
		return s, true
	}
	p, ok := s.Panel(q.PanelID)
	if !ok {
		return s, false
	}
	s.Panels = []model.PanelSample{p}
	return s, true
}

// Apply filters, projects and limits a list of samples.
func (q Query) Apply(in []model.FarmSample) []model.FarmSample {
	var out []model.FarmSample
	for _, s := range in {
		if !q.Match(s) {
			continue
		}
		s, ok := q.Project(s)
		if !ok {
			continue
		}
		out = append(out, s)
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
	}
	return out
}

// Store persists farm samples in step order.
type Store interface {
	Append(ctx context.Context, s model.FarmSample) error
	Query(ctx context.Context, q Query) ([]model.FarmSample, error)
	Close() error
}

// Truncater is implemented by stores able to drop the samples recorded after
// a step. A resumed run uses it to discard the steps it is about to replay.
type Truncater interface {
	TruncateAfter(ctx context.Context, farmID string, step int) error
}

// MemoryStore keeps samples in memory.
type MemoryStore struct {
	mu      sync.RWMutex
	samples []model.FarmSample
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

// Append implements Store.
func (m *MemoryStore) Append(_ context.Context, s model.FarmSample) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s.Panels = append([]model.PanelSample(nil), s.Panels...)
	m.samples = append(m.samples, s)
	return nil
}

// Query implements Store.
func (m *MemoryStore) Query(_ context.Context, q Query) ([]model.FarmSample, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return q.Apply(m.samples), nil
}

// TruncateAfter implements Truncater.
func (m *MemoryStore) TruncateAfter(_ context.Context, farmID string, step int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.samples[:0]
	for _, s := range m.samples {
		if s.FarmID == farmID && s.Step > step {
			continue
		}
		kept = append(kept, s)
	}
	m.samples = kept
	return nil
}

// Len returns the number of stored samples.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.samples)
}

// Close implements Store.
func (m *MemoryStore) Close() error { return nil }
