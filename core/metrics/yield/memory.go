package yield

import (
	"sort"
	"sync"
	"time"
)

// MemoryStore stores step contributions in memory.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string]map[int]Record
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string]map[int]Record{}}
}

// Add stores the contribution of r.Step, replacing an earlier one.
func (s *MemoryStore) Add(r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data[r.FarmID] == nil {
		s.data[r.FarmID] = map[int]Record{}
	}
	s.data[r.FarmID][r.Step] = r
	return nil
}

// Query returns the days between start and end inclusive, in date order.
func (s *MemoryStore) Query(farmID string, start, end time.Time) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	start = Day(start)
	end = Day(end)
	days := map[time.Time]*Record{}
	for _, r := range s.data[farmID] {
		d := Day(r.Date)
		if d.Before(start) || d.After(end) {
			continue
		}
		rec := days[d]
		if rec == nil {
			rec = &Record{FarmID: farmID, Date: d}
			days[d] = rec
		}
		rec.ActualKWh += r.ActualKWh
		rec.IdealKWh += r.IdealKWh
	}
	res := make([]Record, 0, len(days))
	for _, r := range days {
		res = append(res, *r)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Date.Before(res[j].Date) })
	return res, nil
}
