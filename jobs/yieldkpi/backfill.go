package yieldkpi

import (
	"time"

	"github.com/kilianp07/solaris/core/metrics/yield"
	"github.com/kilianp07/solaris/core/model"
)

// Backfill integrates recorded samples into daily yield records. A sample
// covers the time elapsed since the previous sample of its farm, step for
// the first one.
func Backfill(store yield.Store, samples []model.FarmSample, step time.Duration) error {
	last := map[string]time.Time{}
	for _, s := range samples {
		dt := step
		if prev, ok := last[s.FarmID]; ok {
			dt = s.Timestamp.Sub(prev)
		}
		last[s.FarmID] = s.Timestamp
		if dt <= 0 {
			continue
		}
		if err := store.Add(yield.FromSample(s, dt)); err != nil {
			return err
		}
	}
	return nil
}
