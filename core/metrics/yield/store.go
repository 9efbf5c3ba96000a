// Package yield aggregates farm production into daily energy records.
package yield

import "time"

// Store persists yield contributions keyed by farm and step. Adding a step
// twice keeps the last contribution, so a replayed step is not counted again.
type Store interface {
	Add(Record) error
	Query(farmID string, start, end time.Time) ([]Record, error)
}

// Day aligns t to the start of its day in UTC.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
