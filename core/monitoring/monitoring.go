// Package monitoring holds the process-wide error reporter used by the
// simulator. The default reporter drops everything.
package monitoring

import (
	"strconv"
	"sync"
	"time"
)

// Monitor reports errors and panics to an external service.
type Monitor interface {
	CaptureException(err error, tags map[string]string)
	Recover()
	Flush(timeout time.Duration)
}

type NopMonitor struct{}

func (NopMonitor) CaptureException(error, map[string]string) {}
func (NopMonitor) Recover()                                  {}
func (NopMonitor) Flush(time.Duration)                       {}

var (
	mu      sync.RWMutex
	current Monitor = NopMonitor{}
)

// Init installs m as the global monitor and returns the previous one. A nil
// m restores the NopMonitor.
func Init(m Monitor) Monitor {
	if m == nil {
		m = NopMonitor{}
	}
	mu.Lock()
	defer mu.Unlock()
	prev := current
	current = m
	return prev
}

func get() Monitor {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// CaptureException reports err with tags. Nil errors are ignored.
func CaptureException(err error, tags map[string]string) {
	if err == nil {
		return
	}
	get().CaptureException(err, tags)
}

// Recover reports a panic of the calling goroutine. Defer it directly.
func Recover() { get().Recover() }

// Flush waits up to d for buffered reports.
func Flush(d time.Duration) { get().Flush(d) }

// StepTags describes where in a run an error happened. Empty values are
// left out.
func StepTags(module, runID string, step int, panelID string) map[string]string {
	tags := map[string]string{"module": module}
	if runID != "" {
		tags["run_id"] = runID
	}
	if step >= 0 {
		tags["step"] = strconv.Itoa(step)
	}
	if panelID != "" {
		tags["panel_id"] = panelID
	}
	return tags
}
