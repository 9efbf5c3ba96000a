package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/kilianp07/solaris/core/rng"
)

// PanelStatus is the health of a panel.
type PanelStatus int

const (
	StatusOperational PanelStatus = iota
	StatusDegraded
	StatusFailed
)

// String returns a human-readable representation of the status.
func (s PanelStatus) String() string {
	switch s {
	case StatusOperational:
		return "operational"
	case StatusDegraded:
		return "degraded"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s PanelStatus) MarshalText() ([]byte, error) {
	if s < StatusOperational || s > StatusFailed {
		return nil, fmt.Errorf("invalid panel status %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *PanelStatus) UnmarshalText(b []byte) error {
	st, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = st
	return nil
}

// ParseStatus converts a status name.
func ParseStatus(v string) (PanelStatus, error) {
	switch strings.ToLower(v) {
	case "operational":
		return StatusOperational, nil
	case "degraded":
		return StatusDegraded, nil
	case "failed":
		return StatusFailed, nil
	default:
		return 0, fmt.Errorf("unknown panel status %q", v)
	}
}

// PanelState is the persistent record of one panel. It is a plain value:
// each panel owns its own copy, including its random stream.
type PanelState struct {
	ID       string   `json:"id"`
	Index    int      `json:"index"`
	Location Location `json:"location"`

	SoilingLevel      float64     `json:"soiling_level"`      // [0,1], fraction of irradiance blocked
	DegradationFactor float64     `json:"degradation_factor"` // (0,1], fraction of capacity retained
	Status            PanelStatus `json:"status"`

	LastCleanedAt  time.Time `json:"last_cleaned_at"`
	CommissionedAt time.Time `json:"commissioned_at"`
	LastStepAt     time.Time `json:"last_step_at"`
	FailedAt       time.Time `json:"failed_at,omitempty"`
	// ReplaceAt is the scheduled replacement of a failed panel, zero when
	// none is due.
	ReplaceAt time.Time `json:"replace_at,omitempty"`
	// Generation is incremented each time the panel is replaced.
	Generation int `json:"generation"`

	RNG        rng.Stream `json:"rng"`
	LastOutput Output     `json:"last_output"`
}

// NewPanelState returns the default state of a panel entering service at t.
func NewPanelState(id string, index int, loc Location, t time.Time, seed uint64) PanelState {
	return PanelState{
		ID:                id,
		Index:             index,
		Location:          loc,
		DegradationFactor: 1,
		Status:            StatusOperational,
		LastCleanedAt:     t,
		CommissionedAt:    t,
		LastStepAt:        t,
		RNG:               rng.New(seed),
	}
}

// Age returns the time in service at t.
func (p PanelState) Age(t time.Time) time.Duration {
	if t.Before(p.CommissionedAt) {
		return 0
	}
	return t.Sub(p.CommissionedAt)
}

// Validate checks the invariants of a restored state record.
func (p PanelState) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("panel id is required")
	}
	if p.SoilingLevel < 0 || p.SoilingLevel > 1 {
		return fmt.Errorf("panel %s: soiling level %v out of [0,1]", p.ID, p.SoilingLevel)
	}
	if p.DegradationFactor <= 0 || p.DegradationFactor > 1 {
		return fmt.Errorf("panel %s: degradation factor %v out of (0,1]", p.ID, p.DegradationFactor)
	}
	if p.Status < StatusOperational || p.Status > StatusFailed {
		return fmt.Errorf("panel %s: invalid status %d", p.ID, int(p.Status))
	}
	if p.Status == StatusFailed && !p.LastOutput.IsZero() {
		return fmt.Errorf("panel %s: failed panel with non-zero output", p.ID)
	}
	if p.Status != StatusFailed && !p.ReplaceAt.IsZero() {
		return fmt.Errorf("panel %s: replacement scheduled for a %s panel", p.ID, p.Status)
	}
	return nil
}
