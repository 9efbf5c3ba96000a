package driver

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/kilianp07/solaris/core/farm"
	"github.com/kilianp07/solaris/core/model"
)

// Frame is the environment of one step. A zero Timestamp means "the current
// step". PerPanel entries take precedence over Shared.
type Frame struct {
	Timestamp time.Time
	Shared    *model.EnvironmentSample
	PerPanel  map[string]model.EnvironmentSample
}

// Environment converts the frame for the farm.
func (f Frame) Environment() farm.Environment {
	env := farm.Environment{PerPanel: f.PerPanel}
	if f.Shared != nil {
		env.Shared = *f.Shared
	}
	return env
}

// EnvironmentFeed supplies one frame per step, in time order. Next returns
// io.EOF when the feed is exhausted.
type EnvironmentFeed interface {
	Next(ctx context.Context) (Frame, error)
	// Seek positions the feed on the first frame after t.
	Seek(t time.Time) error
}

// SliceFeed serves frames from memory.
type SliceFeed struct {
	mu     sync.Mutex
	frames []Frame
	pos    int
}

// NewSliceFeed returns a feed over frames.
func NewSliceFeed(frames ...Frame) *SliceFeed { return &SliceFeed{frames: frames} }

// Next implements EnvironmentFeed.
func (s *SliceFeed) Next(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos >= len(s.frames) {
		return Frame{}, io.EOF
	}
	f := s.frames[s.pos]
	s.pos++
	return f, nil
}

// Seek implements EnvironmentFeed. Frames without timestamp are never
// skipped.
func (s *SliceFeed) Seek(t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pos = 0
	for s.pos < len(s.frames) {
		ts := s.frames[s.pos].Timestamp
		if ts.IsZero() || ts.After(t) {
			break
		}
		s.pos++
	}
	return nil
}

// ConstantEnvironment returns the same sample at every step.
type ConstantEnvironment struct {
	Sample model.EnvironmentSample
}

// Next implements EnvironmentFeed.
func (c ConstantEnvironment) Next(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	s := c.Sample
	return Frame{Shared: &s}, nil
}

// Seek implements EnvironmentFeed.
func (ConstantEnvironment) Seek(time.Time) error { return nil }
