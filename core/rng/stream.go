// Package rng provides the per-panel random streams used by stochastic
// effects. A Stream is a plain value: copying a panel state copies its
// generator, and persisting the state persists the generator cursor.
package rng

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
)

// streamTag separates the PCG increment from the seed so that two panels
// never share a sequence even when their seeds collide on one half.
const streamTag uint64 = 0x9e3779b97f4a7c15

// Stream is a seeded PCG source owned by exactly one panel.
type Stream struct {
	// Seed is the value the stream was created from.
	Seed uint64
	// Draws counts the 64-bit words consumed so far.
	Draws uint64

	pcg rand.PCG
}

// New returns a stream positioned at the beginning of the sequence for seed.
func New(seed uint64) Stream {
	s := Stream{Seed: seed}
	s.pcg.Seed(seed, seed^streamTag)
	return s
}

// Uint64 implements rand.Source.
func (s *Stream) Uint64() uint64 {
	s.Draws++
	return s.pcg.Uint64()
}

// Float64 returns a uniform number in [0,1).
func (s *Stream) Float64() float64 {
	return float64(s.Uint64()<<11>>11) / (1 << 53)
}

// Skip advances the stream by n words.
func (s *Stream) Skip(n uint64) {
	for i := uint64(0); i < n; i++ {
		s.Uint64()
	}
}

// Derive mixes a farm seed and a panel index into an independent panel seed
// (splitmix64 finalizer). The result only depends on its inputs, never on the
// order panels are created or advanced.
func Derive(seed uint64, index int) uint64 {
	z := seed + uint64(index+1)*streamTag
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

type persisted struct {
	Seed   uint64 `json:"seed"`
	Cursor uint64 `json:"cursor"`
	State  []byte `json:"state,omitempty"`
}

// MarshalJSON encodes the seed, the draw cursor and the raw generator state.
func (s Stream) MarshalJSON() ([]byte, error) {
	st, err := s.pcg.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return json.Marshal(persisted{Seed: s.Seed, Cursor: s.Draws, State: st})
}

// UnmarshalJSON restores a stream. When the generator state is missing the
// stream is rebuilt from the seed and fast-forwarded to the cursor.
func (s *Stream) UnmarshalJSON(data []byte) error {
	var p persisted
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	out, err := Restore(p.Seed, p.Cursor, p.State)
	if err != nil {
		return err
	}
	*s = out
	return nil
}

// MaxReplay bounds the cursor of a stream rebuilt without its generator
// state.
const MaxReplay uint64 = 1 << 24

// Restore rebuilds a stream from its persisted parts. Without state the
// stream is replayed from the seed, which is refused past MaxReplay draws.
func Restore(seed, cursor uint64, state []byte) (Stream, error) {
	if len(state) == 0 {
		if cursor > MaxReplay {
			return Stream{}, fmt.Errorf("rng cursor %d without generator state exceeds %d", cursor, MaxReplay)
		}
		s := New(seed)
		s.Skip(cursor)
		return s, nil
	}
	s := Stream{Seed: seed, Draws: cursor}
	if err := s.pcg.UnmarshalBinary(state); err != nil {
		return Stream{}, fmt.Errorf("rng state: %w", err)
	}
	return s, nil
}
