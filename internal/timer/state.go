package timer

import (
	"errors"
	"time"
)

// Mode names the phase the timer is counting down.
type Mode string

const (
	ModeWork  Mode = "work"
	ModeBreak Mode = "break"
)

const (
	DefaultWorkSeconds  = 25 * 60
	DefaultBreakSeconds = 5 * 60
)

// ErrNoState is returned by a Persister when nothing has been saved yet.
var ErrNoState = errors.New("no persisted timer state")

// ErrInvalidDuration is returned when a configured duration is not positive.
var ErrInvalidDuration = errors.New("duration must be a positive number of seconds")

// Valid reports whether m is one of the known phases.
func (m Mode) Valid() bool {
	return m == ModeWork || m == ModeBreak
}

// Opposite returns the phase that follows m.
func (m Mode) Opposite() Mode {
	if m == ModeBreak {
		return ModeWork
	}
	return ModeBreak
}

// State is the persisted timer record. Callers only ever hold copies.
type State struct {
	IsRunning     bool       `json:"isRunning"`
	TimeLeft      int        `json:"timeLeftSeconds"`
	WorkDuration  int        `json:"workDurationSeconds"`
	BreakDuration int        `json:"breakDurationSeconds"`
	Mode          Mode       `json:"mode"`
	LastTick      *time.Time `json:"lastTickTimestamp"`
}

// DefaultState returns an idle work phase with the given durations. Non-positive
// values fall back to the package defaults.
func DefaultState(workSeconds, breakSeconds int) State {
	if workSeconds <= 0 {
		workSeconds = DefaultWorkSeconds
	}
	if breakSeconds <= 0 {
		breakSeconds = DefaultBreakSeconds
	}
	return State{
		TimeLeft:      workSeconds,
		WorkDuration:  workSeconds,
		BreakDuration: breakSeconds,
		Mode:          ModeWork,
	}
}

// DurationFor returns the configured length of mode in seconds.
func (s State) DurationFor(mode Mode) int {
	if mode == ModeBreak {
		return s.BreakDuration
	}
	return s.WorkDuration
}

// Clone returns a deep copy of s.
func (s State) Clone() State {
	if s.LastTick != nil {
		t := *s.LastTick
		s.LastTick = &t
	}
	return s
}

// Normalize repairs a loaded record so it satisfies the State invariants.
func (s State) Normalize() State {
	if s.WorkDuration <= 0 {
		s.WorkDuration = DefaultWorkSeconds
	}
	if s.BreakDuration <= 0 {
		s.BreakDuration = DefaultBreakSeconds
	}
	if !s.Mode.Valid() {
		s.Mode = ModeWork
	}
	if s.TimeLeft < 0 {
		s.TimeLeft = 0
	}
	if !s.IsRunning {
		s.LastTick = nil
	}
	return s.Clone()
}
