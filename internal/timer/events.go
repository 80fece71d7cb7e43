package timer

import "time"

// EventType defines the type of scheduler event.
type EventType string

const (
	EventTimeUpdate    EventType = "TIME_UPDATE"
	EventPhaseComplete EventType = "PHASE_COMPLETE"
)

// Event is a best-effort update for observers. IsRunning is only set when the
// running flag changed as part of the update.
type Event struct {
	Type      EventType
	TimeLeft  int
	IsRunning *bool
	Mode      Mode
	At        time.Time
}
