// Package report renders timer state for people and scripts.
package report

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/fakeyudi/tomato/internal/timer"
)

// Status is the printable view of a timer.State.
type Status struct {
	Mode          timer.Mode `json:"mode" yaml:"mode"`
	IsRunning     bool       `json:"isRunning" yaml:"isRunning"`
	TimeLeft      int        `json:"timeLeftSeconds" yaml:"timeLeftSeconds"`
	Clock         string     `json:"clock" yaml:"clock"`
	WorkDuration  int        `json:"workDurationSeconds" yaml:"workDurationSeconds"`
	BreakDuration int        `json:"breakDurationSeconds" yaml:"breakDurationSeconds"`
	LastTick      *time.Time `json:"lastTickTimestamp,omitempty" yaml:"lastTickTimestamp,omitempty"`
}

func FromState(st timer.State) Status {
	return Status{
		Mode:          st.Mode,
		IsRunning:     st.IsRunning,
		TimeLeft:      st.TimeLeft,
		Clock:         FormatClock(st.TimeLeft),
		WorkDuration:  st.WorkDuration,
		BreakDuration: st.BreakDuration,
		LastTick:      st.LastTick,
	}
}

// FormatClock renders seconds as MM:SS. Minutes are not capped at 59, so a
// two hour phase reads 120:00.
func FormatClock(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

// Renderer serializes a Status to bytes.
type Renderer interface {
	Render(s Status) ([]byte, error)
}

// NewRenderer returns the renderer for format: "text", "json" or "yaml".
func NewRenderer(format string) (Renderer, error) {
	switch strings.ToLower(format) {
	case "", "text":
		return &TextRenderer{}, nil
	case "json":
		return &JSONRenderer{}, nil
	case "yaml", "yml":
		return &YAMLRenderer{}, nil
	}
	return nil, fmt.Errorf("unknown output format %q (want text, json or yaml)", format)
}

// TextRenderer renders an aligned summary for terminals.
type TextRenderer struct{}

func (r *TextRenderer) Render(s Status) ([]byte, error) {
	state := "paused"
	if s.IsRunning {
		state = "running"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Mode:   %s\n", s.Mode)
	fmt.Fprintf(&sb, "State:  %s\n", state)
	fmt.Fprintf(&sb, "Left:   %s\n", s.Clock)
	fmt.Fprintf(&sb, "Work:   %s\n", FormatClock(s.WorkDuration))
	fmt.Fprintf(&sb, "Break:  %s\n", FormatClock(s.BreakDuration))
	return []byte(sb.String()), nil
}

// JSONRenderer renders a Status as indented JSON.
type JSONRenderer struct{}

func (r *JSONRenderer) Render(s Status) ([]byte, error) {
	out, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(out, '\n'), nil
}

// YAMLRenderer renders a Status as a YAML document.
type YAMLRenderer struct{}

func (r *YAMLRenderer) Render(s Status) ([]byte, error) {
	return yaml.Marshal(s)
}
