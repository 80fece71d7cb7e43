// Package api holds the wire types shared by the daemon and its clients.
package api

import (
	"time"

	"github.com/fakeyudi/tomato/internal/timer"
)

const SchemaVersion = "v1"

const (
	ErrCodeInvalid          = "E_COMMAND_INVALID"
	ErrCodeUnknown          = "E_COMMAND_UNKNOWN"
	ErrCodeMethodNotAllowed = "E_METHOD_NOT_ALLOWED"
	ErrCodeInternal         = "E_INTERNAL"
)

// ErrorResponse reports a request the daemon could not interpret.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CommandResponse acknowledges a mutating command.
type CommandResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type PermissionResponse struct {
	Granted bool `json:"granted"`
}

// NotificationResponse reports a test notification.
type NotificationResponse struct {
	Success        bool       `json:"success"`
	Error          string     `json:"error,omitempty"`
	Phase          timer.Mode `json:"phase"`
	AlertID        string     `json:"alertId,omitempty"`
	NotificationID string     `json:"notificationId,omitempty"`
	Message        string     `json:"message,omitempty"`
	Fallback       bool       `json:"fallback"`
}

type HealthResponse struct {
	SchemaVersion string    `json:"schemaVersion"`
	InstanceID    string    `json:"instanceId"`
	GeneratedAt   time.Time `json:"generatedAt"`
	Status        string    `json:"status"`
}

// EventLine is one NDJSON record on the events stream.
type EventLine struct {
	Type      timer.EventType `json:"type"`
	TimeLeft  int             `json:"timeLeft"`
	IsRunning *bool           `json:"isRunning,omitempty"`
	Mode      timer.Mode      `json:"mode,omitempty"`
	EmittedAt time.Time       `json:"emittedAt"`
	Sequence  int64           `json:"sequence"`
}

func EventLineFrom(event timer.Event, sequence int64) EventLine {
	return EventLine{
		Type:      event.Type,
		TimeLeft:  event.TimeLeft,
		IsRunning: event.IsRunning,
		Mode:      event.Mode,
		EmittedAt: event.At.UTC(),
		Sequence:  sequence,
	}
}
