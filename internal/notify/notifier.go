package notify

import (
	"context"
	"io"
	"log"
)

// Alert is a single user-facing notification request.
type Alert struct {
	// ID is a stable category prefix plus a time-derived suffix, so the host
	// never merges two alerts fired close together.
	ID    string
	Title string
	Body  string
	// RequireInteraction asks the host to keep the alert until dismissed.
	RequireInteraction bool
	Priority           int
}

// Notifier is the host capability that surfaces alerts.
type Notifier interface {
	CheckPermission(ctx context.Context) (bool, error)
	// Display shows alert and returns the host's identifier for it.
	Display(ctx context.Context, alert Alert) (string, error)
}

// LogNotifier writes alerts to a logger. Useful on headless hosts.
type LogNotifier struct {
	logger *log.Logger
}

func NewLogNotifier(logger *log.Logger) *LogNotifier {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) CheckPermission(ctx context.Context) (bool, error) {
	return true, nil
}

func (n *LogNotifier) Display(ctx context.Context, alert Alert) (string, error) {
	n.logger.Printf("alert %s: %s: %s", alert.ID, alert.Title, alert.Body)
	return alert.ID, nil
}

// DisabledNotifier never has permission to display anything.
type DisabledNotifier struct{}

func (DisabledNotifier) CheckPermission(ctx context.Context) (bool, error) {
	return false, nil
}

func (DisabledNotifier) Display(ctx context.Context, alert Alert) (string, error) {
	return "", ErrPermissionDenied
}
