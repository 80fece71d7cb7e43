// Package notify turns finished timer phases into user-facing alerts. A
// Dispatcher checks permission, picks a message from the pool (or a fixed
// fallback) and hands an Alert to the host Notifier.
package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/fakeyudi/tomato/internal/timer"
)

const (
	// AlertPrefix is the category part of every alert ID.
	AlertPrefix = "tomato"
	// DefaultTitle heads every alert unless configured otherwise.
	DefaultTitle = "Pomodoro Timer"
	// alertPriority is the highest priority hosts commonly honour.
	alertPriority = 2
)

// ErrPermissionDenied is returned when the host refuses to show alerts.
var ErrPermissionDenied = errors.New("notification permission not granted")

// Result describes one dispatch attempt.
type Result struct {
	Phase          timer.Mode `json:"phase"`
	Granted        bool       `json:"granted"`
	AlertID        string     `json:"alertId"`
	NotificationID string     `json:"notificationId,omitempty"`
	Message        string     `json:"message"`
	// Fallback is set when the pool was empty or could not be read.
	Fallback bool `json:"fallback"`
}

// Options contains runtime settings for a Dispatcher.
type Options struct {
	Title   string
	Logger  *log.Logger
	Now     func() time.Time
	Intn    func(n int) int
	Timeout time.Duration
}

// Dispatcher delivers alerts for finished phases.
type Dispatcher struct {
	notifier Notifier
	pool     *MessagePool
	title    string
	logger   *log.Logger
	now      func() time.Time
	intn     func(n int) int
	timeout  time.Duration
	wg       sync.WaitGroup
}

func NewDispatcher(notifier Notifier, pool *MessagePool, options Options) *Dispatcher {
	if pool == nil {
		pool = NewMessagePool("")
	}
	if options.Title == "" {
		options.Title = DefaultTitle
	}
	if options.Logger == nil {
		options.Logger = log.New(io.Discard, "", 0)
	}
	if options.Now == nil {
		options.Now = time.Now
	}
	if options.Intn == nil {
		options.Intn = rand.IntN
	}
	if options.Timeout <= 0 {
		options.Timeout = 10 * time.Second
	}
	return &Dispatcher{
		notifier: notifier,
		pool:     pool,
		title:    options.Title,
		logger:   options.Logger,
		now:      options.Now,
		intn:     options.Intn,
		timeout:  options.Timeout,
	}
}

// Notify dispatches in the background and logs the outcome. It never blocks
// the caller, so the scheduler can call it right after a phase completes.
func (d *Dispatcher) Notify(phase timer.Mode) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		result, err := d.Dispatch(ctx, phase)
		if err != nil {
			d.logger.Printf("notify %s complete: %v", phase, err)
			return
		}
		d.logger.Printf("notified %s complete: alert %s (notification %s)", phase, result.AlertID, result.NotificationID)
	}()
}

// Wait blocks until every background Notify has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// CheckPermission reports whether the host will show alerts. Errors count
// as a refusal.
func (d *Dispatcher) CheckPermission(ctx context.Context) bool {
	granted, err := d.notifier.CheckPermission(ctx)
	if err != nil {
		d.logger.Printf("check notification permission: %v", err)
		return false
	}
	return granted
}

// Dispatch shows a single alert for the finished phase. Nothing is shown and
// ErrPermissionDenied is returned when the host refuses.
func (d *Dispatcher) Dispatch(ctx context.Context, phase timer.Mode) (Result, error) {
	if !d.CheckPermission(ctx) {
		return Result{Phase: phase}, ErrPermissionDenied
	}

	message, fallback := d.Message(ctx, phase)
	alert := Alert{
		ID:                 fmt.Sprintf("%s_%d", AlertPrefix, d.now().UnixMilli()),
		Title:              d.title,
		Body:               message,
		RequireInteraction: true,
		Priority:           alertPriority,
	}
	result := Result{Phase: phase, Granted: true, AlertID: alert.ID, Message: message, Fallback: fallback}

	id, err := d.notifier.Display(ctx, alert)
	if err != nil {
		return result, fmt.Errorf("display alert %s: %w", alert.ID, err)
	}
	result.NotificationID = id
	return result, nil
}

// Message picks the alert body for phase: a uniformly random pool entry, or
// the phase fallback when the pool is empty or unreadable. The bool reports
// whether the fallback was used.
func (d *Dispatcher) Message(ctx context.Context, phase timer.Mode) (string, bool) {
	messages, err := d.pool.Messages(ctx)
	if err != nil {
		d.logger.Printf("%v; using fallback message", err)
	}
	if len(messages) == 0 {
		return FallbackMessage(phase), true
	}
	return messages[d.intn(len(messages))], false
}
