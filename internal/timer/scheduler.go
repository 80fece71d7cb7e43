// Package timer implements the work/break countdown: a drift-corrected
// scheduler that owns the timer state, consumes ticks, persists every
// mutation and hands finished phases to a notifier.
package timer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/fakeyudi/tomato/internal/tick"
)

// Persister is the durable home of the timer state.
type Persister interface {
	// Load returns ErrNoState when nothing has been saved yet.
	Load(ctx context.Context) (State, error)
	Save(ctx context.Context, state State) error
}

// Notifier receives the phase that just finished. Implementations must not
// block the caller.
type Notifier interface {
	Notify(phase Mode)
}

// Options contains runtime settings for a Scheduler.
type Options struct {
	Policy CompletionPolicy
	// WorkSeconds and BreakSeconds seed the state on first activation.
	WorkSeconds  int
	BreakSeconds int
	Now          func() time.Time
	Logger       *log.Logger
	SaveTimeout  time.Duration
}

// Scheduler owns the timer state. Every tick and command runs to completion
// under one lock, so no two mutations interleave.
type Scheduler struct {
	mu          sync.Mutex
	state       State
	store       Persister
	notifier    Notifier
	policy      CompletionPolicy
	defaults    State
	now         func() time.Time
	logger      *log.Logger
	saveTimeout time.Duration
	events      []chan Event
	resumed     bool
}

// New creates an idle Scheduler holding default state. Call Resume to load
// the persisted state before serving commands.
func New(store Persister, notifier Notifier, options Options) *Scheduler {
	if options.Policy == "" {
		options.Policy = PolicyAdvance
	}
	if options.Now == nil {
		options.Now = time.Now
	}
	if options.Logger == nil {
		options.Logger = log.New(io.Discard, "", 0)
	}
	if options.SaveTimeout <= 0 {
		options.SaveTimeout = 5 * time.Second
	}
	defaults := DefaultState(options.WorkSeconds, options.BreakSeconds)
	return &Scheduler{
		state:       defaults,
		defaults:    defaults,
		store:       store,
		notifier:    notifier,
		policy:      options.Policy,
		now:         options.Now,
		logger:      options.Logger,
		saveTimeout: options.SaveTimeout,
	}
}

// Resume reconciles memory with durable storage after a cold start. A state
// that was running is started again, which re-baselines the last tick to now:
// time that passed while no process was alive is not charged to the phase.
// A state that cannot be loaded is replaced by the defaults; the error is
// only returned when writing them back fails too.
func (sched *Scheduler) Resume(ctx context.Context) error {
	loaded, err := sched.store.Load(ctx)
	if err != nil && ctx.Err() != nil {
		return fmt.Errorf("load timer state: %w", err)
	}

	sched.mu.Lock()
	defer sched.mu.Unlock()
	sched.resumed = true

	if err != nil {
		if !errors.Is(err, ErrNoState) {
			sched.logger.Printf("load timer state: %v; replacing it with defaults", err)
		}
		sched.state = sched.defaults.Clone()
		if err := sched.saveLocked(); err != nil {
			return fmt.Errorf("save default timer state: %w", err)
		}
		return nil
	}

	wasRunning := loaded.IsRunning
	sched.state = loaded.Normalize()
	sched.state.IsRunning = false
	sched.state.LastTick = nil
	if wasRunning {
		sched.startLocked()
		return nil
	}
	sched.persistLocked()
	return nil
}

// SetDefaults replaces the durations Resume falls back to. Before Resume the
// in-memory state adopts them as well.
func (sched *Scheduler) SetDefaults(workSeconds, breakSeconds int) {
	sched.mu.Lock()
	defer sched.mu.Unlock()
	sched.defaults = DefaultState(workSeconds, breakSeconds)
	if !sched.resumed && !sched.state.IsRunning {
		sched.state = sched.defaults.Clone()
	}
}

// State returns a snapshot of the timer.
func (sched *Scheduler) State() State {
	sched.mu.Lock()
	defer sched.mu.Unlock()
	return sched.state.Clone()
}

// Policy reports the configured completion policy.
func (sched *Scheduler) Policy() CompletionPolicy {
	return sched.policy
}

// Start begins counting down. It is a no-op while already running.
func (sched *Scheduler) Start() {
	sched.mu.Lock()
	defer sched.mu.Unlock()
	sched.startLocked()
}

// Stop halts the countdown. With reset the current phase is rewound to its
// full duration. It is a no-op while idle.
func (sched *Scheduler) Stop(reset bool) {
	sched.mu.Lock()
	defer sched.mu.Unlock()

	if !sched.state.IsRunning {
		return
	}
	sched.state.IsRunning = false
	sched.state.LastTick = nil
	if reset {
		sched.state.TimeLeft = sched.state.DurationFor(sched.state.Mode)
	}
	sched.persistLocked()
	sched.emitUpdateLocked(sched.now(), true)
}

// SetDuration replaces the remaining time and, when updateWork is set, the
// configured work duration.
func (sched *Scheduler) SetDuration(seconds int, updateWork bool) error {
	if seconds <= 0 {
		return ErrInvalidDuration
	}

	sched.mu.Lock()
	defer sched.mu.Unlock()

	sched.state.TimeLeft = seconds
	if updateWork {
		sched.state.WorkDuration = seconds
	}
	sched.persistLocked()
	sched.emitUpdateLocked(sched.now(), false)
	return nil
}

// SetBreakDuration replaces the configured break duration. An idle break
// phase picks up the new length immediately.
func (sched *Scheduler) SetBreakDuration(seconds int) error {
	if seconds <= 0 {
		return ErrInvalidDuration
	}

	sched.mu.Lock()
	defer sched.mu.Unlock()

	sched.state.BreakDuration = seconds
	if !sched.state.IsRunning && sched.state.Mode == ModeBreak {
		sched.state.TimeLeft = seconds
		sched.emitUpdateLocked(sched.now(), false)
	}
	sched.persistLocked()
	return nil
}

// Tick advances the countdown by the whole seconds of wall-clock time elapsed
// since the last observed tick, then moves the baseline to now. A single late
// tick subtracts the whole gap.
func (sched *Scheduler) Tick(now time.Time) {
	sched.mu.Lock()
	if !sched.state.IsRunning {
		sched.mu.Unlock()
		return
	}

	// First tick after start only establishes the baseline.
	if sched.state.LastTick == nil {
		sched.state.LastTick = stamp(now)
		sched.persistLocked()
		sched.mu.Unlock()
		return
	}

	// Unix milliseconds ignore the monotonic reading, so time spent
	// suspended still counts.
	elapsedMillis := now.UnixMilli() - sched.state.LastTick.UnixMilli()
	if elapsedMillis < 0 {
		sched.logger.Printf("clock moved backwards by %dms; re-baselining", -elapsedMillis)
		sched.state.LastTick = stamp(now)
		sched.persistLocked()
		sched.mu.Unlock()
		return
	}
	// Sub-second remainders are dropped along with the old baseline.
	sched.state.TimeLeft = max(0, sched.state.TimeLeft-int(elapsedMillis/1000))
	sched.state.LastTick = stamp(now)
	sched.emitUpdateLocked(now, false)

	if sched.state.TimeLeft > 0 {
		sched.persistLocked()
		sched.mu.Unlock()
		return
	}

	finished := sched.completeLocked(now)
	sched.persistLocked()
	sched.emitUpdateLocked(now, true)
	sched.emitLocked(Event{
		Type:     EventPhaseComplete,
		TimeLeft: sched.state.TimeLeft,
		Mode:     finished,
		At:       now,
	})
	sched.mu.Unlock()

	if sched.notifier != nil {
		sched.notifier.Notify(finished)
	}
}

// Run feeds ticks from source into the scheduler until ctx is done.
func (sched *Scheduler) Run(ctx context.Context, source tick.Source) {
	defer source.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-source.C():
			if !ok {
				return
			}
			sched.Tick(sched.now())
		}
	}
}

// Subscribe registers an observer. Events are dropped when the buffer is
// full. The returned func unregisters and closes the channel.
func (sched *Scheduler) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan Event, buffer)
	sched.mu.Lock()
	sched.events = append(sched.events, ch)
	sched.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			sched.mu.Lock()
			defer sched.mu.Unlock()
			for i, candidate := range sched.events {
				if candidate == ch {
					sched.events = append(sched.events[:i], sched.events[i+1:]...)
					close(ch)
					return
				}
			}
		})
	}
}

// Close unregisters and closes every observer channel.
func (sched *Scheduler) Close() {
	sched.mu.Lock()
	events := sched.events
	sched.events = nil
	sched.mu.Unlock()

	for _, ch := range events {
		close(ch)
	}
}

func (sched *Scheduler) startLocked() {
	if sched.state.IsRunning {
		return
	}
	sched.state.IsRunning = true
	sched.state.LastTick = stamp(sched.now())
	sched.persistLocked()
	sched.emitUpdateLocked(sched.now(), true)
}

// completeLocked ends the finished phase according to the policy and
// returns the mode that just finished.
func (sched *Scheduler) completeLocked(now time.Time) Mode {
	finished := sched.state.Mode
	sched.state.IsRunning = false
	sched.state.LastTick = nil

	switch sched.policy {
	case PolicyReset:
		sched.state.Mode = ModeWork
		sched.state.TimeLeft = sched.state.WorkDuration
	default:
		sched.state.Mode = finished.Opposite()
		sched.state.TimeLeft = sched.state.DurationFor(sched.state.Mode)
		sched.state.IsRunning = true
		sched.state.LastTick = stamp(now)
	}
	return finished
}

func (sched *Scheduler) persistLocked() {
	if err := sched.saveLocked(); err != nil {
		sched.logger.Printf("persist timer state: %v", err)
	}
}

func (sched *Scheduler) saveLocked() error {
	if sched.store == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), sched.saveTimeout)
	defer cancel()
	return sched.store.Save(ctx, sched.state.Clone())
}

func (sched *Scheduler) emitUpdateLocked(at time.Time, withRunning bool) {
	event := Event{
		Type:     EventTimeUpdate,
		TimeLeft: sched.state.TimeLeft,
		Mode:     sched.state.Mode,
		At:       at,
	}
	if withRunning {
		running := sched.state.IsRunning
		event.IsRunning = &running
	}
	sched.emitLocked(event)
}

func (sched *Scheduler) emitLocked(event Event) {
	for _, ch := range sched.events {
		select {
		case ch <- event:
		default:
		}
	}
}

func stamp(t time.Time) *time.Time {
	t = t.Round(0)
	return &t
}
