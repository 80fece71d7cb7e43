package daemon

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"

	"github.com/fakeyudi/tomato/internal/config"
	"github.com/fakeyudi/tomato/internal/notify"
	"github.com/fakeyudi/tomato/internal/store"
	"github.com/fakeyudi/tomato/internal/tick"
	"github.com/fakeyudi/tomato/internal/timer"
)

// AppName is reported to the desktop notification server.
const AppName = "tomato"

// RunOptions adjusts how Run wires the daemon.
type RunOptions struct {
	Logger *log.Logger
	// Ephemeral keeps state in memory regardless of the configured backend.
	Ephemeral bool
	// Source overrides the ticker built from cfg.TickInterval.
	Source tick.Source
	// Notifier overrides the notifier selected by cfg.Notifier.
	Notifier notify.Notifier
	// Ready is called once the socket is bound and state is resumed.
	Ready func(*Server)
}

// Run serves the timer until ctx is cancelled. A cancelled context is a
// clean exit and returns nil.
func Run(ctx context.Context, cfg config.Config, opts RunOptions) error {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	policy, err := timer.ParsePolicy(cfg.CompletionPolicy)
	if err != nil {
		return err
	}

	backend := cfg.StateBackend
	if opts.Ephemeral {
		backend = store.BackendMemory
	}
	kv, err := store.Open(ctx, backend, cfg.DataDir)
	if err != nil {
		return err
	}
	defer kv.Close() //nolint:errcheck

	notifier := opts.Notifier
	if notifier == nil {
		notifier = NewNotifier(cfg.Notifier, logger)
	}
	dispatcher := notify.NewDispatcher(notifier, notify.NewMessagePool(cfg.MessagesPath), notify.Options{
		Title:  cfg.AlertTitle,
		Logger: logger,
	})
	defer dispatcher.Wait()

	repo := store.NewTimerRepository(kv)
	sched := timer.New(repo, dispatcher, timer.Options{
		Policy:       policy,
		WorkSeconds:  cfg.WorkSeconds,
		BreakSeconds: cfg.BreakSeconds,
		Logger:       logger,
	})
	defer sched.Close()

	srv := NewServer(cfg.SocketPath, sched, dispatcher, logger)
	if err := srv.Listen(); err != nil {
		return err
	}

	work, brk, err := repo.EnsureDefaults(ctx, cfg.WorkSeconds, cfg.BreakSeconds)
	if err != nil {
		logger.Printf("record default durations: %v", err)
	} else {
		sched.SetDefaults(work, brk)
	}
	if err := sched.Resume(ctx); err != nil {
		logger.Printf("%v; state will not survive a restart until a save succeeds", err)
	}
	state := sched.State()
	logger.Printf("resumed %s phase, %ds left, running=%t (policy %s, backend %s)",
		state.Mode, state.TimeLeft, state.IsRunning, policy, backend)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	var wg sync.WaitGroup

	if desktop, ok := notifier.(*notify.DesktopNotifier); ok {
		defer desktop.Close() //nolint:errcheck
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := desktop.WatchSignals(runCtx); err != nil {
				logger.Printf("watch notification signals: %v", err)
			}
		}()
	}

	source := opts.Source
	if source == nil {
		source = tick.NewTicker(cfg.TickInterval)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		sched.Run(runCtx, source)
	}()

	if opts.Ready != nil {
		opts.Ready(srv)
	}
	err = srv.Serve(ctx)
	cancel()
	wg.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// NewNotifier builds the notifier named in the configuration.
func NewNotifier(name string, logger *log.Logger) notify.Notifier {
	switch name {
	case config.NotifierLog:
		return notify.NewLogNotifier(logger)
	case config.NotifierNone:
		return notify.DisabledNotifier{}
	default:
		return notify.NewDesktopNotifier(AppName, "appointment-soon", logger)
	}
}
