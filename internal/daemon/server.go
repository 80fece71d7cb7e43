// Package daemon serves the command protocol over a unix socket and wires the
// scheduler, store and notifier into one long-lived process.
package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math/rand/v2"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/fakeyudi/tomato/internal/api"
	"github.com/fakeyudi/tomato/internal/notify"
	"github.com/fakeyudi/tomato/internal/timer"
)

const maxCommandBytes = 64 * 1024

// Scheduler is the part of *timer.Scheduler the server drives.
type Scheduler interface {
	Start()
	Stop(reset bool)
	State() timer.State
	SetDuration(seconds int, updateWork bool) error
	SetBreakDuration(seconds int) error
	Subscribe(buffer int) (<-chan timer.Event, func())
}

// Dispatcher is the part of *notify.Dispatcher the server drives.
type Dispatcher interface {
	CheckPermission(ctx context.Context) bool
	Dispatch(ctx context.Context, phase timer.Mode) (notify.Result, error)
}

type Server struct {
	socketPath  string
	sched       Scheduler
	dispatcher  Dispatcher
	logger      *log.Logger
	httpSrv     *http.Server
	listener    net.Listener
	lockFile    *os.File
	instanceID  string
	sequence    atomic.Int64
	pickPhase   func() timer.Mode
	stopStreams context.CancelFunc
	mu          sync.Mutex
	shutdown    sync.Once
	shutdownErr error
}

func NewServer(socketPath string, sched Scheduler, dispatcher Dispatcher, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	mux := http.NewServeMux()
	// Requests derive from baseCtx so Shutdown can end open event streams.
	baseCtx, stopStreams := context.WithCancel(context.Background())
	s := &Server{
		socketPath:  socketPath,
		sched:       sched,
		dispatcher:  dispatcher,
		logger:      logger,
		instanceID:  uuid.NewString(),
		pickPhase:   randomPhase,
		stopStreams: stopStreams,
		httpSrv: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			BaseContext:       func(net.Listener) context.Context { return baseCtx },
		},
	}
	mux.HandleFunc("/v1/health", s.healthHandler)
	mux.HandleFunc("/v1/commands", s.commandsHandler)
	mux.HandleFunc("/v1/events", s.eventsHandler)
	return s
}

// Handler exposes the routes without a socket, for tests.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// InstanceID identifies this daemon run.
func (s *Server) InstanceID() string {
	return s.instanceID
}

// Start listens on the socket and serves until ctx is done.
func (s *Server) Start(ctx context.Context) error {
	if err := s.Listen(); err != nil {
		return err
	}
	return s.Serve(ctx)
}

// Listen takes the daemon lock and binds the socket. Holding the lock before
// touching persisted state keeps a second daemon from writing it.
func (s *Server) Listen() error {
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0o700); err != nil {
		return fmt.Errorf("create socket dir: %w", err)
	}
	if err := s.acquireLock(); err != nil {
		return err
	}
	if st, err := os.Lstat(s.socketPath); err == nil {
		if st.Mode()&os.ModeSocket == 0 {
			s.releaseLock() //nolint:errcheck
			return fmt.Errorf("socket path exists and is not unix socket: %s", s.socketPath)
		}
		// We hold the lock, so any socket left here belongs to a dead daemon.
		if err := os.Remove(s.socketPath); err != nil {
			s.releaseLock() //nolint:errcheck
			return fmt.Errorf("remove stale socket: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		s.releaseLock() //nolint:errcheck
		return fmt.Errorf("stat socket path: %w", err)
	}
	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		s.releaseLock() //nolint:errcheck
		return fmt.Errorf("listen uds: %w", err)
	}
	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		ln.Close() //nolint:errcheck
		s.releaseLock() //nolint:errcheck
		return fmt.Errorf("chmod socket: %w", err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	s.logger.Printf("listening on %s (instance %s)", s.socketPath, s.instanceID)
	return nil
}

// Serve handles requests on the bound socket until ctx is done.
func (s *Server) Serve(ctx context.Context) error {
	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()
	if ln == nil {
		return errors.New("serve: socket not bound")
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		if err != nil {
			_ = s.Shutdown(context.Background())
			return fmt.Errorf("serve uds: %w", err)
		}
		return nil
	}
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdown.Do(func() {
		var errs []error
		s.stopStreams()
		if err := s.httpSrv.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
		s.mu.Lock()
		listener := s.listener
		s.listener = nil
		s.mu.Unlock()
		if listener != nil {
			if err := listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
				errs = append(errs, err)
			}
		}
		if err := os.Remove(s.socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
		if err := s.releaseLock(); err != nil {
			errs = append(errs, err)
		}
		s.shutdownErr = errors.Join(errs...)
	})
	return s.shutdownErr
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}
	s.writeJSON(w, http.StatusOK, api.HealthResponse{
		SchemaVersion: api.SchemaVersion,
		InstanceID:    s.instanceID,
		GeneratedAt:   time.Now().UTC(),
		Status:        "ok",
	})
}

func (s *Server) commandsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.methodNotAllowed(w, http.MethodPost)
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxCommandBytes))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, api.ErrCodeInvalid, "read body: "+err.Error())
		return
	}
	cmd, err := api.DecodeCommand(body)
	if err != nil {
		code := api.ErrCodeInvalid
		if errors.Is(err, api.ErrUnknownCommand) {
			code = api.ErrCodeUnknown
		}
		s.writeError(w, http.StatusBadRequest, code, err.Error())
		return
	}

	switch c := cmd.(type) {
	case api.StartTimer:
		s.sched.Start()
		s.writeJSON(w, http.StatusOK, api.CommandResponse{Success: true})
	case api.StopTimer:
		s.sched.Stop(c.Reset)
		s.writeJSON(w, http.StatusOK, api.CommandResponse{Success: true})
	case api.GetTimerState:
		s.writeJSON(w, http.StatusOK, s.sched.State())
	case api.SetTimer:
		s.writeMutation(w, s.sched.SetDuration(c.Time, c.UpdateWorkDuration))
	case api.SetBreak:
		s.writeMutation(w, s.sched.SetBreakDuration(c.Time))
	case api.CheckNotificationPermission:
		granted := s.dispatcher != nil && s.dispatcher.CheckPermission(r.Context())
		s.writeJSON(w, http.StatusOK, api.PermissionResponse{Granted: granted})
	case api.TimerComplete:
		s.testNotification(w, r, c)
	default:
		s.writeError(w, http.StatusBadRequest, api.ErrCodeUnknown, fmt.Sprintf("unhandled command %s", cmd.CommandType()))
	}
}

func (s *Server) writeMutation(w http.ResponseWriter, err error) {
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, timer.ErrInvalidDuration) {
			status = http.StatusBadRequest
		}
		s.writeJSON(w, status, api.CommandResponse{Success: false, Error: err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, api.CommandResponse{Success: true})
}

func (s *Server) testNotification(w http.ResponseWriter, r *http.Request, c api.TimerComplete) {
	phase := c.TimerType
	if phase == "" {
		phase = s.pickPhase()
	}
	if s.dispatcher == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, api.NotificationResponse{
			Phase: phase,
			Error: "notifications are not configured",
		})
		return
	}

	result, err := s.dispatcher.Dispatch(r.Context(), phase)
	resp := api.NotificationResponse{
		Success:        err == nil,
		Phase:          phase,
		AlertID:        result.AlertID,
		NotificationID: result.NotificationID,
		Message:        result.Message,
		Fallback:       result.Fallback,
	}
	switch {
	case err == nil:
		s.writeJSON(w, http.StatusOK, resp)
	case errors.Is(err, notify.ErrPermissionDenied):
		resp.Error = err.Error()
		s.writeJSON(w, http.StatusForbidden, resp)
	default:
		s.logger.Printf("test notification: %v", err)
		resp.Error = err.Error()
		s.writeJSON(w, http.StatusBadGateway, resp)
	}
}

// eventsHandler streams scheduler events as NDJSON. The first line is a
// snapshot of the current state so clients never start blank.
func (s *Server) eventsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.methodNotAllowed(w, http.MethodGet)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.writeError(w, http.StatusInternalServerError, api.ErrCodeInternal, "streaming unsupported")
		return
	}

	events, cancel := s.sched.Subscribe(64)
	defer cancel()

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	enc := json.NewEncoder(w)

	state := s.sched.State()
	running := state.IsRunning
	snapshot := timer.Event{
		Type:      timer.EventTimeUpdate,
		TimeLeft:  state.TimeLeft,
		IsRunning: &running,
		Mode:      state.Mode,
		At:        time.Now(),
	}
	if err := enc.Encode(api.EventLineFrom(snapshot, s.nextSequence())); err != nil {
		return
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := enc.Encode(api.EventLineFrom(event, s.nextSequence())); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func (s *Server) nextSequence() int64 {
	return s.sequence.Add(1)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func (s *Server) writeError(w http.ResponseWriter, status int, code, msg string) {
	s.writeJSON(w, status, api.ErrorResponse{Code: code, Message: msg})
}

func (s *Server) methodNotAllowed(w http.ResponseWriter, allow ...string) {
	if len(allow) > 0 {
		w.Header().Set("Allow", strings.Join(allow, ", "))
	}
	s.writeError(w, http.StatusMethodNotAllowed, api.ErrCodeMethodNotAllowed, "method not allowed")
}

// ErrAlreadyRunning is returned when another daemon holds the socket lock.
var ErrAlreadyRunning = errors.New("daemon already running")

func (s *Server) acquireLock() error {
	lockPath := s.socketPath + ".lock"
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o700); err != nil {
		return fmt.Errorf("create lock dir: %w", err)
	}
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return fmt.Errorf("open lock file: %w", err)
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close() //nolint:errcheck
		return ErrAlreadyRunning
	}
	s.mu.Lock()
	s.lockFile = f
	s.mu.Unlock()
	return nil
}

func (s *Server) releaseLock() error {
	s.mu.Lock()
	f := s.lockFile
	s.lockFile = nil
	s.mu.Unlock()
	if f == nil {
		return nil
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_UN); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	return f.Close()
}

func randomPhase() timer.Mode {
	if rand.IntN(2) == 0 {
		return timer.ModeWork
	}
	return timer.ModeBreak
}
