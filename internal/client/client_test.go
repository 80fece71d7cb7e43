package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/fakeyudi/tomato/internal/api"
	"github.com/fakeyudi/tomato/internal/timer"
)

func commandServer(t *testing.T, handle func(cmd api.Command, w http.ResponseWriter)) *Client {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/commands", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("expected POST, got %s", r.Method)
		}
		body, _ := io.ReadAll(r.Body)
		cmd, err := api.DecodeCommand(body)
		if err != nil {
			t.Fatalf("client sent undecodable command %s: %v", body, err)
		}
		handle(cmd, w)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return NewWithClient(srv.URL, srv.Client())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestCommandsAreTagged(t *testing.T) {
	var got []api.Command
	c := commandServer(t, func(cmd api.Command, w http.ResponseWriter) {
		got = append(got, cmd)
		writeJSON(w, http.StatusOK, api.CommandResponse{Success: true})
	})
	ctx := context.Background()

	if err := c.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := c.Stop(ctx, true); err != nil {
		t.Fatal(err)
	}
	if err := c.SetTimer(ctx, 600, true); err != nil {
		t.Fatal(err)
	}
	if err := c.SetBreak(ctx, 120); err != nil {
		t.Fatal(err)
	}

	want := []api.Command{
		api.StartTimer{},
		api.StopTimer{Reset: true},
		api.SetTimer{Time: 600, UpdateWorkDuration: true},
		api.SetBreak{Time: 120},
	}
	if len(got) != len(want) {
		t.Fatalf("sent %d commands, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("command %d = %#v, want %#v", i, got[i], want[i])
		}
	}
}

func TestStateDecodesTimerState(t *testing.T) {
	c := commandServer(t, func(cmd api.Command, w http.ResponseWriter) {
		writeJSON(w, http.StatusOK, timer.State{TimeLeft: 61, WorkDuration: 1500, BreakDuration: 300, Mode: timer.ModeBreak})
	})
	st, err := c.State(context.Background())
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if st.TimeLeft != 61 || st.Mode != timer.ModeBreak {
		t.Errorf("state = %+v", st)
	}
}

func TestRejectedCommandSurfacesMessage(t *testing.T) {
	c := commandServer(t, func(cmd api.Command, w http.ResponseWriter) {
		writeJSON(w, http.StatusBadRequest, api.CommandResponse{Error: "duration must be positive"})
	})
	err := c.SetTimer(context.Background(), -1, false)
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("expected *RequestError, got %T: %v", err, err)
	}
	if reqErr.StatusCode != http.StatusBadRequest || err.Error() != "duration must be positive" {
		t.Errorf("error = %v (%+v)", err, reqErr)
	}
}

func TestProtocolErrorCarriesCode(t *testing.T) {
	c := commandServer(t, func(cmd api.Command, w http.ResponseWriter) {
		writeJSON(w, http.StatusBadRequest, api.ErrorResponse{Code: api.ErrCodeUnknown, Message: "nope"})
	})
	err := c.Start(context.Background())
	if err == nil || err.Error() != api.ErrCodeUnknown+": nope" {
		t.Errorf("error = %v", err)
	}
}

func TestMissingDaemonIsUnavailable(t *testing.T) {
	c := New(filepath.Join(t.TempDir(), "absent.sock"))
	if err := c.Start(context.Background()); !errors.Is(err, ErrDaemonUnavailable) {
		t.Fatalf("error = %v, want ErrDaemonUnavailable", err)
	}
	if ErrDaemonUnavailable.Error() != "daemon not running (start it with 'tomato daemon')" {
		t.Errorf("unexpected message %q", ErrDaemonUnavailable)
	}
}

func TestEventsParsesNDJSON(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/events", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/x-ndjson")
		_, _ = io.WriteString(w, `{"type":"TIME_UPDATE","timeLeft":3,"isRunning":true,"mode":"work","sequence":1}`+"\n")
		_, _ = io.WriteString(w, "\n")
		_, _ = io.WriteString(w, `{"type":"PHASE_COMPLETE","timeLeft":300,"mode":"work","sequence":2}`+"\n")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	var lines []api.EventLine
	err := NewWithClient(srv.URL, srv.Client()).Events(context.Background(), func(line api.EventLine) error {
		lines = append(lines, line)
		return nil
	})
	if err != nil {
		t.Fatalf("Events: %v", err)
	}
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	if lines[0].IsRunning == nil || !*lines[0].IsRunning || lines[1].Type != timer.EventPhaseComplete {
		t.Errorf("lines = %+v", lines)
	}
}

func TestEventsStopsWhenCallbackFails(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/events", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"type":"TIME_UPDATE","timeLeft":3}`+"\n"+`{"type":"TIME_UPDATE","timeLeft":2}`+"\n")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	stop := errors.New("enough")
	calls := 0
	err := NewWithClient(srv.URL, srv.Client()).Events(context.Background(), func(api.EventLine) error {
		calls++
		return stop
	})
	if !errors.Is(err, stop) || calls != 1 {
		t.Errorf("err = %v after %d calls", err, calls)
	}
}
