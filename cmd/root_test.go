package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/fakeyudi/tomato/internal/client"
	"github.com/fakeyudi/tomato/internal/config"
	"github.com/fakeyudi/tomato/internal/daemon"
	"github.com/fakeyudi/tomato/internal/tick"
)

// executeCommand runs a cobra command with the given args and captures combined output.
func executeCommand(root *cobra.Command, args ...string) (output string, err error) {
	buf := new(bytes.Buffer)
	_, err = executeCommandContext(context.Background(), root, buf, args...)
	return buf.String(), err
}

func executeCommandContext(ctx context.Context, root *cobra.Command, out io.Writer, args ...string) (*cobra.Command, error) {
	resetCommands(ctx, root)
	root.SetOut(out)
	root.SetErr(out)
	root.SetArgs(args)
	return root.ExecuteContextC(ctx)
}

// resetCommands restores every flag to its default and hands ctx to every
// command; cobra keeps parsed values and the first context it saw between
// executions of the same command tree.
func resetCommands(ctx context.Context, c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		f.Value.Set(f.DefValue) //nolint:errcheck
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	c.SetContext(ctx)
	for _, sub := range c.Commands() {
		resetCommands(ctx, sub)
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// writeConfig isolates the XDG directories and writes a config file whose
// socket lives in a short temp dir, returning the file path.
func writeConfig(t *testing.T, backend string) string {
	t.Helper()
	tmp := t.TempDir()
	t.Setenv("HOME", tmp)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(tmp, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(tmp, "data"))

	// Unix socket paths are length limited, so keep this one short.
	sockDir, err := os.MkdirTemp("", "tomato")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(sockDir) })

	path := filepath.Join(tmp, "config.yaml")
	body := fmt.Sprintf("socket_path: %s\ndata_dir: %s\nstate_backend: %s\nnotifier: log\n",
		filepath.Join(sockDir, "d.sock"), filepath.Join(tmp, "state"), backend)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// startDaemon serves the config at path in-process until the test ends.
func startDaemon(t *testing.T, path string) *client.Client {
	t.Helper()
	loaded, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	ready := make(chan struct{})
	errCh := make(chan error, 1)
	go func() {
		errCh <- daemon.Run(ctx, loaded, daemon.RunOptions{
			Source: tick.NewManual(1),
			Ready:  func(*daemon.Server) { close(ready) },
		})
	}()
	select {
	case <-ready:
	case err := <-errCh:
		cancel()
		t.Fatalf("daemon exited early: %v", err)
	case <-time.After(5 * time.Second):
		cancel()
		t.Fatal("daemon never became ready")
	}
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-errCh:
			if err != nil {
				t.Errorf("daemon: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("daemon did not stop")
		}
	})

	c := client.New(loaded.SocketPath)
	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := c.Health(context.Background()); err == nil {
			return c
		}
		if time.Now().After(deadline) {
			t.Fatal("daemon socket never answered")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestCommandsReportMissingDaemon(t *testing.T) {
	path := writeConfig(t, "file")

	for _, args := range [][]string{{"start"}, {"stop"}, {"status"}, {"set", "5"}, {"notify", "permission"}} {
		_, err := executeCommand(rootCmd, append([]string{"--config", path}, args...)...)
		if !errors.Is(err, client.ErrDaemonUnavailable) {
			t.Errorf("%v: want ErrDaemonUnavailable, got %v", args, err)
			continue
		}
		if !strings.Contains(err.Error(), "daemon not running (start it with 'tomato daemon')") {
			t.Errorf("%v: unexpected message %q", args, err)
		}
	}
}

func TestRootRejectsBrokenConfig(t *testing.T) {
	path := writeConfig(t, "file")
	if err := os.WriteFile(path, []byte("notifier: [unclosed\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := executeCommand(rootCmd, "--config", path, "status")
	var parseErr *config.ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("want *config.ParseError, got %v", err)
	}
}

func TestSetupRequiresTerminal(t *testing.T) {
	path := writeConfig(t, "file")

	_, err := executeCommand(rootCmd, "--config", path, "setup")
	if err == nil || !strings.Contains(err.Error(), "interactive terminal") {
		t.Fatalf("want interactive terminal error, got %v", err)
	}
}

func TestViewRequiresTerminal(t *testing.T) {
	path := writeConfig(t, "file")

	_, err := executeCommand(rootCmd, "--config", path, "view")
	if err == nil || !strings.Contains(err.Error(), "interactive terminal") {
		t.Fatalf("want interactive terminal error, got %v", err)
	}
}
