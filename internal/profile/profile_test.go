package profile

import (
	"errors"
	"testing"

	"github.com/fakeyudi/tomato/internal/config"
	"github.com/fakeyudi/tomato/internal/timer"
)

func baseConfig(t *testing.T) config.Config {
	t.Helper()
	tmp := t.TempDir()
	t.Setenv("XDG_DATA_HOME", tmp)
	t.Setenv("XDG_RUNTIME_DIR", tmp)
	return config.Defaults()
}

func TestFromConfigPrintsMinutes(t *testing.T) {
	cfg := baseConfig(t)
	cfg.BreakSeconds = 90

	a := FromConfig(cfg)
	if a.Work != "25" {
		t.Errorf("Work: want %q, got %q", "25", a.Work)
	}
	if a.Break != "1m30s" {
		t.Errorf("Break: want %q, got %q", "1m30s", a.Break)
	}
	if a.Policy != "advance" || a.Backend != "file" || a.Notifier != config.NotifierDesktop {
		t.Errorf("unexpected selections: %+v", a)
	}
}

func TestApplyUpdatesConfig(t *testing.T) {
	base := baseConfig(t)
	a := FromConfig(base)
	a.Work = "50"
	a.Break = "10m"
	a.Policy = string(timer.PolicyReset)
	a.Notifier = config.NotifierLog
	a.Backend = "sqlite"
	a.Title = "  Focus  "

	cfg, err := a.Apply(base)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if cfg.WorkSeconds != 3000 || cfg.BreakSeconds != 600 {
		t.Errorf("durations: got %d/%d", cfg.WorkSeconds, cfg.BreakSeconds)
	}
	if cfg.CompletionPolicy != "reset" || cfg.Notifier != "log" || cfg.StateBackend != "sqlite" {
		t.Errorf("selections not applied: %+v", cfg)
	}
	if cfg.AlertTitle != "Focus" {
		t.Errorf("AlertTitle: got %q", cfg.AlertTitle)
	}
	if cfg.SocketPath != base.SocketPath || cfg.DataDir != base.DataDir {
		t.Error("paths must be carried over from the base config")
	}
}

func TestApplyKeepsTitleWhenBlank(t *testing.T) {
	base := baseConfig(t)
	a := FromConfig(base)
	a.Title = " "

	cfg, err := a.Apply(base)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if cfg.AlertTitle != base.AlertTitle {
		t.Errorf("AlertTitle: want %q, got %q", base.AlertTitle, cfg.AlertTitle)
	}
}

func TestApplyRejectsBadLength(t *testing.T) {
	base := baseConfig(t)
	a := FromConfig(base)
	a.Break = "0"

	cfg, err := a.Apply(base)
	if !errors.Is(err, timer.ErrInvalidDuration) {
		t.Fatalf("want ErrInvalidDuration, got %v", err)
	}
	if cfg != base {
		t.Error("a failed Apply must return the base config unchanged")
	}
}

func TestApplyRejectsUnknownSelection(t *testing.T) {
	base := baseConfig(t)
	a := FromConfig(base)
	a.Notifier = "pager"

	if _, err := a.Apply(base); err == nil {
		t.Fatal("want error for unknown notifier")
	}
}

func TestValidateLength(t *testing.T) {
	if err := validateLength("25"); err != nil {
		t.Errorf("25: %v", err)
	}
	if err := validateLength("later"); err == nil {
		t.Error("later: want error")
	}
}
