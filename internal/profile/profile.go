// Package profile runs the interactive setup wizard. The answers are kept as
// strings while the form is open and folded back into a config.Config once
// it completes.
package profile

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/fakeyudi/tomato/internal/config"
	"github.com/fakeyudi/tomato/internal/store"
	"github.com/fakeyudi/tomato/internal/timer"
)

// Answers holds the wizard fields bound to the form.
type Answers struct {
	Work     string
	Break    string
	Policy   string
	Notifier string
	Backend  string
	Title    string
}

// FromConfig seeds the wizard with the settings currently in effect.
func FromConfig(cfg config.Config) Answers {
	return Answers{
		Work:     config.FormatSeconds(cfg.WorkSeconds),
		Break:    config.FormatSeconds(cfg.BreakSeconds),
		Policy:   cfg.CompletionPolicy,
		Notifier: cfg.Notifier,
		Backend:  cfg.StateBackend,
		Title:    cfg.AlertTitle,
	}
}

// Apply folds the answers into base and validates the result.
func (a Answers) Apply(base config.Config) (config.Config, error) {
	cfg := base
	work, err := config.ParseSeconds(a.Work)
	if err != nil {
		return base, fmt.Errorf("work length: %w", err)
	}
	brk, err := config.ParseSeconds(a.Break)
	if err != nil {
		return base, fmt.Errorf("break length: %w", err)
	}
	cfg.WorkSeconds = work
	cfg.BreakSeconds = brk
	cfg.CompletionPolicy = a.Policy
	cfg.Notifier = a.Notifier
	cfg.StateBackend = a.Backend
	if title := strings.TrimSpace(a.Title); title != "" {
		cfg.AlertTitle = title
	}
	if err := cfg.Validate(); err != nil {
		return base, err
	}
	return cfg, nil
}

func validateLength(raw string) error {
	_, err := config.ParseSeconds(raw)
	return err
}

// Form builds the wizard bound to a.
func Form(a *Answers) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Work length").
				Description("Minutes (25) or a duration (50m, 90s)").
				Value(&a.Work).
				Validate(validateLength),
			huh.NewInput().
				Title("Break length").
				Description("Minutes (5) or a duration (10m, 45s)").
				Value(&a.Break).
				Validate(validateLength),
			huh.NewSelect[string]().
				Title("When a phase ends").
				Options(
					huh.NewOption("Switch to the other phase and keep counting", string(timer.PolicyAdvance)),
					huh.NewOption("Stop and rewind to a fresh work phase", string(timer.PolicyReset)),
				).
				Value(&a.Policy),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Notifications").
				Options(
					huh.NewOption("Desktop notifications", config.NotifierDesktop),
					huh.NewOption("Daemon log only", config.NotifierLog),
					huh.NewOption("Off", config.NotifierNone),
				).
				Value(&a.Notifier),
			huh.NewInput().
				Title("Notification title").
				Value(&a.Title),
			huh.NewSelect[string]().
				Title("Keep timer state in").
				Options(
					huh.NewOption("A JSON file", store.BackendFile),
					huh.NewOption("An SQLite database", store.BackendSQLite),
					huh.NewOption("Memory (lost on restart)", store.BackendMemory),
				).
				Value(&a.Backend),
		),
	)
}

// RunSetup shows the wizard seeded from existing and returns the edited
// configuration. It returns huh.ErrUserAborted when the user quits.
func RunSetup(existing config.Config) (config.Config, error) {
	answers := FromConfig(existing)
	if err := Form(&answers).Run(); err != nil {
		return existing, err
	}
	return answers.Apply(existing)
}
