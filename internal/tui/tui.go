// Package tui provides a Bubble Tea countdown view backed by the daemon.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fakeyudi/tomato/internal/api"
	"github.com/fakeyudi/tomato/internal/report"
	"github.com/fakeyudi/tomato/internal/timer"
)

// ── Styles ────────────

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 2)

	workBadge = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("160")).
			Padding(0, 1)

	breakBadge = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("28")).
			Padding(0, 1)

	clockStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("178"))

	barFullStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	barEmptyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	flashStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("82")).
			Bold(true)

	errStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))
)

const barWidth = 30

// Controller is the daemon surface the view drives. *client.Client
// satisfies it.
type Controller interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context, reset bool) error
	SetTimer(ctx context.Context, seconds int, updateWork bool) error
	State(ctx context.Context) (timer.State, error)
	Events(ctx context.Context, onEvent func(api.EventLine) error) error
}

// ── Messages ────────────

type stateMsg struct{ state timer.State }

type eventMsg struct{ line api.EventLine }

type errMsg struct{ err error }

type streamEndedMsg struct{ err error }

// ── Model ────────────────────

// Model is the root Bubble Tea model for the countdown view.
type Model struct {
	ctx      context.Context
	ctrl     Controller
	keys     KeyMap
	help     help.Model
	state    timer.State
	loaded   bool
	flash    string
	err      error
	width    int
	quitting bool
}

// New creates a view that talks to ctrl. ctx bounds every daemon call.
func New(ctx context.Context, ctrl Controller) Model {
	return Model{
		ctx:  ctx,
		ctrl: ctrl,
		keys: DefaultKeyMap(),
		help: help.New(),
	}
}

// ── Bubble Tea interface ───────────────

func (m Model) Init() tea.Cmd { return m.refresh() }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		case key.Matches(msg, m.keys.Toggle):
			m.flash = ""
			if m.state.IsRunning {
				return m, m.call(func(ctx context.Context) error { return m.ctrl.Stop(ctx, false) })
			}
			return m, m.call(m.ctrl.Start)
		case key.Matches(msg, m.keys.Reset):
			m.flash = ""
			if m.state.IsRunning {
				return m, m.call(func(ctx context.Context) error { return m.ctrl.Stop(ctx, true) })
			}
			// Stop is a no-op while idle, so rewind by setting the phase length.
			full := m.state.DurationFor(m.state.Mode)
			return m, m.call(func(ctx context.Context) error { return m.ctrl.SetTimer(ctx, full, false) })
		}

	case stateMsg:
		m.state = msg.state
		m.loaded = true
		m.err = nil

	case eventMsg:
		return m.applyEvent(msg.line)

	case errMsg:
		m.err = msg.err

	case streamEndedMsg:
		if msg.err != nil {
			m.err = fmt.Errorf("event stream: %w", msg.err)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
	}
	return m, nil
}

func (m Model) applyEvent(line api.EventLine) (tea.Model, tea.Cmd) {
	switch line.Type {
	case timer.EventPhaseComplete:
		m.flash = fmt.Sprintf("%s phase complete", line.Mode)
		// The completion policy may have changed mode and durations.
		return m, m.refresh()
	case timer.EventTimeUpdate:
		m.state.TimeLeft = line.TimeLeft
		if line.IsRunning != nil {
			m.state.IsRunning = *line.IsRunning
		}
		if line.Mode != "" {
			m.state.Mode = line.Mode
		}
		m.loaded = true
	}
	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("tomato") + "\n\n")

	if !m.loaded {
		if m.err != nil {
			sb.WriteString("  " + errStyle.Render(m.err.Error()) + "\n")
		} else {
			sb.WriteString("  Loading…\n")
		}
		return sb.String()
	}

	badge := workBadge.Render("WORK")
	if m.state.Mode == timer.ModeBreak {
		badge = breakBadge.Render("BREAK")
	}
	status := "paused"
	if m.state.IsRunning {
		status = "running"
	}
	fmt.Fprintf(&sb, "  %s  %s  %s\n\n", badge, clockStyle.Render(report.FormatClock(m.state.TimeLeft)), dimStyle.Render(status))
	sb.WriteString("  " + progressBar(m.state.TimeLeft, m.state.DurationFor(m.state.Mode)) + "\n\n")

	if m.flash != "" {
		sb.WriteString("  " + flashStyle.Render(m.flash) + "\n")
	}
	if m.err != nil {
		sb.WriteString("  " + errStyle.Render(m.err.Error()) + "\n")
	}
	sb.WriteString("\n  " + m.help.View(m.keys) + "\n")
	return sb.String()
}

// progressBar shows the elapsed share of the phase.
func progressBar(left, total int) string {
	if total <= 0 {
		total = 1
	}
	elapsed := total - left
	elapsed = max(0, min(elapsed, total))
	filled := elapsed * barWidth / total
	return barFullStyle.Render(strings.Repeat("█", filled)) +
		barEmptyStyle.Render(strings.Repeat("░", barWidth-filled))
}

// ── Commands ────────────

func (m Model) refresh() tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		st, err := ctrl.State(ctx)
		if err != nil {
			return errMsg{err}
		}
		return stateMsg{st}
	}
}

// call runs fn against the daemon and then reloads the state.
func (m Model) call(fn func(ctx context.Context) error) tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		if err := fn(ctx); err != nil {
			return errMsg{err}
		}
		st, err := ctrl.State(ctx)
		if err != nil {
			return errMsg{err}
		}
		return stateMsg{st}
	}
}

// Run starts the view and follows the daemon's event stream until the user
// quits.
func Run(ctx context.Context, ctrl Controller) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(New(ctx, ctrl), tea.WithAltScreen())
	go func() {
		err := ctrl.Events(ctx, func(line api.EventLine) error {
			p.Send(eventMsg{line})
			return nil
		})
		if ctx.Err() == nil {
			p.Send(streamEndedMsg{err})
		}
	}()

	_, err := p.Run()
	return err
}
