package tui

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sokinpui/bpatch/bpatch"
	"github.com/sokinpui/bpatch/internal/ui"
	"github.com/sokinpui/bpatch/model"
)

// --- Messages ---
type summaryMsg struct {
	model.Summary
}

type errorMsg struct{ err error }

func (e errorMsg) Error() string { return e.err.Error() }

// ProgressMsg reports how many files have been processed.
type ProgressMsg struct {
	Current int
	Total   int
}

// StatusMsg carries a status line from the running app. Warnings are kept
// and shown with the final summary.
type StatusMsg struct {
	Text    string
	Warning bool
}

// --- Model ---
type Model struct {
	app      *bpatch.App
	ctx      context.Context
	cancel   context.CancelFunc
	spinner  spinner.Model
	state    state
	progress ProgressMsg
	status   string
	notices  []string
	summary  summaryMsg
	err      error
}

type state int

const (
	stateProcessing state = iota
	stateSummary
	stateError
)

// New creates the TUI model. The app runs with ctx; quitting cancels it.
func New(ctx context.Context, app *bpatch.App) Model {
	ctx, cancel := context.WithCancel(ctx)
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	return Model{
		app:     app,
		ctx:     ctx,
		cancel:  cancel,
		spinner: s,
		state:   stateProcessing,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.runApp)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.cancel()
			if m.state == stateProcessing {
				m.state = stateError
				m.err = context.Canceled
			}
			return m, tea.Quit
		}

	case ProgressMsg:
		m.progress = msg
		return m, nil

	case StatusMsg:
		m.status = msg.Text
		if msg.Warning {
			m.notices = append(m.notices, msg.Text)
		}
		return m, nil

	case summaryMsg:
		m.state = stateSummary
		m.summary = msg
		m.cancel()
		return m, tea.Quit

	case errorMsg:
		m.state = stateError
		m.err = msg.err
		m.cancel()
		return m, tea.Quit

	default:
		var cmd tea.Cmd
		if m.state == stateProcessing {
			m.spinner, cmd = m.spinner.Update(msg)
		}
		return m, cmd
	}
	return m, nil
}

func (m Model) View() string {
	switch m.state {
	case stateProcessing:
		if m.progress.Total > 0 {
			return fmt.Sprintf("%s Patching... [%d/%d]", m.spinner.View(), m.progress.Current, m.progress.Total)
		}
		if m.status != "" {
			return fmt.Sprintf("%s Processing... %s", m.spinner.View(), ui.FaintStyle.Render(m.status))
		}
		return fmt.Sprintf("%s Processing...", m.spinner.View())
	case stateError:
		return m.renderNotices() + ui.ErrorStyle.Render("Error: "+m.err.Error()) + "\n"
	case stateSummary:
		return m.renderNotices() + ui.RenderSummary(m.summary.Summary)
	default:
		return ""
	}
}

func (m Model) renderNotices() string {
	var b strings.Builder
	for _, n := range m.notices {
		b.WriteString(ui.WarningStyle.Render(n))
		b.WriteString("\n")
	}
	return b.String()
}

// Err returns the error the run ended with, if any.
func (m Model) Err() error {
	return m.err
}

// Summary returns the summary of a finished run.
func (m Model) Summary() model.Summary {
	return m.summary.Summary
}

func (m *Model) runApp() tea.Msg {
	summary, err := m.app.Execute(m.ctx)
	if err != nil {
		// Check for detailed error to print stack
		var detailed *bpatch.DetailedError
		if errors.As(err, &detailed) {
			// The TUI will exit, so we can print to stderr here for the stack trace.
			fmt.Fprintf(os.Stderr, "\n--- Stack Trace ---\n%s\n", detailed.Stack)
		}
		return errorMsg{err}
	}
	return summaryMsg{
		Summary: summary,
	}
}
