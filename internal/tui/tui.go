// Package tui renders probe status transitions live while a check runs.
// It is strictly an observer: it consumes outcome updates from the
// orchestrator and never feeds anything back into probe state.
package tui

import (
	"context"
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/baptistax/tunnelprobe/internal/orchestrator"
	"github.com/baptistax/tunnelprobe/internal/report"
)

var (
	headerStyle  = lipgloss.NewStyle().Bold(true)
	passedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	failedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	erroredStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	pendingStyle = lipgloss.NewStyle().Faint(true)
)

type outcomeMsg report.Outcome

type doneMsg struct{}

type model struct {
	order    []string
	outcomes map[string]report.Outcome
	done     bool
}

func newModel(tests []string) model {
	order := append([]string(nil), tests...)
	outcomes := make(map[string]report.Outcome, len(order))
	for _, name := range order {
		outcomes[name] = report.NewOutcome(name)
	}
	return model{order: order, outcomes: outcomes}
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case outcomeMsg:
		m.outcomes[msg.Name] = report.Outcome(msg)
		return m, nil
	case doneMsg:
		m.done = true
		return m, tea.Quit
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("tunnelprobe"))
	b.WriteString("\n\n")

	for _, name := range m.order {
		o := m.outcomes[name]
		var line string
		switch o.Status {
		case report.StatusPassed:
			line = passedStyle.Render(fmt.Sprintf("✓ %-18s %s", name, o.Message))
		case report.StatusFailed:
			line = failedStyle.Render(fmt.Sprintf("✗ %-18s %s", name, o.Message))
		case report.StatusError:
			line = erroredStyle.Render(fmt.Sprintf("! %-18s %s", name, o.Message))
		case report.StatusRunning:
			line = fmt.Sprintf("… %-18s", name)
		default:
			line = pendingStyle.Render(fmt.Sprintf("· %-18s", name))
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	if !m.done {
		b.WriteString(pendingStyle.Render("\npress q to abort\n"))
	}
	return b.String()
}

// Run executes the check under a live status view and returns the final
// report. Quitting the view early cancels the run.
func Run(ctx context.Context, orch *orchestrator.Orchestrator) (report.Report, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	tests := report.AllTests
	if orch.PrimaryOnly {
		tests = report.PrimaryTests
	}
	p := tea.NewProgram(newModel(tests), tea.WithContext(ctx))
	orch.OnUpdate = func(o report.Outcome) {
		p.Send(outcomeMsg(o))
	}

	results := make(chan report.Report, 1)
	go func() {
		r := orch.Run(runCtx)
		results <- r
		p.Send(doneMsg{})
	}()

	if _, err := p.Run(); err != nil {
		cancel()
		<-results
		return report.Report{}, err
	}

	cancel()
	return <-results, nil
}
