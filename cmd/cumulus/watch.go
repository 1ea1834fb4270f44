package main

import (
	"fmt"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	spinnerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))
	doneMark     = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).SetString("✓")
	failMark     = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).SetString("✗")
)

// taskDoneMsg is delivered when the watched task reaches its terminal state.
type taskDoneMsg struct {
	err error
}

// watchModel renders a spinner next to the transfer label until the task's
// done channel closes.
type watchModel struct {
	spinner  spinner.Model
	label    string
	done     <-chan struct{}
	err      func() error
	finished bool
	failed   bool
}

func newWatchModel(label string, done <-chan struct{}, errFn func() error) watchModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = spinnerStyle
	return watchModel{spinner: sp, label: label, done: done, err: errFn}
}

func waitForTask(done <-chan struct{}, errFn func() error) tea.Cmd {
	return func() tea.Msg {
		<-done
		return taskDoneMsg{err: errFn()}
	}
}

func (m watchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForTask(m.done, m.err))
}

func (m watchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case taskDoneMsg:
		m.finished = true
		m.failed = msg.err != nil
		return m, tea.Quit
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		}
		return m, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	default:
		return m, nil
	}
}

func (m watchModel) View() string {
	if m.finished {
		mark := doneMark
		if m.failed {
			mark = failMark
		}
		return fmt.Sprintf("%s %s\n", mark, m.label)
	}
	return fmt.Sprintf("%s %s\n", m.spinner.View(), m.label)
}

// watchTask runs the live view until the task resolves or the user quits.
// It reports whether the task actually finished; the task's own error is
// left for the caller to collect.
func watchTask(label string, done <-chan struct{}, errFn func() error) (bool, error) {
	program := tea.NewProgram(newWatchModel(label, done, errFn))
	final, err := program.Run()
	if err != nil {
		return false, fmt.Errorf("error running task view: %w", err)
	}
	if m, ok := final.(watchModel); ok {
		return m.finished, nil
	}
	return false, nil
}
