package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
)

type taskDoneMsg struct {
	err error
}

type spinnerModel struct {
	err     error
	run     func() error
	label   string
	spinner spinner.Model
	done    bool
}

func newSpinnerModel(label string, run func() error) spinnerModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = InfoStyle

	return spinnerModel{
		spinner: s,
		label:   label,
		run:     run,
	}
}

func (m spinnerModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		return taskDoneMsg{err: m.run()}
	})
}

func (m spinnerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case taskDoneMsg:
		m.done = true
		m.err = msg.err
		return m, tea.Quit
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m spinnerModel) View() string {
	if m.done {
		return ""
	}
	return fmt.Sprintf("%s %s\n", m.spinner.View(), SubtleStyle.Render(m.label))
}

// RunWithSpinner runs fn while a spinner with label is shown on w, and
// returns the error of fn. Cancel ctx to stop fn; the spinner leaves signal
// handling to the caller.
func RunWithSpinner(ctx context.Context, w io.Writer, label string, fn func(ctx context.Context) error) error {
	m := newSpinnerModel(label, func() error { return fn(ctx) })

	p := tea.NewProgram(m,
		tea.WithOutput(w),
		tea.WithInput(nil),
		tea.WithoutSignalHandler(),
	)

	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("spinner: %w", err)
	}
	if fm, ok := final.(spinnerModel); ok {
		return fm.err
	}
	return nil
}
