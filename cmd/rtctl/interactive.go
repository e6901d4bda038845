package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	fdStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#98FB98"))

	pathStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

const historyLimit = 12

type entry struct {
	command string
	output  string
	failed  bool
}

type interactiveModel struct {
	sh      *shell
	root    string
	history []entry
	input   textinput.Model
}

func newInteractiveModel(sh *shell, root string) *interactiveModel {
	ti := textinput.New()
	ti.Placeholder = "help"
	ti.Prompt = "> "
	ti.Width = 60
	ti.Focus()

	return &interactiveModel{
		sh:    sh,
		root:  root,
		input: ti,
	}
}

func (m *interactiveModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *interactiveModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "ctrl+c", "esc":
			return m, tea.Quit

		case "enter":
			line := strings.TrimSpace(m.input.Value())
			m.input.SetValue("")
			if line == "quit" || line == "exit" {
				return m, tea.Quit
			}
			m.run(line)
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *interactiveModel) run(line string) {
	if line == "" {
		return
	}
	out, err := m.sh.exec(line)
	e := entry{command: line, output: out}
	if err != nil {
		e.output = err.Error()
		e.failed = true
	}
	m.history = append(m.history, e)
	if len(m.history) > historyLimit {
		m.history = m.history[len(m.history)-historyLimit:]
	}
}

func (m *interactiveModel) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Descriptor Shell"))
	b.WriteString(" ")
	b.WriteString(pathStyle.Render(m.root))
	if cwd, err := m.sh.slots.FsGetcwd(); err == nil {
		b.WriteString(" ")
		b.WriteString(cwd)
	}
	b.WriteString("\n\n")

	b.WriteString("Open descriptors:\n")
	for _, d := range m.sh.descriptors() {
		b.WriteString(fmt.Sprintf("  %s  %s\n", fdStyle.Render(fmt.Sprintf("%3d", d.fd)), d.what))
	}
	b.WriteString("\n")

	for _, e := range m.history {
		b.WriteString(helpStyle.Render("> " + e.command))
		b.WriteString("\n")
		if e.output == "" {
			continue
		}
		if e.failed {
			b.WriteString(errorStyle.Render(e.output))
		} else {
			b.WriteString(resultStyle.Render(e.output))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")
	b.WriteString(helpStyle.Render("enter run • help commands • esc quit"))
	return b.String()
}

func runInteractive(sh *shell, root string) error {
	p := tea.NewProgram(newInteractiveModel(sh, root), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
