package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	confirmLabelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	confirmHintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// confirmModel is the yes/no question asked before a delete. It defaults to No.
type confirmModel struct {
	message  string
	path     string
	selected bool // true = Yes, false = No
	done     bool
	answer   bool
}

func newConfirmModel(message, path string) confirmModel {
	return confirmModel{message: message, path: path}
}

func (m confirmModel) Update(msg tea.KeyMsg) confirmModel {
	switch msg.String() {
	case "ctrl+c", "esc":
		m.answer = false
		m.done = true

	case "left", "right", "tab", "h", "l":
		m.selected = !m.selected

	case "y", "Y":
		m.selected = true
		m.answer = true
		m.done = true

	case "n", "N":
		m.selected = false
		m.answer = false
		m.done = true

	case "enter":
		m.answer = m.selected
		m.done = true
	}
	return m
}

func (m confirmModel) View() string {
	var sb strings.Builder

	sb.WriteString(confirmLabelStyle.Render(m.message) + "\n")
	sb.WriteString(confirmHintStyle.Render(m.path) + "\n\n")

	yesStyle := lipgloss.NewStyle().Padding(0, 2)
	noStyle := lipgloss.NewStyle().Padding(0, 2)

	if m.selected {
		yesStyle = yesStyle.Background(lipgloss.Color("212")).Foreground(lipgloss.Color("0"))
	} else {
		noStyle = noStyle.Background(lipgloss.Color("212")).Foreground(lipgloss.Color("0"))
	}

	sb.WriteString(fmt.Sprintf("  %s  %s\n", yesStyle.Render("Yes"), noStyle.Render("No")))
	sb.WriteString("\n" + confirmHintStyle.Render("←/→: select • enter: confirm • y/n: quick select • esc: cancel"))

	return sb.String()
}
