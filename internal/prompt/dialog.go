package prompt

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type keyMap struct {
	Yes    key.Binding
	No     key.Binding
	Toggle key.Binding
	Accept key.Binding
	Cancel key.Binding
}

func defaultKeyMap() keyMap {
	return keyMap{
		Yes: key.NewBinding(
			key.WithKeys("y", "Y"),
			key.WithHelp("y", "yes"),
		),
		No: key.NewBinding(
			key.WithKeys("n", "N"),
			key.WithHelp("n", "no"),
		),
		Toggle: key.NewBinding(
			key.WithKeys("left", "right", "tab", "h", "l"),
			key.WithHelp("←/→", "choose"),
		),
		Accept: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "confirm"),
		),
		Cancel: key.NewBinding(
			key.WithKeys("esc", "ctrl+c", "q"),
			key.WithHelp("esc", "cancel"),
		),
	}
}

var (
	accentColor = lipgloss.Color("#00D4FF")
	mutedColor  = lipgloss.Color("#9CA3AF")
	borderColor = lipgloss.Color("#4B5563")

	dialogStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(borderColor).
			Padding(1, 2)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accentColor).
			MarginBottom(1)

	buttonStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Padding(0, 2)

	activeButtonStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#000000")).
				Background(accentColor).
				Bold(true).
				Padding(0, 2)

	helpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			MarginTop(1)
)

// confirmModel is a two-button dialog. Focus starts on No.
type confirmModel struct {
	title   string
	message string
	keys    keyMap
	yes     bool // focused button
	answer  bool
	done    bool
}

func newConfirmModel(title, message string) confirmModel {
	return confirmModel{title: title, message: message, keys: defaultKeyMap()}
}

func (m confirmModel) Init() tea.Cmd { return nil }

func (m confirmModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch {
	case key.Matches(keyMsg, m.keys.Yes):
		m.answer, m.done = true, true
		return m, tea.Quit
	case key.Matches(keyMsg, m.keys.No), key.Matches(keyMsg, m.keys.Cancel):
		m.answer, m.done = false, true
		return m, tea.Quit
	case key.Matches(keyMsg, m.keys.Toggle):
		m.yes = !m.yes
	case key.Matches(keyMsg, m.keys.Accept):
		m.answer, m.done = m.yes, true
		return m, tea.Quit
	}
	return m, nil
}

func (m confirmModel) View() string {
	if m.done {
		return ""
	}
	yes, no := buttonStyle.Render("Yes"), activeButtonStyle.Render("No")
	if m.yes {
		yes, no = activeButtonStyle.Render("Yes"), buttonStyle.Render("No")
	}
	help := []string{}
	for _, b := range []key.Binding{m.keys.Yes, m.keys.No, m.keys.Toggle, m.keys.Accept, m.keys.Cancel} {
		h := b.Help()
		help = append(help, h.Key+" "+h.Desc)
	}
	body := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render(m.title),
		m.message,
		"",
		lipgloss.JoinHorizontal(lipgloss.Top, yes, "  ", no),
		helpStyle.Render(strings.Join(help, " • ")),
	)
	return dialogStyle.Render(body) + "\n"
}
