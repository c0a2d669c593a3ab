package render

import (
	"fmt"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	pagerHeader = 3
	pagerFooter = 2
)

var pagerBorder = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(Surface2)

// Pager is a full-screen scrollable view of rendered output.
type Pager struct {
	viewport viewport.Model
	title    string
	content  string
	ready    bool
	width    int
}

func NewPager(title, content string) Pager {
	return Pager{title: title, content: content}
}

func (m Pager) Init() tea.Cmd {
	return nil
}

func (m Pager) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "g", "home":
			m.viewport.GotoTop()
			return m, nil
		case "G", "end":
			m.viewport.GotoBottom()
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		h := max(1, msg.Height-pagerHeader-pagerFooter)
		if !m.ready {
			m.viewport = viewport.New(max(1, msg.Width-2), h)
			m.viewport.SetContent(m.content)
			m.ready = true
		} else {
			m.viewport.Width = max(1, msg.Width-2)
			m.viewport.Height = h
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Pager) View() string {
	if !m.ready {
		return "Loading..."
	}

	percent := lipgloss.NewStyle().
		Foreground(Lavender).
		Render(fmt.Sprintf(" %d%% ", int(m.viewport.ScrollPercent()*100)))
	header := lipgloss.JoinHorizontal(lipgloss.Center, Title.Render(m.title), "  ", percent)
	footer := Dim.Render(" ↑/↓ j/k scroll • g/G top/bottom • q quit ")

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		"",
		pagerBorder.Width(max(1, m.width-2)).Render(m.viewport.View()),
		footer,
	)
}

// RunPager blocks until the user quits.
func RunPager(title, content string) error {
	_, err := tea.NewProgram(NewPager(title, content), tea.WithAltScreen()).Run()
	return err
}
