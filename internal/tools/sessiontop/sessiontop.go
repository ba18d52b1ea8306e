// Package sessiontop is a terminal dashboard over the live session registry,
// for operators poking at a deployment without the HTTP API.
package sessiontop

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

type Row struct {
	SessionID string
	Username  string
	FamilyID  string
	IP        string
	UserAgent string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Source abstracts the store so the dashboard can be tested without a
// database.
type Source interface {
	ActiveSessions() ([]Row, error)
	RevokeSession(sessionID string) error
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("241"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57"))
	errStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

type refreshMsg struct {
	rows []Row
	err  error
}

type tickMsg time.Time

type model struct {
	source   Source
	rows     []Row
	cursor   int
	err      error
	interval time.Duration
}

func Run(source Source, refreshInterval time.Duration) error {
	if refreshInterval <= 0 {
		refreshInterval = 2 * time.Second
	}
	m := model{source: source, interval: refreshInterval}
	_, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.refresh(), m.tick())
}

func (m model) refresh() tea.Cmd {
	return func() tea.Msg {
		rows, err := m.source.ActiveSessions()
		return refreshMsg{rows: rows, err: err}
	}
}

func (m model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.rows)-1 {
				m.cursor++
			}
		case "r":
			return m, m.refresh()
		case "x":
			if m.cursor < len(m.rows) {
				row := m.rows[m.cursor]
				if err := m.source.RevokeSession(row.SessionID); err != nil {
					m.err = err
					return m, nil
				}
				return m, m.refresh()
			}
		}
	case refreshMsg:
		m.err = msg.err
		if msg.err == nil {
			m.rows = msg.rows
			if m.cursor >= len(m.rows) && len(m.rows) > 0 {
				m.cursor = len(m.rows) - 1
			}
		}
	case tickMsg:
		return m, tea.Batch(m.refresh(), m.tick())
	}
	return m, nil
}

func (m model) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("fleetway sessions"))
	b.WriteString("\n\n")
	b.WriteString(headerStyle.Render(fmt.Sprintf("%-36s  %-16s  %-15s  %-19s  %-19s", "SESSION", "ACCOUNT", "IP", "CREATED", "EXPIRES")))
	b.WriteString("\n")
	for i, row := range m.rows {
		line := fmt.Sprintf("%-36s  %-16s  %-15s  %-19s  %-19s",
			row.SessionID,
			truncate(row.Username, 16),
			truncate(row.IP, 15),
			row.CreatedAt.Local().Format("2006-01-02 15:04:05"),
			row.ExpiresAt.Local().Format("2006-01-02 15:04:05"),
		)
		if i == m.cursor {
			line = selectedStyle.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	if len(m.rows) == 0 {
		b.WriteString(helpStyle.Render("no active sessions"))
		b.WriteString("\n")
	}
	if m.err != nil {
		b.WriteString("\n")
		b.WriteString(errStyle.Render("error: " + m.err.Error()))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("↑/↓ move · x revoke · r refresh · q quit"))
	return b.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
