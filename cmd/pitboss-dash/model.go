package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// refreshInterval is how often the dashboard re-reads the state database.
const refreshInterval = 2 * time.Second

// tickMsg is sent by Bubble Tea on every tick interval.
// Used to trigger periodic data refresh from the state database.
type tickMsg time.Time

// snapshotMsg carries a fetched snapshot. Err is set when the fetch failed,
// in which case Snap is nil and the previous snapshot stays on screen.
type snapshotMsg struct {
	Snap *Snapshot
	Err  error
}

// tickCmd returns a command that sends a tickMsg after refreshInterval.
func tickCmd() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// fetchSnapshotCmd returns a tea.Cmd that reads the state database.
func fetchSnapshotCmd(dbPath string) tea.Cmd {
	return func() tea.Msg {
		snap, err := FetchSnapshot(context.Background(), dbPath)
		return snapshotMsg{Snap: snap, Err: err}
	}
}

// Model is the Bubble Tea model for the pitboss dashboard.
type Model struct {
	dbPath  string
	theme   Theme
	styles  Styles
	spinner spinner.Model

	snap    *Snapshot
	fetched bool
	err     error

	width  int
	height int
}

// newModel creates the dashboard model pointed at dbPath.
func newModel(dbPath string) Model {
	theme := DefaultTheme()
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(theme.Secondary)
	return Model{
		dbPath:  dbPath,
		theme:   theme,
		styles:  NewStyles(theme),
		spinner: sp,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, fetchSnapshotCmd(m.dbPath), tickCmd())
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "r":
			return m, fetchSnapshotCmd(m.dbPath)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		return m, tea.Batch(fetchSnapshotCmd(m.dbPath), tickCmd())

	case snapshotMsg:
		m.fetched = true
		m.err = msg.Err
		if msg.Snap != nil {
			m.snap = msg.Snap
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	var sb strings.Builder

	sb.WriteString(m.styles.Title.Render("pitboss"))
	sb.WriteString(m.styles.Muted.Render("  q quit · r refresh"))
	sb.WriteString("\n\n")

	if !m.fetched {
		sb.WriteString(m.spinner.View())
		sb.WriteString(" loading state database...\n")
		return sb.String()
	}
	if m.snap == nil {
		sb.WriteString(m.styles.Urgent.Render(fmt.Sprintf("cannot read state db: %v", m.err)))
		sb.WriteString("\n")
		sb.WriteString(m.styles.Muted.Render("run `pitboss init` and `pitboss serve` first"))
		sb.WriteString("\n")
		return sb.String()
	}

	sb.WriteString(m.renderSummary())
	sb.WriteString(m.renderAlerts())
	sb.WriteString(m.renderAccounts())
	sb.WriteString(m.renderEvents())

	if m.err != nil {
		sb.WriteString("\n")
		sb.WriteString(m.styles.Warn.Render(fmt.Sprintf("last refresh failed: %v", m.err)))
		sb.WriteString("\n")
	}
	return sb.String()
}

// renderSummary shows the one-line totals header.
func (m Model) renderSummary() string {
	line := fmt.Sprintf("%d transactions · revenue %d coins · %d active alerts · as of %s",
		m.snap.Transactions, m.snap.Revenue, len(m.snap.Alerts),
		m.snap.FetchedAt.Format("15:04:05"))
	return m.styles.Muted.Render(line) + "\n"
}

// renderAlerts shows unresolved alerts, most severe first.
func (m Model) renderAlerts() string {
	var sb strings.Builder
	sb.WriteString(m.styles.Section.Render(m.styles.Header.Render("Alerts")))
	sb.WriteString("\n")

	if len(m.snap.Alerts) == 0 {
		sb.WriteString(m.styles.Muted.Render("  none active"))
		sb.WriteString("\n")
		return sb.String()
	}

	for _, a := range m.snap.Alerts {
		sev := m.severityStyle(a.Severity).Render(fmt.Sprintf("%-8s", a.Severity))
		sb.WriteString(fmt.Sprintf("  %s %s  %-20s %s\n",
			a.CreatedAt.Format("15:04:05"), sev, a.Type, a.Title))
	}
	return sb.String()
}

// renderAccounts shows the top wallets by coin balance.
func (m Model) renderAccounts() string {
	var sb strings.Builder
	sb.WriteString(m.styles.Section.Render(m.styles.Header.Render("Accounts")))
	sb.WriteString("\n")

	if len(m.snap.Accounts) == 0 {
		sb.WriteString(m.styles.Muted.Render("  no wallets yet"))
		sb.WriteString("\n")
		return sb.String()
	}

	header := fmt.Sprintf("  %-20s %12s %12s %10s", "Account", "Coins", "Redeemable", "Loyalty")
	sb.WriteString(m.styles.Col.Bold(true).Foreground(m.theme.Primary).Render(header))
	sb.WriteString("\n  ")
	sb.WriteString(strings.Repeat("─", 58))
	sb.WriteString("\n")
	for _, a := range m.snap.Accounts {
		sb.WriteString(fmt.Sprintf("  %-20s %12d %12d %10d\n",
			a.AccountID, a.Coins, a.Redeemable, a.Loyalty))
	}
	return sb.String()
}

// renderEvents shows the recent activity feed.
func (m Model) renderEvents() string {
	var sb strings.Builder
	sb.WriteString(m.styles.Section.Render(m.styles.Header.Render("Activity")))
	sb.WriteString("\n")

	if len(m.snap.Events) == 0 {
		sb.WriteString(m.styles.Muted.Render("  no recorded activity"))
		sb.WriteString("\n")
		return sb.String()
	}

	for _, e := range m.snap.Events {
		sb.WriteString(fmt.Sprintf("  %s  %-20s %-12s %s\n",
			e.CreatedAt.Format("15:04:05"), e.Type, e.Subject,
			m.styles.Muted.Render(e.Source)))
	}
	return sb.String()
}

// severityStyle maps an alert severity to its display style.
func (m Model) severityStyle(severity string) lipgloss.Style {
	switch severity {
	case "critical", "high":
		return m.styles.Urgent
	case "medium":
		return m.styles.Warn
	default:
		return m.styles.OK
	}
}
