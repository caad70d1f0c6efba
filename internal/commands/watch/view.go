package watch

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"
	"github.com/tildaslashalef/plansync/internal/sync"
)

// View renders the watch view
func (m Model) View() string {
	var sb strings.Builder

	sb.WriteString(m.styles.Title.Render("plansync"))
	sb.WriteString("\n")
	sb.WriteString(m.renderState())
	sb.WriteString("\n")
	sb.WriteString(m.renderHistory())
	sb.WriteString("\n")

	if m.notice != "" {
		sb.WriteString(m.styles.Subtle.Render(m.notice))
		sb.WriteString("\n")
	}

	if m.showHelp {
		sb.WriteString(m.help.View(m.keymap))
	} else {
		sb.WriteString(m.help.ShortHelpView(m.keymap.ShortHelp()))
	}
	sb.WriteString("\n")

	return sb.String()
}

func (m Model) renderState() string {
	wrap := max(m.width-20, 20)
	row := func(label, value string) string {
		return lipgloss.JoinHorizontal(lipgloss.Top, m.styles.Label.Render(label), value)
	}

	status := m.styles.Badge(m.state.Status)
	if m.state.Status == sync.StatusSyncing || m.manual {
		status = m.spinner.View() + " " + status
	}

	lastSync := "never"
	if m.state.LastSyncTime != nil {
		lastSync = fmt.Sprintf("%s (%s ago)",
			m.state.LastSyncTime.Local().Format("15:04:05"),
			time.Since(*m.state.LastSyncTime).Round(time.Second))
	}

	pending := fmt.Sprintf("%d", m.state.PendingChanges)
	if m.pending {
		pending += m.styles.Subtle.Render(" (sync scheduled)")
	}

	rows := []string{
		row("Repository", m.repo),
		row("Remote", m.remote),
		row("Status", status),
		row("Last sync", lastSync),
		row("Pending", pending),
	}

	if m.state.Error != "" {
		rows = append(rows, row("Error", m.styles.Error.Render(wordwrap.String(m.state.Error, wrap))))
	}

	if len(m.state.ConflictFiles) > 0 {
		files := m.styles.Warning.Render(strings.Join(m.state.ConflictFiles, "\n"))
		rows = append(rows,
			row("Conflicts", files),
			m.styles.Subtle.Render("Run `plansync conflicts` to inspect and `plansync resolve` to resolve."))
	}

	return m.styles.Panel.Render(strings.Join(rows, "\n"))
}

func (m Model) renderHistory() string {
	if len(m.history) == 0 {
		return m.styles.Subtle.Render("No sync activity yet")
	}

	n := min(len(m.history), historyRows)
	lines := make([]string, 0, n)
	for _, entry := range m.history[:n] {
		lines = append(lines, m.renderEntry(entry))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderEntry(entry sync.SyncLogEntry) string {
	var outcome string
	switch entry.Outcome {
	case sync.OutcomeSuccess:
		outcome = m.styles.Success.Render("✓")
	case sync.OutcomeConflict:
		outcome = m.styles.Warning.Render("!")
	default:
		outcome = m.styles.Error.Render("✗")
	}

	message, _, _ := strings.Cut(entry.Message, "\n")
	return fmt.Sprintf("%s %s %-7s %s",
		m.styles.Subtle.Render(entry.Timestamp.Local().Format("15:04:05")),
		outcome,
		entry.Operation,
		message)
}
