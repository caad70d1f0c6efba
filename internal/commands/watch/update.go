package watch

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/tildaslashalef/plansync/internal/sync"
)

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keymap.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keymap.Help):
			m.showHelp = !m.showHelp
			m.help.ShowAll = m.showHelp
			return m, nil
		case key.Matches(msg, m.keymap.Sync):
			if m.manual || m.state.Status == sync.StatusSyncing {
				m.notice = "A sync is already running"
				return m, nil
			}
			m.manual = true
			m.notice = ""
			return m, m.syncNow()
		case key.Matches(msg, m.keymap.Cancel):
			m.engine.CancelPending()
			m.pending = m.engine.HasPending()
			m.notice = "Pending sync cancelled"
			return m, nil
		}

	case StateMsg:
		m.state = sync.SyncState(msg)
		m.history = m.engine.History()
		m.pending = m.engine.HasPending()
		return m, waitForState(m.states)

	case statesClosedMsg:
		return m, tea.Quit

	case SyncDoneMsg:
		m.manual = false
		result := msg.Result
		m.lastResult = &result
		m.history = m.engine.History()
		m.pending = m.engine.HasPending()
		if result.Success {
			m.notice = "Sync finished"
		} else {
			m.notice = "Sync failed: " + result.Error
		}
		return m, nil

	case tickMsg:
		m.pending = m.engine.HasPending()
		return m, tick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}
