package watch

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/tildaslashalef/plansync/internal/loggy"
)

// syncNow runs the pipeline outside the event loop
func (m Model) syncNow() tea.Cmd {
	engine := m.engine
	ctx := m.ctx
	return func() tea.Msg {
		loggy.Debug("Manual sync requested from watch view")
		return SyncDoneMsg{Result: engine.SyncNow(ctx)}
	}
}
