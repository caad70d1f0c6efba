package watch

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/tildaslashalef/plansync/internal/sync"
)

// Gruvbox-inspired palette
var (
	colorSuccess = lipgloss.AdaptiveColor{Light: "#98971a", Dark: "#b8bb26"}
	colorWarning = lipgloss.AdaptiveColor{Light: "#d79921", Dark: "#fabd2f"}
	colorError   = lipgloss.AdaptiveColor{Light: "#cc241d", Dark: "#fb4934"}
	colorInfo    = lipgloss.AdaptiveColor{Light: "#458588", Dark: "#83a598"}
	colorAccent  = lipgloss.AdaptiveColor{Light: "#b16286", Dark: "#d3869b"}
	colorSubtle  = lipgloss.AdaptiveColor{Light: "#928374", Dark: "#7c6f64"}
	colorBorder  = lipgloss.AdaptiveColor{Light: "#d5c4a1", Dark: "#504945"}
)

// Styles contains the styles used by the watch view
type Styles struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Subtle  lipgloss.Style
	Error   lipgloss.Style
	Warning lipgloss.Style
	Success lipgloss.Style
	Spinner lipgloss.Style
	Panel   lipgloss.Style
	Badges  map[sync.Status]lipgloss.Style
}

// DefaultStyles returns the default styles
func DefaultStyles() Styles {
	badge := lipgloss.NewStyle().Bold(true).Padding(0, 1)

	return Styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(colorAccent).MarginBottom(1),
		Label:   lipgloss.NewStyle().Bold(true).Width(14),
		Subtle:  lipgloss.NewStyle().Foreground(colorSubtle),
		Error:   lipgloss.NewStyle().Foreground(colorError),
		Warning: lipgloss.NewStyle().Foreground(colorWarning),
		Success: lipgloss.NewStyle().Foreground(colorSuccess),
		Spinner: lipgloss.NewStyle().Foreground(colorAccent),
		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorBorder).
			Padding(0, 1),
		Badges: map[sync.Status]lipgloss.Style{
			sync.StatusIdle:     badge.Foreground(colorSubtle),
			sync.StatusSyncing:  badge.Foreground(colorInfo),
			sync.StatusSynced:   badge.Foreground(colorSuccess),
			sync.StatusError:    badge.Foreground(colorError),
			sync.StatusConflict: badge.Foreground(colorWarning),
		},
	}
}

// Badge renders a status label
func (s Styles) Badge(status sync.Status) string {
	style, ok := s.Badges[status]
	if !ok {
		style = s.Subtle
	}
	return style.Render(string(status))
}
