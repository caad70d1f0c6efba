// Package watch implements the live sync view shown by the watch command
package watch

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/tildaslashalef/plansync/internal/sync"
)

// historyRows is the number of history entries shown
const historyRows = 6

// refreshInterval bounds how stale the pending indicator can get
const refreshInterval = 500 * time.Millisecond

// Engine is the part of the sync engine the view drives
type Engine interface {
	State() sync.SyncState
	History() []sync.SyncLogEntry
	SyncNow(ctx context.Context) sync.SyncResult
	CancelPending()
	HasPending() bool
}

// Model is the Bubble Tea model for the watch view
type Model struct {
	ctx     context.Context
	engine  Engine
	states  <-chan sync.SyncState
	repo    string
	remote  string
	keymap  KeyMap
	help    help.Model
	spinner spinner.Model
	styles  Styles

	state      sync.SyncState
	history    []sync.SyncLogEntry
	pending    bool
	lastResult *sync.SyncResult
	manual     bool // a manual sync is running
	notice     string
	width      int
	showHelp   bool
}

// NewModel creates the view. states delivers engine states, typically fed
// by a hub subscription.
func NewModel(ctx context.Context, engine Engine, states <-chan sync.SyncState, repo, remote string) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot

	styles := DefaultStyles()
	s.Style = styles.Spinner

	return Model{
		ctx:     ctx,
		engine:  engine,
		states:  states,
		repo:    repo,
		remote:  remote,
		keymap:  DefaultKeyMap(),
		help:    help.New(),
		spinner: s,
		styles:  styles,
		state:   engine.State(),
		history: engine.History(),
		pending: engine.HasPending(),
		width:   80,
	}
}

// Init starts listening for states and the refresh tick
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, waitForState(m.states), tick())
}

// waitForState blocks until the next state arrives
func waitForState(states <-chan sync.SyncState) tea.Cmd {
	return func() tea.Msg {
		state, ok := <-states
		if !ok {
			return statesClosedMsg{}
		}
		return StateMsg(state)
	}
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
