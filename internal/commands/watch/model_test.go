package watch

import (
	"context"
	gosync "sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tildaslashalef/plansync/internal/sync"
)

type fakeEngine struct {
	mu        gosync.Mutex
	state     sync.SyncState
	history   []sync.SyncLogEntry
	pending   bool
	syncCalls int
	cancelled int
	result    sync.SyncResult
}

func (f *fakeEngine) State() sync.SyncState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeEngine) History() []sync.SyncLogEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sync.SyncLogEntry(nil), f.history...)
}

func (f *fakeEngine) SyncNow(ctx context.Context) sync.SyncResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.syncCalls++
	return f.result
}

func (f *fakeEngine) CancelPending() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled++
	f.pending = false
}

func (f *fakeEngine) HasPending() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending
}

func newTestModel(engine *fakeEngine) (Model, chan sync.SyncState) {
	states := make(chan sync.SyncState, 4)
	return NewModel(context.Background(), engine, states, "/home/me/planner", "origin"), states
}

func keyPress(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestSyncKeyRunsSyncNow(t *testing.T) {
	engine := &fakeEngine{state: sync.SyncState{Status: sync.StatusIdle}, result: sync.SyncResult{Success: true}}
	m, _ := newTestModel(engine)

	updated, cmd := m.Update(keyPress('s'))
	require.NotNil(t, cmd)
	m = updated.(Model)
	assert.True(t, m.manual)

	// A second press while the first runs does nothing
	updated, again := m.Update(keyPress('s'))
	assert.Nil(t, again)
	m = updated.(Model)

	msg := cmd()
	done, ok := msg.(SyncDoneMsg)
	require.True(t, ok)
	assert.True(t, done.Result.Success)
	assert.Equal(t, 1, engine.syncCalls)

	updated, _ = m.Update(done)
	m = updated.(Model)
	assert.False(t, m.manual)
	assert.Equal(t, "Sync finished", m.notice)
}

func TestSyncFailureShowsError(t *testing.T) {
	engine := &fakeEngine{}
	m, _ := newTestModel(engine)

	updated, _ := m.Update(SyncDoneMsg{Result: sync.SyncResult{Success: false, Error: "sync already in progress"}})
	m = updated.(Model)

	assert.Contains(t, m.View(), "Sync failed: sync already in progress")
}

func TestCancelKey(t *testing.T) {
	engine := &fakeEngine{pending: true}
	m, _ := newTestModel(engine)
	assert.True(t, m.pending)

	updated, _ := m.Update(keyPress('c'))
	m = updated.(Model)

	assert.Equal(t, 1, engine.cancelled)
	assert.False(t, m.pending)
}

func TestStateMessagesUpdateView(t *testing.T) {
	engine := &fakeEngine{}
	m, states := newTestModel(engine)

	now := time.Now()
	engine.history = []sync.SyncLogEntry{{
		Timestamp: now,
		Operation: sync.OperationPull,
		Outcome:   sync.OutcomeConflict,
		Message:   "Merge conflict in 1 file",
	}}
	conflict := sync.SyncState{
		Status:        sync.StatusConflict,
		LastSyncTime:  &now,
		ConflictFiles: []string{"tasks/buy-milk.md"},
	}

	updated, cmd := m.Update(StateMsg(conflict))
	require.NotNil(t, cmd, "keeps listening for states")
	m = updated.(Model)

	view := m.View()
	assert.Contains(t, view, "conflict")
	assert.Contains(t, view, "tasks/buy-milk.md")
	assert.Contains(t, view, "Merge conflict in 1 file")
	assert.Contains(t, view, "/home/me/planner")

	states <- sync.SyncState{Status: sync.StatusSynced}
	msg := cmd()
	assert.Equal(t, StateMsg(sync.SyncState{Status: sync.StatusSynced}), msg)

	close(states)
	_, next := m.Update(msg)
	assert.Equal(t, statesClosedMsg{}, next())
}

func TestQuitKey(t *testing.T) {
	m, _ := newTestModel(&fakeEngine{})

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestEmptyHistory(t *testing.T) {
	m, _ := newTestModel(&fakeEngine{})
	assert.Contains(t, m.View(), "No sync activity yet")
	assert.Contains(t, m.View(), "never")
}
