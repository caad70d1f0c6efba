package watch

import (
	"time"

	"github.com/tildaslashalef/plansync/internal/sync"
)

type (
	// StateMsg carries a state published by the engine
	StateMsg sync.SyncState

	// SyncDoneMsg is sent when a manual sync returns
	SyncDoneMsg struct {
		Result sync.SyncResult
	}

	// tickMsg refreshes values that change without a state update
	tickMsg time.Time

	// statesClosedMsg is sent once the state feed is closed
	statesClosedMsg struct{}
)
