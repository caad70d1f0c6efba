package sync

import (
	"context"
	gosync "sync"

	"github.com/tildaslashalef/plansync/internal/loggy"
)

// DefaultHistoryLimit is the number of entries kept in memory
const DefaultHistoryLimit = 50

// HistoryStore persists history entries
type HistoryStore interface {
	// SaveEntry stores a new entry
	SaveEntry(ctx context.Context, entry *SyncLogEntry) error

	// RecentEntries returns up to limit entries, newest first
	RecentEntries(ctx context.Context, limit int) ([]*SyncLogEntry, error)

	// Trim deletes all but the newest keep entries
	Trim(ctx context.Context, keep int) error
}

// History is a bounded, newest-first log of pipeline stage outcomes
type History struct {
	mu      gosync.RWMutex
	entries []SyncLogEntry
	limit   int
	store   HistoryStore
	logger  *loggy.Logger
}

// NewHistory creates a history capped at limit entries. store may be nil.
func NewHistory(limit int, store HistoryStore, logger *loggy.Logger) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{
		limit:  limit,
		store:  store,
		logger: logger,
	}
}

// Append adds entry at the front, dropping the oldest entries beyond the cap.
// Persistence failures are logged and otherwise ignored.
func (h *History) Append(ctx context.Context, entry SyncLogEntry) {
	h.mu.Lock()
	entries := make([]SyncLogEntry, 0, min(len(h.entries)+1, h.limit))
	entries = append(entries, entry)
	for _, e := range h.entries {
		if len(entries) == h.limit {
			break
		}
		entries = append(entries, e)
	}
	h.entries = entries
	h.mu.Unlock()

	if h.store == nil {
		return
	}

	if err := h.store.SaveEntry(ctx, &entry); err != nil {
		h.logger.Warn("Failed to persist sync log entry", "id", entry.ID, "error", err)
		return
	}
	if err := h.store.Trim(ctx, h.limit); err != nil {
		h.logger.Warn("Failed to trim sync log", "error", err)
	}
}

// Entries returns a copy of the history, newest first
func (h *History) Entries() []SyncLogEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()

	out := make([]SyncLogEntry, len(h.entries))
	copy(out, h.entries)
	return out
}

// Len returns the number of entries held
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

// Load replaces the in-memory entries with the newest persisted ones
func (h *History) Load(ctx context.Context) error {
	if h.store == nil {
		return nil
	}

	stored, err := h.store.RecentEntries(ctx, h.limit)
	if err != nil {
		return err
	}

	entries := make([]SyncLogEntry, 0, len(stored))
	for _, e := range stored {
		entries = append(entries, *e)
	}

	h.mu.Lock()
	h.entries = entries
	h.mu.Unlock()

	h.logger.Debug("Loaded sync history", "entries", len(entries))
	return nil
}
