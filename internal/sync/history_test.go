package sync

import (
	"context"
	"errors"
	"fmt"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tildaslashalef/plansync/internal/loggy"
)

// memoryStore is an in-memory HistoryStore
type memoryStore struct {
	mu      gosync.Mutex
	entries []*SyncLogEntry // oldest first
	saveErr error
	trims   int
}

func (m *memoryStore) SaveEntry(ctx context.Context, entry *SyncLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	copied := *entry
	m.entries = append(m.entries, &copied)
	return nil
}

func (m *memoryStore) RecentEntries(ctx context.Context, limit int) ([]*SyncLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*SyncLogEntry
	for i := len(m.entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, m.entries[i])
	}
	return out, nil
}

func (m *memoryStore) Trim(ctx context.Context, keep int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trims++
	if len(m.entries) > keep {
		m.entries = m.entries[len(m.entries)-keep:]
	}
	return nil
}

func entry(i int) SyncLogEntry {
	return SyncLogEntry{
		ID:        fmt.Sprintf("log-%03d", i),
		Timestamp: time.Date(2024, 3, 1, 12, 0, i, 0, time.UTC),
		Operation: OperationCommit,
		Outcome:   OutcomeSuccess,
		Message:   fmt.Sprintf("entry %d", i),
	}
}

func TestHistoryNewestFirstAndCapped(t *testing.T) {
	h := NewHistory(5, nil, loggy.NewNoopLogger())

	for i := 1; i <= 8; i++ {
		h.Append(context.Background(), entry(i))
	}

	entries := h.Entries()
	require.Len(t, entries, 5)
	assert.Equal(t, "entry 8", entries[0].Message)
	assert.Equal(t, "entry 4", entries[4].Message)

	// Entries returns a copy
	entries[0].Message = "changed"
	assert.Equal(t, "entry 8", h.Entries()[0].Message)
}

func TestHistoryDefaultLimit(t *testing.T) {
	h := NewHistory(0, nil, loggy.NewNoopLogger())
	for i := 0; i < 60; i++ {
		h.Append(context.Background(), entry(i))
	}
	assert.Equal(t, DefaultHistoryLimit, h.Len())
}

func TestHistoryPersistsAndLoads(t *testing.T) {
	store := &memoryStore{}
	h := NewHistory(3, store, loggy.NewNoopLogger())

	for i := 1; i <= 4; i++ {
		h.Append(context.Background(), entry(i))
	}
	assert.Equal(t, 4, store.trims)
	assert.Len(t, store.entries, 3)

	reloaded := NewHistory(3, store, loggy.NewNoopLogger())
	require.NoError(t, reloaded.Load(context.Background()))
	assert.Equal(t, h.Entries(), reloaded.Entries())
}

func TestHistoryIgnoresStoreFailures(t *testing.T) {
	store := &memoryStore{saveErr: errors.New("database is locked")}
	h := NewHistory(3, store, loggy.NewNoopLogger())

	h.Append(context.Background(), entry(1))

	assert.Equal(t, 1, h.Len())
	assert.Equal(t, 0, store.trims)
}
