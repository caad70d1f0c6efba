package sync

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/tildaslashalef/plansync/internal/loggy"
	"github.com/tildaslashalef/plansync/internal/ulid"
)

var syncLogColumns = []string{"id", "timestamp", "operation", "outcome", "message", "details", "commit_ref"}

// SQLRepository stores sync history in the sync_logs table
type SQLRepository struct {
	db     *sql.DB
	logger *loggy.Logger
}

// NewSQLRepository creates a new SQL repository
func NewSQLRepository(db *sql.DB, logger *loggy.Logger) *SQLRepository {
	return &SQLRepository{
		db:     db,
		logger: logger,
	}
}

// SaveEntry inserts a history entry, assigning an ID when missing
func (r *SQLRepository) SaveEntry(ctx context.Context, entry *SyncLogEntry) error {
	if entry.ID == "" {
		entry.ID = ulid.LogEntryID()
	}

	q := squirrel.Insert("sync_logs").
		Columns(syncLogColumns...).
		Values(entry.ID, entry.Timestamp, entry.Operation, entry.Outcome, entry.Message, entry.Details, entry.CommitRef)

	query, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("building save sync log query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("executing save sync log query: %w", err)
	}

	return nil
}

// RecentEntries returns up to limit entries, newest first
func (r *SQLRepository) RecentEntries(ctx context.Context, limit int) ([]*SyncLogEntry, error) {
	q := squirrel.Select(syncLogColumns...).
		From("sync_logs").
		OrderBy("id DESC")

	if limit > 0 {
		q = q.Limit(uint64(limit))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building recent sync logs query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("executing recent sync logs query: %w", err)
	}
	defer rows.Close()

	var entries []*SyncLogEntry
	for rows.Next() {
		var entry SyncLogEntry
		err := rows.Scan(
			&entry.ID,
			&entry.Timestamp,
			&entry.Operation,
			&entry.Outcome,
			&entry.Message,
			&entry.Details,
			&entry.CommitRef,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning sync log row: %w", err)
		}
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sync log rows: %w", err)
	}

	return entries, nil
}

// Trim deletes everything but the newest keep entries. IDs are ULIDs, so
// ordering by ID is ordering by creation.
func (r *SQLRepository) Trim(ctx context.Context, keep int) error {
	newest := squirrel.Select("id").
		From("sync_logs").
		OrderBy("id DESC").
		Limit(uint64(keep))

	sub, subArgs, err := newest.ToSql()
	if err != nil {
		return fmt.Errorf("building trim sync logs subquery: %w", err)
	}

	q := squirrel.Delete("sync_logs").
		Where(squirrel.Expr("id NOT IN ("+sub+")", subArgs...))

	query, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("building trim sync logs query: %w", err)
	}

	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("executing trim sync logs query: %w", err)
	}

	if n, err := res.RowsAffected(); err == nil && n > 0 {
		r.logger.Debug("Trimmed sync log", "deleted", n)
	}
	return nil
}
