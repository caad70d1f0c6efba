// Package sync keeps a local working directory synchronized with a remote
// git repository: it batches change notifications, commits them, integrates
// remote commits, pushes with retry and drives the conflict workflow.
package sync

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrSyncInProgress is returned when a run is requested while another is active
	ErrSyncInProgress = errors.New("sync already in progress")

	// ErrConflict is returned by a run that stopped on merge conflicts
	ErrConflict = errors.New("merge conflicts need resolution")

	// ErrNotInConflict is returned when resolving while no conflict is pending
	ErrNotInConflict = errors.New("repository is not in conflict")

	// ErrUnknownConflictFile is returned when resolving a file that is not conflicted
	ErrUnknownConflictFile = errors.New("file is not in conflict")

	// ErrInvalidChoice is returned for a resolution choice other than local, remote or merge
	ErrInvalidChoice = errors.New("invalid resolution choice")

	// ErrMergedContentRequired is returned when a merge resolution has no content
	ErrMergedContentRequired = errors.New("merged content is required for a merge resolution")

	// ErrEngineClosed is returned by operations issued after Close
	ErrEngineClosed = errors.New("sync engine closed")
)

// Status is the coarse state of the engine
type Status string

const (
	StatusIdle     Status = "idle"
	StatusSyncing  Status = "syncing"
	StatusSynced   Status = "synced"
	StatusError    Status = "error"
	StatusConflict Status = "conflict"
)

// SyncState is the observable state of the engine. Listeners and callers
// always receive copies.
type SyncState struct {
	Status         Status     `json:"status"`
	LastSyncTime   *time.Time `json:"last_sync_time,omitempty"`
	PendingChanges int        `json:"pending_changes"`
	Error          string     `json:"error,omitempty"`
	ConflictFiles  []string   `json:"conflict_files"`
}

// Clone returns a deep copy of the state
func (s SyncState) Clone() SyncState {
	out := s
	if s.LastSyncTime != nil {
		t := *s.LastSyncTime
		out.LastSyncTime = &t
	}
	if s.ConflictFiles != nil {
		out.ConflictFiles = append([]string(nil), s.ConflictFiles...)
	}
	return out
}

// ChangeKind describes what happened to an entity
type ChangeKind string

const (
	ChangeAdd    ChangeKind = "add"
	ChangeUpdate ChangeKind = "update"
	ChangeDelete ChangeKind = "delete"
)

// Verb returns the capitalized verb used in commit subjects
func (k ChangeKind) Verb() string {
	switch k {
	case ChangeAdd:
		return "Add"
	case ChangeDelete:
		return "Delete"
	default:
		return "Update"
	}
}

// ParseChangeKind converts user input into a ChangeKind
func ParseChangeKind(s string) (ChangeKind, error) {
	switch k := ChangeKind(strings.ToLower(strings.TrimSpace(s))); k {
	case ChangeAdd, ChangeUpdate, ChangeDelete:
		return k, nil
	}
	return "", fmt.Errorf("unknown change kind %q", s)
}

// ChangeInfo is a single local mutation waiting to be committed
type ChangeInfo struct {
	Kind   ChangeKind `json:"kind"`
	Entity string     `json:"entity"`
	Title  string     `json:"title"`
}

// Operation is the pipeline stage a history entry belongs to
type Operation string

const (
	OperationCommit  Operation = "commit"
	OperationPush    Operation = "push"
	OperationPull    Operation = "pull"
	OperationResolve Operation = "resolve"
)

// Outcome is the result of a pipeline stage
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomeError    Outcome = "error"
	OutcomeConflict Outcome = "conflict"
)

// SyncLogEntry records the outcome of one pipeline stage. Entries are never
// modified after creation.
type SyncLogEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Operation Operation `json:"operation"`
	Outcome   Outcome   `json:"outcome"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	CommitRef string    `json:"commit_ref,omitempty"`
}

// ConflictInfo is a view over the current content of a conflicted file
type ConflictInfo struct {
	File          string  `json:"file"`
	LocalContent  string  `json:"local_content"`
	RemoteContent string  `json:"remote_content"`
	BaseContent   *string `json:"base_content,omitempty"`
	Hunks         int     `json:"hunks"` // conflict regions in the file, only the first is extracted
}

// Choice selects how a conflicted file is resolved
type Choice string

const (
	ChoiceLocal  Choice = "local"
	ChoiceRemote Choice = "remote"
	ChoiceMerge  Choice = "merge"
)

// ParseChoice converts user input into a Choice
func ParseChoice(s string) (Choice, error) {
	switch c := Choice(strings.ToLower(strings.TrimSpace(s))); c {
	case ChoiceLocal, ChoiceRemote, ChoiceMerge:
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidChoice, s)
}

// SyncResult is the outcome reported to callers of SyncNow and ResolveConflict
type SyncResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Err     error  `json:"-"`
}

func resultOf(err error) SyncResult {
	if err != nil {
		return SyncResult{Success: false, Error: err.Error(), Err: err}
	}
	return SyncResult{Success: true}
}
