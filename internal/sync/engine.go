package sync

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	gosync "sync"
	"time"

	"github.com/tildaslashalef/plansync/internal/git"
	"github.com/tildaslashalef/plansync/internal/loggy"
	"github.com/tildaslashalef/plansync/internal/ulid"
)

// Options configures an Engine. Branch and remote are fixed for the
// engine's lifetime.
type Options struct {
	Branch       string
	Remote       string
	Debounce     time.Duration
	Retry        RetryPolicy
	HistoryLimit int
	AutoInit     bool
	PullStrategy git.PullStrategy
}

// DefaultOptions returns the defaults used when no configuration is given
func DefaultOptions() Options {
	return Options{
		Branch:       "main",
		Remote:       "origin",
		Debounce:     30 * time.Second,
		Retry:        DefaultRetryPolicy(),
		HistoryLimit: DefaultHistoryLimit,
		AutoInit:     true,
		PullStrategy: git.PullMerge,
	}
}

// Engine coordinates batching, the commit/pull/push pipeline, conflict
// resolution and state notification for one working directory.
type Engine struct {
	backend Backend
	opts    Options
	logger  *loggy.Logger
	batcher *Batcher
	hub     *Hub
	history *History
	now     func() time.Time

	// updateMu orders state mutation with notification so listeners see
	// states in the order they happened
	updateMu gosync.Mutex
	stateMu  gosync.RWMutex
	state    SyncState
	busy     bool // a run or resolution is in progress

	lifeMu gosync.Mutex
	closed bool
	wg     gosync.WaitGroup
}

// NewEngine creates an engine. store may be nil to keep history in memory only.
func NewEngine(backend Backend, store HistoryStore, opts Options, logger *loggy.Logger) *Engine {
	defaults := DefaultOptions()
	if opts.Branch == "" {
		opts.Branch = defaults.Branch
	}
	if opts.Remote == "" {
		opts.Remote = defaults.Remote
	}
	if opts.Debounce <= 0 {
		opts.Debounce = defaults.Debounce
	}
	if opts.Retry.MaxAttempts <= 0 {
		opts.Retry.MaxAttempts = defaults.Retry.MaxAttempts
	}
	if opts.Retry.BaseDelay <= 0 {
		opts.Retry.BaseDelay = defaults.Retry.BaseDelay
	}
	if opts.Retry.Classify == nil {
		opts.Retry.Classify = IsRetryable
	}
	if opts.PullStrategy == "" {
		opts.PullStrategy = defaults.PullStrategy
	}

	e := &Engine{
		backend: backend,
		opts:    opts,
		logger:  logger,
		hub:     NewHub(),
		history: NewHistory(opts.HistoryLimit, store, logger),
		now:     time.Now,
		state:   SyncState{Status: StatusIdle},
	}
	e.batcher = NewBatcher(opts.Debounce, e.onBatchFire)
	return e
}

// Initialize prepares the working directory: it creates the repository when
// allowed, loads persisted history and restores a pending conflict.
func (e *Engine) Initialize(ctx context.Context) error {
	ok, err := e.backend.IsRepo(ctx)
	if err != nil {
		return fmt.Errorf("checking repository: %w", err)
	}

	if !ok {
		if !e.opts.AutoInit {
			return git.ErrNotRepository
		}
		if err := e.backend.Init(ctx, e.opts.Branch); err != nil {
			return err
		}
	}

	if err := e.history.Load(ctx); err != nil {
		e.logger.Warn("Failed to load sync history", "error", err)
	}

	status, err := e.backend.Status(ctx, e.opts.Remote, e.opts.Branch)
	if err != nil {
		e.logger.Warn("Failed to read repository status", "error", err)
		return nil
	}

	if len(status.Conflicted) > 0 {
		e.update(func(s *SyncState) {
			s.Status = StatusConflict
			s.ConflictFiles = slices.Clone(status.Conflicted)
		})
		e.logger.Info("Repository has unresolved conflicts", "files", status.Conflicted)
	}

	return nil
}

// ScheduleCommit queues a change and restarts the debounce window
func (e *Engine) ScheduleCommit(change ChangeInfo) error {
	if e.isClosed() {
		return ErrEngineClosed
	}

	e.update(func(s *SyncState) {
		e.batcher.Enqueue(change)
		s.PendingChanges++
	})

	e.logger.Debug("Change scheduled",
		"kind", change.Kind,
		"entity", change.Entity,
		"title", change.Title)
	return nil
}

// SyncNow cancels the debounce timer and runs the pipeline immediately
func (e *Engine) SyncNow(ctx context.Context) SyncResult {
	if e.isClosed() {
		return resultOf(ErrEngineClosed)
	}

	e.batcher.CancelPending()
	return resultOf(e.run(ctx, "manual"))
}

// CancelPending stops the debounce timer. Queued changes stay queued.
func (e *Engine) CancelPending() {
	if e.batcher.CancelPending() {
		e.logger.Debug("Pending sync cancelled", "queued", e.batcher.Len())
	}
}

// HasPending reports whether a debounced run is scheduled
func (e *Engine) HasPending() bool {
	return e.batcher.Pending()
}

// State returns a snapshot of the current state
func (e *Engine) State() SyncState {
	e.stateMu.RLock()
	defer e.stateMu.RUnlock()
	return e.state.Clone()
}

// History returns the recorded stage outcomes, newest first
func (e *Engine) History() []SyncLogEntry {
	return e.history.Entries()
}

// Subscribe registers a listener. It is called immediately with the current
// state and then with every new state. Listeners run synchronously and must
// not call back into operations that change state.
func (e *Engine) Subscribe(listener Listener) func() {
	e.updateMu.Lock()
	defer e.updateMu.Unlock()

	return e.hub.Subscribe(listener, e.State())
}

// Conflicts reads every conflicted file and extracts its conflict region.
// Nothing is cached; each call reflects the files on disk.
func (e *Engine) Conflicts(ctx context.Context) ([]ConflictInfo, error) {
	status, err := e.backend.Status(ctx, e.opts.Remote, e.opts.Branch)
	if err != nil {
		return nil, fmt.Errorf("reading repository status: %w", err)
	}

	conflicts := make([]ConflictInfo, 0, len(status.Conflicted))
	for _, file := range status.Conflicted {
		content, err := e.readFile(file)
		if err != nil {
			return nil, err
		}
		conflicts = append(conflicts, ParseConflict(file, content))
	}
	return conflicts, nil
}

// ResolveConflict resolves one conflicted file. When it was the last one the
// merge is committed and pushed. A failing push after a successful
// resolution is reported through the state and history, not the result.
func (e *Engine) ResolveConflict(ctx context.Context, file string, choice Choice, merged *string) SyncResult {
	if e.isClosed() {
		return resultOf(ErrEngineClosed)
	}

	switch choice {
	case ChoiceLocal, ChoiceRemote:
	case ChoiceMerge:
		if merged == nil {
			return resultOf(ErrMergedContentRequired)
		}
	default:
		return resultOf(fmt.Errorf("%w: %q", ErrInvalidChoice, choice))
	}

	if err := e.beginResolve(file); err != nil {
		return resultOf(err)
	}
	defer e.setBusy(false)

	logger := e.logger.With("file", file, "choice", choice)
	logger.Info("Resolving conflict")

	if err := e.applyResolution(ctx, file, choice, merged); err != nil {
		e.record(ctx, OperationResolve, OutcomeError, "Failed to resolve "+file, err.Error(), "")
		return resultOf(err)
	}

	status, err := e.backend.Status(ctx, e.opts.Remote, e.opts.Branch)
	if err != nil {
		err = fmt.Errorf("reading repository status: %w", err)
		e.record(ctx, OperationResolve, OutcomeError, "Failed to resolve "+file, err.Error(), "")
		return resultOf(err)
	}

	if len(status.Conflicted) > 0 {
		e.update(func(s *SyncState) {
			s.ConflictFiles = slices.Clone(status.Conflicted)
		})
		logger.Info("Conflict resolved, others remain", "remaining", len(status.Conflicted))
		return resultOf(nil)
	}

	ref, err := e.backend.Commit(ctx, resolutionMessage)
	if err != nil {
		err = fmt.Errorf("committing resolution: %w", err)
		e.record(ctx, OperationResolve, OutcomeError, "Failed to commit resolution", err.Error(), "")
		e.update(func(s *SyncState) {
			s.Status = StatusError
			s.Error = err.Error()
			s.ConflictFiles = nil
		})
		return resultOf(err)
	}

	e.record(ctx, OperationResolve, OutcomeSuccess, "Resolved merge conflicts", "", ref)
	e.update(func(s *SyncState) {
		s.Status = StatusIdle
		s.Error = ""
		s.ConflictFiles = nil
	})
	logger.Info("All conflicts resolved", "ref", ref)

	e.pushAfterResolve(ctx)
	return resultOf(nil)
}

// Close cancels the debounce timer and waits for a timer-started run to
// finish. Later operations fail with ErrEngineClosed.
func (e *Engine) Close() error {
	e.lifeMu.Lock()
	if e.closed {
		e.lifeMu.Unlock()
		return nil
	}
	e.closed = true
	e.lifeMu.Unlock()

	e.batcher.CancelPending()
	e.wg.Wait()
	return nil
}

func (e *Engine) isClosed() bool {
	e.lifeMu.Lock()
	defer e.lifeMu.Unlock()
	return e.closed
}

// onBatchFire runs when the debounce window elapses
func (e *Engine) onBatchFire() {
	e.lifeMu.Lock()
	if e.closed {
		e.lifeMu.Unlock()
		return
	}
	e.wg.Add(1)
	e.lifeMu.Unlock()
	defer e.wg.Done()

	err := e.run(context.Background(), "debounce")
	if errors.Is(err, ErrSyncInProgress) {
		// Keep the batch moving once the active run is done
		e.batcher.Rearm()
	}
}

// run executes the pipeline once, guarded against concurrent runs
func (e *Engine) run(ctx context.Context, trigger string) error {
	batch, err := e.beginRun()
	if err != nil {
		e.logger.Debug("Sync request rejected", "trigger", trigger, "error", err)
		return err
	}

	ctx = loggy.WithRunID(loggy.WithLogger(ctx, e.logger), loggy.NewRunID())
	logger := loggy.FromContext(ctx)
	logger.Info("Starting sync", "trigger", trigger, "changes", len(batch))

	start := e.now()
	err = e.pipeline(ctx, batch)
	if err != nil {
		logger.Warn("Sync finished with failure", "duration", e.now().Sub(start), "error", err)
		return err
	}

	logger.Info("Sync complete", "duration", e.now().Sub(start))
	return nil
}

// pipeline runs status, stage, commit, fetch, pull and push in order. Every
// exit path leaves the engine in a terminal state.
func (e *Engine) pipeline(ctx context.Context, batch []ChangeInfo) error {
	status, err := e.backend.Status(ctx, e.opts.Remote, e.opts.Branch)
	if err != nil {
		e.batcher.Requeue(batch)
		return e.fail(ctx, OperationCommit, "Failed to read repository status", err)
	}

	if len(status.Conflicted) > 0 {
		e.batcher.Requeue(batch)
		return e.enterConflict(ctx, status.Conflicted, "Unresolved conflicts in working tree")
	}

	if status.IsClean() && status.Ahead == 0 {
		e.record(ctx, OperationCommit, OutcomeSuccess, "No local changes to commit", "", "")
		e.succeed()
		return nil
	}

	if !status.IsClean() {
		if err := e.backend.AddAll(ctx); err != nil {
			e.batcher.Requeue(batch)
			return e.fail(ctx, OperationCommit, "Failed to stage changes", err)
		}

		message := GenerateCommitMessage(batch)
		ref, err := e.backend.Commit(ctx, message)
		if err != nil {
			e.batcher.Requeue(batch)
			return e.fail(ctx, OperationCommit, "Commit failed", err)
		}

		e.record(ctx, OperationCommit, OutcomeSuccess, subject(message), message, ref)
		e.update(func(s *SyncState) {
			s.PendingChanges = e.batcher.Len()
		})
		loggy.FromContext(ctx).Info("Committed changes", "ref", ref, "files", status.Changed())
	}

	hasRemote, err := e.hasRemote(ctx)
	if err != nil {
		return e.fail(ctx, OperationPush, "Failed to list remotes", err)
	}
	if !hasRemote {
		e.record(ctx, OperationPush, OutcomeSuccess, "Push skipped: no remote configured", "", "")
		e.succeed()
		return nil
	}

	if err := e.pull(ctx); err != nil {
		return err
	}

	if err := e.push(ctx); err != nil {
		return e.fail(ctx, OperationPush, "Push failed", err)
	}

	e.succeed()
	return nil
}

// pull fetches and merges remote commits when the remote is ahead
func (e *Engine) pull(ctx context.Context) error {
	if err := e.backend.Fetch(ctx, e.opts.Remote); err != nil {
		return e.fail(ctx, OperationPull, "Fetch failed", err)
	}

	status, err := e.backend.Status(ctx, e.opts.Remote, e.opts.Branch)
	if err != nil {
		return e.fail(ctx, OperationPull, "Failed to compare with remote", err)
	}

	if status.Behind == 0 {
		e.record(ctx, OperationPull, OutcomeSuccess, "Already up to date", "", "")
		return nil
	}

	pullErr := e.backend.Pull(ctx, e.opts.Remote, e.opts.Branch, e.opts.PullStrategy)
	if pullErr == nil {
		e.record(ctx, OperationPull, OutcomeSuccess,
			fmt.Sprintf("Pulled %d remote %s", status.Behind, plural(status.Behind, "commit", "commits")), "", "")
		return nil
	}

	after, err := e.backend.Status(ctx, e.opts.Remote, e.opts.Branch)
	if err == nil && len(after.Conflicted) > 0 {
		return e.enterConflict(ctx, after.Conflicted, pullErr.Error())
	}
	if isConflictError(pullErr) {
		var files []string
		if after != nil {
			files = after.Conflicted
		}
		return e.enterConflict(ctx, files, pullErr.Error())
	}

	return e.fail(ctx, OperationPull, "Pull failed", pullErr)
}

// push sends the branch through the retry policy and records the outcome
// on success
func (e *Engine) push(ctx context.Context) error {
	logger := loggy.FromContext(ctx)

	attempts, err := RunWithRetry(ctx, e.opts.Retry, func(ctx context.Context) error {
		return e.backend.Push(ctx, e.opts.Remote, e.opts.Branch)
	}, func(attempt int, err error, delay time.Duration) {
		logger.Warn("Push attempt failed, retrying",
			"attempt", attempt,
			"max_attempts", e.opts.Retry.MaxAttempts,
			"delay", delay,
			"error", err)
	})
	if err != nil {
		return err
	}

	e.record(ctx, OperationPush, OutcomeSuccess,
		fmt.Sprintf("Pushed to %s/%s", e.opts.Remote, e.opts.Branch),
		fmt.Sprintf("attempts: %d", attempts), "")
	return nil
}

// pushAfterResolve sends the resolution commit. The state stays idle on
// success and moves to error on failure.
func (e *Engine) pushAfterResolve(ctx context.Context) {
	hasRemote, err := e.hasRemote(ctx)
	if err == nil && !hasRemote {
		e.record(ctx, OperationPush, OutcomeSuccess, "Push skipped: no remote configured", "", "")
		return
	}
	if err == nil {
		err = e.push(ctx)
	}
	if err != nil {
		err = fmt.Errorf("push failed: %w", err)
		e.record(ctx, OperationPush, OutcomeError, "Push failed", err.Error(), "")
		e.update(func(s *SyncState) {
			s.Status = StatusError
			s.Error = err.Error()
		})
		return
	}

	now := e.now()
	e.update(func(s *SyncState) {
		s.LastSyncTime = &now
	})
}

func (e *Engine) hasRemote(ctx context.Context) (bool, error) {
	remotes, err := e.backend.ListRemotes(ctx)
	if err != nil {
		return false, err
	}
	return slices.Contains(remotes, e.opts.Remote), nil
}

func (e *Engine) applyResolution(ctx context.Context, file string, choice Choice, merged *string) error {
	switch choice {
	case ChoiceLocal:
		if err := e.backend.CheckoutSide(ctx, file, git.SideOurs); err != nil {
			return err
		}
	case ChoiceRemote:
		if err := e.backend.CheckoutSide(ctx, file, git.SideTheirs); err != nil {
			return err
		}
	case ChoiceMerge:
		path, err := e.backend.Abs(file)
		if err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(*merged), 0644); err != nil {
			return fmt.Errorf("writing merged content: %w", err)
		}
	}

	return e.backend.Add(ctx, file)
}

func (e *Engine) readFile(file string) (string, error) {
	path, err := e.backend.Abs(file)
	if err != nil {
		return "", err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Deleted on one side of the merge
			return "", nil
		}
		return "", fmt.Errorf("reading %s: %w", file, err)
	}
	return string(content), nil
}

// beginRun claims the engine for a pipeline run and takes the queued batch
func (e *Engine) beginRun() ([]ChangeInfo, error) {
	e.updateMu.Lock()
	defer e.updateMu.Unlock()

	e.stateMu.Lock()
	if e.busy || e.state.Status == StatusSyncing {
		e.stateMu.Unlock()
		return nil, ErrSyncInProgress
	}
	e.busy = true
	e.state.Status = StatusSyncing
	e.state.Error = ""
	snapshot := e.state.Clone()
	e.stateMu.Unlock()

	batch := e.batcher.Take()
	e.hub.Publish(snapshot)
	return batch, nil
}

func (e *Engine) beginResolve(file string) error {
	e.stateMu.Lock()
	defer e.stateMu.Unlock()

	switch {
	case e.busy || e.state.Status == StatusSyncing:
		return ErrSyncInProgress
	case e.state.Status != StatusConflict:
		return ErrNotInConflict
	case !slices.Contains(e.state.ConflictFiles, file):
		return fmt.Errorf("%w: %s", ErrUnknownConflictFile, file)
	}
	e.busy = true
	return nil
}

func (e *Engine) setBusy(busy bool) {
	e.stateMu.Lock()
	e.busy = busy
	e.stateMu.Unlock()
}

// update applies fn to the state and notifies listeners with the result
func (e *Engine) update(fn func(s *SyncState)) {
	e.updateMu.Lock()
	defer e.updateMu.Unlock()

	e.stateMu.Lock()
	fn(&e.state)
	snapshot := e.state.Clone()
	e.stateMu.Unlock()

	e.hub.Publish(snapshot)
}

// finish applies a terminal transition and releases the run guard
func (e *Engine) finish(fn func(s *SyncState)) {
	e.update(func(s *SyncState) {
		fn(s)
		e.busy = false
	})
}

func (e *Engine) succeed() {
	now := e.now()
	e.finish(func(s *SyncState) {
		s.Status = StatusSynced
		s.LastSyncTime = &now
		s.PendingChanges = e.batcher.Len()
		s.Error = ""
		s.ConflictFiles = nil
	})
}

func (e *Engine) fail(ctx context.Context, op Operation, message string, cause error) error {
	err := fmt.Errorf("%s: %w", strings.ToLower(message), cause)

	loggy.FromContext(ctx).WithError(cause).Error(message, "operation", op)
	e.record(ctx, op, OutcomeError, message, cause.Error(), "")
	e.finish(func(s *SyncState) {
		s.Status = StatusError
		s.Error = err.Error()
		s.PendingChanges = e.batcher.Len()
		s.ConflictFiles = nil
	})
	return err
}

func (e *Engine) enterConflict(ctx context.Context, files []string, details string) error {
	files = slices.Clone(files)
	message := fmt.Sprintf("Merge conflict in %d %s", len(files), plural(len(files), "file", "files"))
	if len(files) > 0 {
		details = strings.Join(files, ", ") + "\n" + details
	}

	loggy.FromContext(ctx).Warn("Merge conflict", "files", files)
	e.record(ctx, OperationPull, OutcomeConflict, message, details, "")
	e.finish(func(s *SyncState) {
		s.Status = StatusConflict
		s.Error = ""
		s.PendingChanges = e.batcher.Len()
		s.ConflictFiles = files
	})
	return fmt.Errorf("%w: %s", ErrConflict, strings.Join(files, ", "))
}

func (e *Engine) record(ctx context.Context, op Operation, outcome Outcome, message, details, ref string) {
	e.history.Append(ctx, SyncLogEntry{
		ID:        ulid.LogEntryID(),
		Timestamp: e.now(),
		Operation: op,
		Outcome:   outcome,
		Message:   message,
		Details:   details,
		CommitRef: ref,
	})
}

func isConflictError(err error) bool {
	if errors.Is(err, git.ErrMergeConflict) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "CONFLICT") || strings.Contains(strings.ToLower(msg), "merge conflict")
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
