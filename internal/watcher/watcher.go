// Package watcher turns filesystem changes in the data directory into
// scheduled commits.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	gosync "sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/tildaslashalef/plansync/internal/loggy"
	"github.com/tildaslashalef/plansync/internal/sync"
	"golang.org/x/time/rate"
)

// ErrWatcherClosed is returned when the watcher has been closed
var ErrWatcherClosed = errors.New("watcher closed")

const (
	// rootEntity names changes to files directly under the root
	rootEntity = "file"
	// mixedEntity names a held summary covering more than one entity
	mixedEntity = "files"
)

// Scheduler receives the changes the watcher observes
type Scheduler interface {
	ScheduleCommit(change sync.ChangeInfo) error
}

// Options configures a Watcher
type Options struct {
	Root            string
	EventsPerSecond float64
	Burst           int
	Ignore          []string // path segments or glob patterns matched per segment
}

// Watcher watches a directory tree and schedules a commit for every change
type Watcher struct {
	fs      *fsnotify.Watcher
	opts    Options
	sink    Scheduler
	limiter *rate.Limiter
	logger  *loggy.Logger

	mu     gosync.Mutex
	closed bool

	// changes refused by the limiter, delivered later as one summary
	heldMu     gosync.Mutex
	held       int
	heldEntity string
	heldTimer  *time.Timer
}

// New creates a watcher for opts.Root. Call Start to begin delivering changes.
func New(opts Options, sink Scheduler, logger *loggy.Logger) (*Watcher, error) {
	root, err := filepath.Abs(opts.Root)
	if err != nil {
		return nil, fmt.Errorf("resolving watch root: %w", err)
	}
	opts.Root = root

	if opts.EventsPerSecond <= 0 {
		opts.EventsPerSecond = 10
	}
	if opts.Burst <= 0 {
		opts.Burst = 20
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		fs:      fsw,
		opts:    opts,
		sink:    sink,
		limiter: rate.NewLimiter(rate.Limit(opts.EventsPerSecond), opts.Burst),
		logger:  logger.With("component", "watcher"),
	}, nil
}

// Start adds the directory tree and delivers changes until ctx is done or
// the watcher is closed.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrWatcherClosed
	}
	err := w.addTree(w.opts.Root)
	w.mu.Unlock()
	if err != nil {
		return err
	}

	w.logger.Info("Watching for changes", "root", w.opts.Root)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handle(event)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Watcher error", "error", err)
		}
	}
}

// Close stops the watcher. It is safe to call more than once.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	w.heldMu.Lock()
	if w.heldTimer != nil {
		w.heldTimer.Stop()
		w.heldTimer = nil
	}
	w.heldMu.Unlock()

	return w.fs.Close()
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Has(fsnotify.Chmod) && !event.Has(fsnotify.Write) {
		return
	}

	rel, err := filepath.Rel(w.opts.Root, event.Name)
	if err != nil || w.ignored(rel) {
		return
	}

	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			w.onDirCreated(event.Name)
			return
		}
	}

	change, ok := ChangeFor(rel, event.Op)
	if !ok {
		return
	}
	w.schedule(change)
}

// onDirCreated watches a new directory and reports the files already in it,
// since they may have been written before the watch was added
func (w *Watcher) onDirCreated(dir string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(w.opts.Root, path)
		if err != nil {
			return err
		}
		if w.ignored(rel) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return w.fs.Add(path)
		}
		if change, ok := ChangeFor(rel, fsnotify.Create); ok {
			w.schedule(change)
		}
		return nil
	})
	if err != nil {
		w.logger.Warn("Failed to watch new directory", "dir", dir, "error", err)
	}
}

func (w *Watcher) schedule(change sync.ChangeInfo) {
	if !w.limiter.Allow() {
		w.hold(change)
		return
	}
	w.deliver(change)
}

func (w *Watcher) deliver(change sync.ChangeInfo) {
	if err := w.sink.ScheduleCommit(change); err != nil {
		w.logger.Warn("Failed to schedule commit", "error", err)
	}
}

// hold counts a change the limiter refused. The first held change reserves
// the next token and arms a timer that delivers every held change as one
// summary once that token is due.
func (w *Watcher) hold(change sync.ChangeInfo) {
	w.heldMu.Lock()
	defer w.heldMu.Unlock()

	switch {
	case w.held == 0:
		w.heldEntity = change.Entity
	case w.heldEntity != change.Entity:
		w.heldEntity = mixedEntity
	}
	w.held++

	w.logger.Debug("Change notification held by rate limit",
		"kind", change.Kind, "entity", change.Entity, "title", change.Title, "held", w.held)

	if w.heldTimer == nil {
		delay := w.limiter.Reserve().Delay()
		w.heldTimer = time.AfterFunc(delay, w.flushHeld)
	}
}

func (w *Watcher) flushHeld() {
	w.heldMu.Lock()
	n, entity := w.held, w.heldEntity
	w.held, w.heldEntity, w.heldTimer = 0, "", nil
	w.heldMu.Unlock()

	if n == 0 {
		return
	}
	w.deliver(HeldSummary(n, entity))
}

// HeldSummary is the change delivered in place of n rate-limited changes
func HeldSummary(n int, entity string) sync.ChangeInfo {
	title := fmt.Sprintf("%d more changes", n)
	if n == 1 {
		title = "1 more change"
	}
	return sync.ChangeInfo{Kind: sync.ChangeUpdate, Entity: entity, Title: title}
}

// addTree watches dir and every non-ignored directory below it
func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("walk dir: %w", err)
		}
		if !d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(w.opts.Root, path)
		if err != nil {
			return err
		}
		if rel != "." && w.ignored(rel) {
			return filepath.SkipDir
		}
		if err := w.fs.Add(path); err != nil {
			return fmt.Errorf("fsnotify add watch %s: %w", path, err)
		}
		return nil
	})
}

func (w *Watcher) ignored(rel string) bool {
	return IsIgnored(rel, w.opts.Ignore)
}

// IsIgnored reports whether any segment of rel matches one of the patterns
func IsIgnored(rel string, patterns []string) bool {
	for _, segment := range strings.Split(filepath.ToSlash(rel), "/") {
		for _, pattern := range patterns {
			if segment == pattern {
				return true
			}
			if ok, _ := filepath.Match(pattern, segment); ok {
				return true
			}
		}
	}
	return false
}

// ChangeFor maps a filesystem operation on rel, a path relative to the
// watch root, to a change. The entity is the top-level directory and the
// title is the file name without its extension.
func ChangeFor(rel string, op fsnotify.Op) (sync.ChangeInfo, bool) {
	var kind sync.ChangeKind
	switch {
	case op.Has(fsnotify.Remove), op.Has(fsnotify.Rename):
		kind = sync.ChangeDelete
	case op.Has(fsnotify.Create):
		kind = sync.ChangeAdd
	case op.Has(fsnotify.Write):
		kind = sync.ChangeUpdate
	default:
		return sync.ChangeInfo{}, false
	}

	rel = filepath.ToSlash(filepath.Clean(rel))
	if rel == "." || strings.HasPrefix(rel, "../") {
		return sync.ChangeInfo{}, false
	}

	entity := rootEntity
	if top, _, found := strings.Cut(rel, "/"); found {
		entity = top
	}

	base := filepath.Base(rel)
	title := strings.TrimSuffix(base, filepath.Ext(base))
	if title == "" {
		title = base
	}

	return sync.ChangeInfo{Kind: kind, Entity: entity, Title: title}, true
}
