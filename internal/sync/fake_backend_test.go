package sync

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	gosync "sync"

	"github.com/tildaslashalef/plansync/internal/git"
)

// fakeBackend is a scripted Backend. Commits clean the working tree and
// move the branch ahead; successful pushes bring it back in line.
type fakeBackend struct {
	mu gosync.Mutex

	root      string
	isRepo    bool
	remotes   []string
	status    git.RepoStatus
	statusErr error
	commitErr error
	fetchErr  error
	pullErr   error

	// pullConflicts become the conflicted set when Pull runs
	pullConflicts []string
	conflicted    []string

	// pushErrs are consumed one per attempt; pushErr applies afterwards
	pushErrs []error
	pushErr  error
	pushHook func()

	calls    map[string]int
	commits  []string
	resolved map[string]git.Side
}

func newFakeBackend(root string) *fakeBackend {
	return &fakeBackend{
		root:     root,
		isRepo:   true,
		remotes:  []string{"origin"},
		calls:    make(map[string]int),
		resolved: make(map[string]git.Side),
	}
}

func (f *fakeBackend) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeBackend) commitMessages() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.commits)
}

func (f *fakeBackend) setDirty(paths ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status.Modified = paths
}

func (f *fakeBackend) IsRepo(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["is_repo"]++
	return f.isRepo, nil
}

func (f *fakeBackend) Init(ctx context.Context, branch string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["init"]++
	f.isRepo = true
	return nil
}

func (f *fakeBackend) ListRemotes(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["list_remotes"]++
	return slices.Clone(f.remotes), nil
}

func (f *fakeBackend) Status(ctx context.Context, remote, branch string) (*git.RepoStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["status"]++

	if f.statusErr != nil {
		return nil, f.statusErr
	}

	st := f.status
	st.Modified = slices.Clone(f.status.Modified)
	st.Conflicted = slices.Clone(f.conflicted)
	return &st, nil
}

func (f *fakeBackend) AddAll(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["add_all"]++
	return nil
}

func (f *fakeBackend) Add(ctx context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["add"]++
	f.conflicted = slices.DeleteFunc(f.conflicted, func(p string) bool { return p == path })
	return nil
}

func (f *fakeBackend) Commit(ctx context.Context, message string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["commit"]++

	if f.commitErr != nil {
		return "", f.commitErr
	}

	f.commits = append(f.commits, message)
	f.status.Modified = nil
	f.status.Ahead++
	return fmt.Sprintf("ref%d", len(f.commits)), nil
}

func (f *fakeBackend) Fetch(ctx context.Context, remote string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["fetch"]++
	return f.fetchErr
}

func (f *fakeBackend) Pull(ctx context.Context, remote, branch string, strategy git.PullStrategy) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["pull"]++

	if len(f.pullConflicts) > 0 {
		f.conflicted = slices.Clone(f.pullConflicts)
		return fmt.Errorf("%w: CONFLICT (content)", git.ErrMergeConflict)
	}
	if f.pullErr != nil {
		return f.pullErr
	}
	f.status.Behind = 0
	return nil
}

func (f *fakeBackend) Push(ctx context.Context, remote, branch string) error {
	f.mu.Lock()
	hook := f.pushHook
	f.mu.Unlock()
	if hook != nil {
		hook()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["push"]++

	if len(f.pushErrs) > 0 {
		err := f.pushErrs[0]
		f.pushErrs = f.pushErrs[1:]
		if err != nil {
			return err
		}
	} else if f.pushErr != nil {
		return f.pushErr
	}

	f.status.Ahead = 0
	return nil
}

func (f *fakeBackend) CheckoutSide(ctx context.Context, path string, side git.Side) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls["checkout"]++
	f.resolved[path] = side
	return nil
}

func (f *fakeBackend) Abs(path string) (string, error) {
	if f.root == "" {
		return "", errors.New("no root")
	}
	return filepath.Join(f.root, filepath.FromSlash(path)), nil
}

var _ Backend = (*fakeBackend)(nil)
