package git

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	gosync "sync"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/format/index"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/tildaslashalef/plansync/internal/loggy"
)

// Service provides the git operations the sync pipeline needs. Repository
// inspection, fetch and push go through go-git; merging, staging and
// committing shell out to the git binary so hooks, attributes and the
// user's identity behave exactly as they do on the command line.
type Service struct {
	logger *loggy.Logger
	root   string
	opts   Options
	cli    *runner

	mu   gosync.Mutex
	repo *git.Repository
}

// NewService creates a git service rooted at the given working directory
func NewService(root string, opts Options, logger *loggy.Logger) *Service {
	if opts.GitBinary == "" {
		opts.GitBinary = "git"
	}

	return &Service{
		logger: logger,
		root:   root,
		opts:   opts,
		cli:    newRunner(root, opts),
	}
}

// Root returns the working directory the service operates on
func (s *Service) Root() string {
	return s.root
}

// open returns the cached repository handle, opening it on first use
func (s *Service) open() (*git.Repository, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.repo != nil {
		return s.repo, nil
	}

	repo, err := git.PlainOpen(s.root)
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%w: %s", ErrNotRepository, s.root)
		}
		return nil, fmt.Errorf("opening git repo: %w", err)
	}

	s.repo = repo
	return repo, nil
}

// IsRepo reports whether the working directory already holds a repository
func (s *Service) IsRepo(ctx context.Context) (bool, error) {
	if _, err := s.open(); err != nil {
		if errors.Is(err, ErrNotRepository) {
			s.logger.Debug("Not a git repository", "path", s.root)
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Init creates an empty repository whose HEAD points at branch
func (s *Service) Init(ctx context.Context, branch string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, err := git.PlainInitWithOptions(s.root, &git.PlainInitOptions{
		InitOptions: git.InitOptions{
			DefaultBranch: plumbing.NewBranchReferenceName(branch),
		},
	})
	if err != nil {
		return fmt.Errorf("initializing git repo: %w", err)
	}

	s.repo = repo
	s.logger.Info("Initialized git repository", "path", s.root, "branch", branch)
	return nil
}

// ListRemotes returns the names of the configured remotes
func (s *Service) ListRemotes(ctx context.Context) ([]string, error) {
	repo, err := s.open()
	if err != nil {
		return nil, err
	}

	remotes, err := repo.Remotes()
	if err != nil {
		return nil, fmt.Errorf("listing remotes: %w", err)
	}

	names := make([]string, 0, len(remotes))
	for _, r := range remotes {
		names = append(names, r.Config().Name)
	}
	sort.Strings(names)
	return names, nil
}

// RemoteURL returns the first fetch URL of the named remote
func (s *Service) RemoteURL(ctx context.Context, name string) (string, error) {
	repo, err := s.open()
	if err != nil {
		return "", err
	}

	remote, err := repo.Remote(name)
	if err != nil {
		if errors.Is(err, git.ErrRemoteNotFound) {
			return "", fmt.Errorf("%w: %s", ErrNoRemote, name)
		}
		return "", fmt.Errorf("reading remote %s: %w", name, err)
	}

	urls := remote.Config().URLs
	if len(urls) == 0 {
		return "", fmt.Errorf("%w: %s has no URL", ErrNoRemote, name)
	}
	return urls[0], nil
}

// AddRemote registers a remote, replacing the URL when the name already exists
func (s *Service) AddRemote(ctx context.Context, name, url string) error {
	repo, err := s.open()
	if err != nil {
		return err
	}

	if err := repo.DeleteRemote(name); err != nil && !errors.Is(err, git.ErrRemoteNotFound) {
		return fmt.Errorf("replacing remote %s: %w", name, err)
	}

	if _, err := repo.CreateRemote(&config.RemoteConfig{Name: name, URLs: []string{url}}); err != nil {
		return fmt.Errorf("adding remote %s: %w", name, err)
	}

	s.logger.Info("Configured remote", "name", name, "url", url)
	return nil
}

// Status inspects the working tree and counts how far the local branch and
// its remote tracking branch have diverged
func (s *Service) Status(ctx context.Context, remote, branch string) (*RepoStatus, error) {
	repo, err := s.open()
	if err != nil {
		return nil, err
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("getting worktree: %w", err)
	}

	status, err := worktree.Status()
	if err != nil {
		return nil, fmt.Errorf("getting worktree status: %w", err)
	}

	conflicted, err := unmergedPaths(repo)
	if err != nil {
		return nil, err
	}

	result := &RepoStatus{Conflicted: conflicted}
	unmerged := make(map[string]bool, len(conflicted))
	for _, p := range conflicted {
		unmerged[p] = true
	}

	for path, fs := range status {
		if unmerged[path] {
			continue
		}

		switch {
		case fs.Staging == git.UpdatedButUnmerged || fs.Worktree == git.UpdatedButUnmerged:
			result.Conflicted = append(result.Conflicted, path)
		case fs.Worktree == git.Untracked:
			result.Untracked = append(result.Untracked, path)
		case fs.Staging == git.Added:
			result.Created = append(result.Created, path)
		case fs.Staging == git.Deleted || fs.Worktree == git.Deleted:
			result.Deleted = append(result.Deleted, path)
		case fs.Staging != git.Unmodified || fs.Worktree != git.Unmodified:
			result.Modified = append(result.Modified, path)
		}
	}

	sort.Strings(result.Modified)
	sort.Strings(result.Created)
	sort.Strings(result.Deleted)
	sort.Strings(result.Untracked)
	sort.Strings(result.Conflicted)

	result.Ahead, result.Behind, err = s.divergence(repo, remote, branch)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("Repository status",
		"changed", result.Changed(),
		"conflicted", len(result.Conflicted),
		"ahead", result.Ahead,
		"behind", result.Behind)

	return result, nil
}

// resolvedStage is the index stage of a normal, non-conflicted entry.
// go-git's index.Merged is 1, which is the base stage of a conflict.
const resolvedStage index.Stage = 0

// unmergedPaths lists index entries sitting at a conflict stage
func unmergedPaths(repo *git.Repository) ([]string, error) {
	idx, err := repo.Storer.Index()
	if err != nil {
		return nil, fmt.Errorf("reading index: %w", err)
	}

	seen := make(map[string]bool)
	var paths []string
	for _, e := range idx.Entries {
		if e.Stage == resolvedStage || seen[e.Name] {
			continue
		}
		seen[e.Name] = true
		paths = append(paths, e.Name)
	}
	return paths, nil
}

// divergence counts commits reachable from only one of HEAD and the remote
// tracking ref. Without a tracking ref every local commit counts as ahead.
func (s *Service) divergence(repo *git.Repository, remote, branch string) (int, int, error) {
	head, err := repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return 0, 0, nil
		}
		return 0, 0, fmt.Errorf("resolving HEAD: %w", err)
	}

	local, err := ancestors(repo, head.Hash())
	if err != nil {
		return 0, 0, err
	}

	tracking, err := repo.Reference(plumbing.NewRemoteReferenceName(remote, branch), true)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return len(local), 0, nil
		}
		return 0, 0, fmt.Errorf("resolving %s/%s: %w", remote, branch, err)
	}

	upstream, err := ancestors(repo, tracking.Hash())
	if err != nil {
		return 0, 0, err
	}

	ahead, behind := 0, 0
	for h := range local {
		if !upstream[h] {
			ahead++
		}
	}
	for h := range upstream {
		if !local[h] {
			behind++
		}
	}
	return ahead, behind, nil
}

func ancestors(repo *git.Repository, from plumbing.Hash) (map[plumbing.Hash]bool, error) {
	iter, err := repo.Log(&git.LogOptions{From: from})
	if err != nil {
		return nil, fmt.Errorf("walking history from %s: %w", from, err)
	}
	defer iter.Close()

	seen := make(map[plumbing.Hash]bool)
	err = iter.ForEach(func(c *object.Commit) error {
		seen[c.Hash] = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking history from %s: %w", from, err)
	}
	return seen, nil
}

// Head returns the hash HEAD currently points at
func (s *Service) Head(ctx context.Context) (string, error) {
	repo, err := s.open()
	if err != nil {
		return "", err
	}

	ref, err := repo.Head()
	if err != nil {
		return "", fmt.Errorf("resolving HEAD: %w", err)
	}
	return ref.Hash().String(), nil
}

// AddAll stages every change in the working tree, including deletions
func (s *Service) AddAll(ctx context.Context) error {
	_, err := s.cli.run(ctx, "add", "-A")
	return err
}

// Add stages a single path
func (s *Service) Add(ctx context.Context, path string) error {
	_, err := s.cli.run(ctx, "add", "--", path)
	return err
}

// Commit records the staged changes and returns the new commit hash
func (s *Service) Commit(ctx context.Context, message string) (string, error) {
	if _, err := s.cli.run(ctx, "commit", "-m", message); err != nil {
		return "", err
	}

	ref, err := s.Head(ctx)
	if err != nil {
		return "", err
	}

	s.logger.Debug("Created commit", "ref", ref)
	return ref, nil
}

// Fetch updates the remote tracking refs
func (s *Service) Fetch(ctx context.Context, remote string) error {
	repo, err := s.open()
	if err != nil {
		return err
	}

	err = repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: remote,
		Auth:       s.auth(),
	})
	switch {
	case err == nil,
		errors.Is(err, git.NoErrAlreadyUpToDate),
		errors.Is(err, transport.ErrEmptyRemoteRepository):
		return nil
	case errors.Is(err, git.ErrRemoteNotFound):
		return fmt.Errorf("%w: %s", ErrNoRemote, remote)
	}
	return classifyTransportError("fetch", err)
}

// Pull integrates the remote branch into the local one. A stop on
// conflicting changes is reported as ErrMergeConflict.
func (s *Service) Pull(ctx context.Context, remote, branch string, strategy PullStrategy) error {
	args := []string{"pull", "--no-edit"}
	switch strategy {
	case PullRebase:
		args = append(args, "--rebase")
	case PullFastForwardOnly:
		args = append(args, "--ff-only")
	default:
		args = append(args, "--no-rebase")
	}
	args = append(args, remote, branch)

	out, err := s.cli.run(ctx, args...)
	if err != nil {
		if isConflictOutput(out) {
			return fmt.Errorf("%w: %v", ErrMergeConflict, err)
		}
		return err
	}
	return nil
}

// Push sends the local branch to the same branch on the remote
func (s *Service) Push(ctx context.Context, remote, branch string) error {
	repo, err := s.open()
	if err != nil {
		return err
	}

	spec := config.RefSpec(fmt.Sprintf("refs/heads/%s:refs/heads/%s", branch, branch))
	err = repo.PushContext(ctx, &git.PushOptions{
		RemoteName: remote,
		RefSpecs:   []config.RefSpec{spec},
		Auth:       s.auth(),
	})
	switch {
	case err == nil, errors.Is(err, git.NoErrAlreadyUpToDate):
		return nil
	case errors.Is(err, git.ErrRemoteNotFound):
		return fmt.Errorf("%w: %s", ErrNoRemote, remote)
	case errors.Is(err, git.ErrNonFastForwardUpdate),
		strings.Contains(err.Error(), "non-fast-forward"),
		strings.Contains(err.Error(), "fetch first"):
		return fmt.Errorf("%w: %v", ErrNonFastForward, err)
	}
	return classifyTransportError("push", err)
}

// CheckoutSide replaces a conflicted file with one side of the merge
func (s *Service) CheckoutSide(ctx context.Context, path string, side Side) error {
	_, err := s.cli.run(ctx, "checkout", "--"+string(side), "--", path)
	return err
}

// Abs resolves a repository-relative path inside the working directory
func (s *Service) Abs(path string) (string, error) {
	full := filepath.Join(s.root, filepath.FromSlash(path))
	rel, err := filepath.Rel(s.root, full)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the repository", path)
	}
	return full, nil
}

func (s *Service) auth() transport.AuthMethod {
	if s.opts.Token == "" {
		return nil
	}

	username := s.opts.Username
	if username == "" {
		// Token-based HTTPS auth accepts any non-empty username
		username = "plansync"
	}
	return &http.BasicAuth{Username: username, Password: s.opts.Token}
}

func classifyTransportError(op string, err error) error {
	switch {
	case errors.Is(err, transport.ErrAuthenticationRequired):
		return fmt.Errorf("%s: %w: %v", op, ErrAuthentication, err)
	case errors.Is(err, transport.ErrAuthorizationFailed):
		return fmt.Errorf("%s: %w: %v", op, ErrPermissionDenied, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isConflictOutput(out string) bool {
	return strings.Contains(out, "CONFLICT") ||
		strings.Contains(out, "Automatic merge failed") ||
		strings.Contains(out, "could not apply")
}
