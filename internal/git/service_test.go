package git

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tildaslashalef/plansync/internal/loggy"
)

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
}

// Helper function to run git inside a directory
func gitCmd(t *testing.T, dir string, args ...string) string {
	t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	require.NoError(t, err, "git %s failed: %s", strings.Join(args, " "), out)
	return strings.TrimSpace(string(out))
}

// Helper function to set up a repository with an initial commit on main
func setupTempGitRepo(t *testing.T) string {
	dir := t.TempDir()
	gitCmd(t, dir, "init", "--initial-branch=main")
	configureIdentity(t, dir)

	createFile(t, dir, "README.md", "# Plans\n")
	gitCmd(t, dir, "add", "README.md")
	gitCmd(t, dir, "commit", "-m", "Initial commit")
	return dir
}

func configureIdentity(t *testing.T, dir string) {
	gitCmd(t, dir, "config", "user.name", "Test User")
	gitCmd(t, dir, "config", "user.email", "test@example.com")
}

// Helper function to create a bare remote and two clones of it
func setupRemotePair(t *testing.T) (remote, first, second string) {
	seed := setupTempGitRepo(t)

	remote = filepath.Join(t.TempDir(), "remote.git")
	gitCmd(t, seed, "clone", "--bare", seed, remote)

	first = filepath.Join(t.TempDir(), "first")
	second = filepath.Join(t.TempDir(), "second")
	gitCmd(t, seed, "clone", "--branch", "main", remote, first)
	gitCmd(t, seed, "clone", "--branch", "main", remote, second)
	configureIdentity(t, first)
	configureIdentity(t, second)
	return remote, first, second
}

// Helper function to create a file in the repository
func createFile(t *testing.T, repoPath, filename, content string) {
	filePath := filepath.Join(repoPath, filename)
	require.NoError(t, os.MkdirAll(filepath.Dir(filePath), 0755))
	require.NoError(t, os.WriteFile(filePath, []byte(content), 0644), "Failed to create file")
}

func newTestService(root string) *Service {
	return NewService(root, Options{}, loggy.NewNoopLogger())
}

func TestIsRepoAndInit(t *testing.T) {
	requireGit(t)
	ctx := context.Background()
	dir := t.TempDir()
	service := newTestService(dir)

	ok, err := service.IsRepo(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, service.Init(ctx, "main"))

	ok, err = service.IsRepo(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "refs/heads/main", gitCmd(t, dir, "symbolic-ref", "HEAD"))

	_, err = newTestService(t.TempDir()).Status(ctx, "origin", "main")
	assert.ErrorIs(t, err, ErrNotRepository)
}

func TestStatus(t *testing.T) {
	requireGit(t)
	ctx := context.Background()
	repoPath := setupTempGitRepo(t)
	service := newTestService(repoPath)

	status, err := service.Status(ctx, "origin", "main")
	require.NoError(t, err)
	assert.True(t, status.IsClean())
	// No tracking ref yet, so the initial commit still needs pushing
	assert.Equal(t, 1, status.Ahead)
	assert.Equal(t, 0, status.Behind)

	createFile(t, repoPath, "tasks/buy-milk.md", "- [ ] Buy milk\n")
	createFile(t, repoPath, "README.md", "# Plans\n\nUpdated\n")
	createFile(t, repoPath, "notes/staged.md", "staged\n")
	gitCmd(t, repoPath, "add", "notes/staged.md")

	status, err = service.Status(ctx, "origin", "main")
	require.NoError(t, err)
	assert.False(t, status.IsClean())
	assert.Equal(t, []string{"tasks/buy-milk.md"}, status.Untracked)
	assert.Equal(t, []string{"README.md"}, status.Modified)
	assert.Equal(t, []string{"notes/staged.md"}, status.Created)
	assert.Equal(t, 3, status.Changed())

	require.NoError(t, service.AddAll(ctx))
	ref, err := service.Commit(ctx, "Batch update: 3 changes")
	require.NoError(t, err)
	assert.Equal(t, gitCmd(t, repoPath, "rev-parse", "HEAD"), ref)

	require.NoError(t, os.Remove(filepath.Join(repoPath, "README.md")))
	status, err = service.Status(ctx, "origin", "main")
	require.NoError(t, err)
	assert.Equal(t, []string{"README.md"}, status.Deleted)
	assert.Equal(t, 2, status.Ahead)
}

func TestStatusTrackedFilesAreNotConflicted(t *testing.T) {
	requireGit(t)
	ctx := context.Background()
	repoPath := setupTempGitRepo(t)
	createFile(t, repoPath, "tasks/a.md", "a\n")
	createFile(t, repoPath, "tasks/b.md", "b\n")
	gitCmd(t, repoPath, "add", "-A")
	gitCmd(t, repoPath, "commit", "-m", "Add tasks")
	service := newTestService(repoPath)

	status, err := service.Status(ctx, "origin", "main")
	require.NoError(t, err)
	assert.Empty(t, status.Conflicted)
	assert.True(t, status.IsClean())
	assert.Empty(t, gitCmd(t, repoPath, "status", "--porcelain"))

	createFile(t, repoPath, "tasks/a.md", "a changed\n")
	status, err = service.Status(ctx, "origin", "main")
	require.NoError(t, err)
	assert.Empty(t, status.Conflicted)
	assert.Equal(t, []string{"tasks/a.md"}, status.Modified)

	gitCmd(t, repoPath, "add", "tasks/a.md")
	status, err = service.Status(ctx, "origin", "main")
	require.NoError(t, err)
	assert.Empty(t, status.Conflicted)
	assert.Equal(t, []string{"tasks/a.md"}, status.Modified)
}

func TestCommitWithNothingStaged(t *testing.T) {
	requireGit(t)
	service := newTestService(setupTempGitRepo(t))

	_, err := service.Commit(context.Background(), "Sync local changes")
	assert.Error(t, err)
}

func TestListRemotes(t *testing.T) {
	requireGit(t)
	ctx := context.Background()
	repoPath := setupTempGitRepo(t)
	service := newTestService(repoPath)

	remotes, err := service.ListRemotes(ctx)
	require.NoError(t, err)
	assert.Empty(t, remotes)

	gitCmd(t, repoPath, "remote", "add", "origin", "https://example.com/plans.git")
	gitCmd(t, repoPath, "remote", "add", "backup", "https://example.com/backup.git")

	remotes, err = service.ListRemotes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"backup", "origin"}, remotes)
}

func TestAddRemoteAndRemoteURL(t *testing.T) {
	requireGit(t)
	ctx := context.Background()
	repoPath := setupTempGitRepo(t)
	service := newTestService(repoPath)

	_, err := service.RemoteURL(ctx, "origin")
	assert.ErrorIs(t, err, ErrNoRemote)

	require.NoError(t, service.AddRemote(ctx, "origin", "https://example.com/first.git"))
	url, err := service.RemoteURL(ctx, "origin")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/first.git", url)

	// Adding again replaces the URL
	require.NoError(t, service.AddRemote(ctx, "origin", "https://example.com/second.git"))
	url, err = service.RemoteURL(ctx, "origin")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/second.git", url)

	out := gitCmd(t, repoPath, "remote", "get-url", "origin")
	assert.Equal(t, "https://example.com/second.git", strings.TrimSpace(out))
}

func TestFetchPullPush(t *testing.T) {
	requireGit(t)
	ctx := context.Background()
	remote, first, second := setupRemotePair(t)
	a := newTestService(first)
	b := newTestService(second)

	createFile(t, first, "tasks/a.md", "from first\n")
	require.NoError(t, a.AddAll(ctx))
	_, err := a.Commit(ctx, `Add "a"`)
	require.NoError(t, err)

	status, err := a.Status(ctx, "origin", "main")
	require.NoError(t, err)
	assert.Equal(t, 1, status.Ahead)

	require.NoError(t, a.Push(ctx, "origin", "main"))
	assert.Equal(t, gitCmd(t, first, "rev-parse", "HEAD"), gitCmd(t, remote, "rev-parse", "main"))

	// Pushing again is a no-op
	require.NoError(t, a.Push(ctx, "origin", "main"))

	require.NoError(t, b.Fetch(ctx, "origin"))
	status, err = b.Status(ctx, "origin", "main")
	require.NoError(t, err)
	assert.Equal(t, 1, status.Behind)
	assert.Equal(t, 0, status.Ahead)

	require.NoError(t, b.Pull(ctx, "origin", "main", PullMerge))
	_, err = os.Stat(filepath.Join(second, "tasks", "a.md"))
	assert.NoError(t, err)

	require.NoError(t, b.Fetch(ctx, "origin"))
	status, err = b.Status(ctx, "origin", "main")
	require.NoError(t, err)
	assert.Equal(t, 0, status.Behind)
}

func TestPushRejectedAndConflict(t *testing.T) {
	requireGit(t)
	ctx := context.Background()
	_, first, second := setupRemotePair(t)
	a := newTestService(first)
	b := newTestService(second)

	createFile(t, first, "README.md", "first edit\n")
	require.NoError(t, a.AddAll(ctx))
	_, err := a.Commit(ctx, "Update README from first")
	require.NoError(t, err)
	require.NoError(t, a.Push(ctx, "origin", "main"))

	createFile(t, second, "README.md", "second edit\n")
	require.NoError(t, b.AddAll(ctx))
	_, err = b.Commit(ctx, "Update README from second")
	require.NoError(t, err)

	err = b.Push(ctx, "origin", "main")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNonFastForward)

	require.NoError(t, b.Fetch(ctx, "origin"))
	status, err := b.Status(ctx, "origin", "main")
	require.NoError(t, err)
	assert.Equal(t, 1, status.Ahead)
	assert.Equal(t, 1, status.Behind)

	err = b.Pull(ctx, "origin", "main", PullMerge)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMergeConflict)

	status, err = b.Status(ctx, "origin", "main")
	require.NoError(t, err)
	assert.Equal(t, []string{"README.md"}, status.Conflicted)

	content, err := os.ReadFile(filepath.Join(second, "README.md"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "<<<<<<<")

	require.NoError(t, b.CheckoutSide(ctx, "README.md", SideTheirs))
	require.NoError(t, b.Add(ctx, "README.md"))

	status, err = b.Status(ctx, "origin", "main")
	require.NoError(t, err)
	assert.Empty(t, status.Conflicted)

	content, err = os.ReadFile(filepath.Join(second, "README.md"))
	require.NoError(t, err)
	assert.Equal(t, "first edit\n", string(content))

	_, err = b.Commit(ctx, "Resolve merge conflicts")
	require.NoError(t, err)
	require.NoError(t, b.Push(ctx, "origin", "main"))
}

func TestFetchUnknownRemote(t *testing.T) {
	requireGit(t)
	service := newTestService(setupTempGitRepo(t))

	err := service.Fetch(context.Background(), "origin")
	assert.ErrorIs(t, err, ErrNoRemote)
}

func TestAbs(t *testing.T) {
	service := newTestService("/srv/plans")

	path, err := service.Abs("tasks/a.md")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/srv/plans", "tasks", "a.md"), path)

	_, err = service.Abs("../etc/passwd")
	assert.Error(t, err)
}

func TestIsConflictOutput(t *testing.T) {
	assert.True(t, isConflictOutput("CONFLICT (content): Merge conflict in README.md"))
	assert.True(t, isConflictOutput("Automatic merge failed; fix conflicts and then commit the result."))
	assert.False(t, isConflictOutput("fatal: couldn't find remote ref main"))
}
