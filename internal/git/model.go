// Package git provides the version-control backend used by the sync engine
package git

import (
	"errors"
	"time"
)

var (
	// ErrNotRepository is returned when the working directory is not a git repository
	ErrNotRepository = errors.New("not a git repository")

	// ErrNoRemote is returned when the configured remote does not exist
	ErrNoRemote = errors.New("no remote configured")

	// ErrMergeConflict is returned when a pull stops on conflicting changes
	ErrMergeConflict = errors.New("merge conflict")

	// ErrNonFastForward is returned when the remote rejects a push because
	// it would drop commits that only exist remotely
	ErrNonFastForward = errors.New("non-fast-forward update rejected")

	// ErrAuthentication is returned when the remote asks for credentials
	// that were not supplied or were refused
	ErrAuthentication = errors.New("authentication failed")

	// ErrPermissionDenied is returned when the credentials are valid but not
	// allowed to perform the operation
	ErrPermissionDenied = errors.New("permission denied")
)

// Side selects one version of a conflicted file
type Side string

const (
	// SideOurs keeps the local (working tree) version
	SideOurs Side = "ours"
	// SideTheirs takes the version being merged in from the remote
	SideTheirs Side = "theirs"
)

// PullStrategy controls how remote commits are integrated
type PullStrategy string

const (
	// PullMerge creates a merge commit when histories diverged
	PullMerge PullStrategy = "merge"
	// PullRebase replays local commits on top of the remote branch
	PullRebase PullStrategy = "rebase"
	// PullFastForwardOnly refuses to integrate diverged histories
	PullFastForwardOnly PullStrategy = "ff-only"
)

// RepoStatus is a snapshot of the working tree relative to HEAD and to the
// remote tracking branch. Paths are repository-relative, slash separated and
// sorted.
type RepoStatus struct {
	Modified   []string `json:"modified"`
	Created    []string `json:"created"`
	Deleted    []string `json:"deleted"`
	Untracked  []string `json:"untracked"`
	Conflicted []string `json:"conflicted"`
	Ahead      int      `json:"ahead"`  // local commits missing on the remote
	Behind     int      `json:"behind"` // remote commits missing locally
}

// IsClean reports whether the working tree has nothing to stage or commit
func (s *RepoStatus) IsClean() bool {
	return len(s.Modified) == 0 &&
		len(s.Created) == 0 &&
		len(s.Deleted) == 0 &&
		len(s.Untracked) == 0 &&
		len(s.Conflicted) == 0
}

// Changed returns the number of paths with uncommitted changes
func (s *RepoStatus) Changed() int {
	return len(s.Modified) + len(s.Created) + len(s.Deleted) + len(s.Untracked) + len(s.Conflicted)
}

// Options configures the git backend
type Options struct {
	GitBinary   string        // git executable used for merge, staging and commit
	Timeout     time.Duration // upper bound for a single git invocation
	AuthorName  string        // optional commit identity override
	AuthorEmail string
	Username    string // HTTPS credentials for fetch and push
	Token       string
}
