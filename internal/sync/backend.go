package sync

import (
	"context"

	"github.com/tildaslashalef/plansync/internal/git"
)

// Backend is the version-control surface the engine drives.
// *git.Service implements it.
type Backend interface {
	IsRepo(ctx context.Context) (bool, error)
	Init(ctx context.Context, branch string) error
	ListRemotes(ctx context.Context) ([]string, error)
	Status(ctx context.Context, remote, branch string) (*git.RepoStatus, error)
	AddAll(ctx context.Context) error
	Add(ctx context.Context, path string) error
	Commit(ctx context.Context, message string) (string, error)
	Fetch(ctx context.Context, remote string) error
	Pull(ctx context.Context, remote, branch string, strategy git.PullStrategy) error
	Push(ctx context.Context, remote, branch string) error
	CheckoutSide(ctx context.Context, path string, side git.Side) error

	// Abs resolves a repository-relative path, rejecting paths outside the root
	Abs(path string) (string, error)
}

var _ Backend = (*git.Service)(nil)
