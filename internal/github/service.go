package github

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/go-github/v59/github"
	"github.com/tildaslashalef/plansync/internal/config"
	"github.com/tildaslashalef/plansync/internal/loggy"
)

// Repository describes a GitHub repository usable as the sync remote
type Repository struct {
	Owner         string
	Name          string
	CloneURL      string
	DefaultBranch string
	Private       bool
}

// FullName returns owner/name
func (r *Repository) FullName() string {
	return r.Owner + "/" + r.Name
}

// Service provides GitHub integration functionality
type Service struct {
	client *Client
	logger *loggy.Logger
}

// NewService creates a GitHub service using the git token from config
func NewService(cfg *config.Config, logger *loggy.Logger) (*Service, error) {
	client, err := NewClient(cfg.Git.Token, cfg.GitHub)
	if err != nil {
		return nil, err
	}
	return NewServiceWithClient(client, logger), nil
}

// NewServiceWithClient creates a GitHub service around an existing client
func NewServiceWithClient(client *Client, logger *loggy.Logger) *Service {
	return &Service{
		client: client,
		logger: logger,
	}
}

// GetRepository looks up owner/name
func (s *Service) GetRepository(ctx context.Context, owner, name string) (*Repository, error) {
	repo, err := s.client.GetRepository(ctx, owner, name)
	if err != nil {
		return nil, err
	}
	return toRepository(repo), nil
}

// EnsureRepository returns owner/name, creating it when it does not exist.
// The boolean reports whether the repository was created.
func (s *Service) EnsureRepository(ctx context.Context, owner, name string, private bool) (*Repository, bool, error) {
	existing, err := s.GetRepository(ctx, owner, name)
	if err == nil {
		s.logger.Debug("GitHub repository already exists", "repo", existing.FullName())
		return existing, false, nil
	}
	if !errors.Is(err, ErrRepositoryNotFound) {
		return nil, false, err
	}

	login, err := s.client.AuthenticatedLogin(ctx)
	if err != nil {
		return nil, false, err
	}

	// Repositories owned by someone else are created in that organization
	org := ""
	if !strings.EqualFold(login, owner) {
		org = owner
	}

	created, err := s.client.CreateRepository(ctx, org, &github.Repository{
		Name:        github.String(name),
		Private:     github.Bool(private),
		Description: github.String("Planner data synced by plansync"),
		AutoInit:    github.Bool(false),
	})
	if err != nil {
		return nil, false, err
	}

	repo := toRepository(created)
	s.logger.Info("Created GitHub repository", "repo", repo.FullName(), "private", repo.Private)
	return repo, true, nil
}

func toRepository(repo *github.Repository) *Repository {
	return &Repository{
		Owner:         repo.GetOwner().GetLogin(),
		Name:          repo.GetName(),
		CloneURL:      repo.GetCloneURL(),
		DefaultBranch: repo.GetDefaultBranch(),
		Private:       repo.GetPrivate(),
	}
}

// ParseSlug splits an owner/name argument
func ParseSlug(slug string) (owner, name string, err error) {
	parts := strings.Split(strings.TrimSuffix(slug, ".git"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("expected owner/name, got %q", slug)
	}
	return parts[0], parts[1], nil
}

// ParseRemoteURL extracts owner and repo from a GitHub remote URL. Both the
// HTTPS and the SSH forms are accepted:
//
//	https://github.com/owner/repo.git
//	git@github.com:owner/repo.git
func ParseRemoteURL(remoteURL string) (owner, repo string, err error) {
	if remoteURL == "" {
		return "", "", fmt.Errorf("empty Git URL")
	}

	trimmed := strings.TrimSuffix(strings.TrimSuffix(remoteURL, "/"), ".git")

	var path string
	switch {
	case strings.Contains(trimmed, "github.com/"):
		path = trimmed[strings.Index(trimmed, "github.com/")+len("github.com/"):]
	case strings.Contains(trimmed, "github.com:"):
		path = trimmed[strings.Index(trimmed, "github.com:")+len("github.com:"):]
	default:
		return "", "", fmt.Errorf("not a GitHub URL: %s", remoteURL)
	}

	owner, repo, err = ParseSlug(path)
	if err != nil {
		return "", "", fmt.Errorf("could not extract owner/repo from URL %s: %w", remoteURL, err)
	}
	return owner, repo, nil
}
