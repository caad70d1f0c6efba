// Package github provisions and inspects the GitHub repository used as the
// sync remote
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v59/github"
	"github.com/tildaslashalef/plansync/internal/config"
	"golang.org/x/oauth2"
)

const defaultAPIURL = "https://api.github.com"

var (
	// ErrRepositoryNotFound is returned when the repository does not exist or
	// is not visible to the token
	ErrRepositoryNotFound = errors.New("github repository not found")

	// ErrUnauthorized is returned when the token is missing or rejected
	ErrUnauthorized = errors.New("github token rejected")
)

// Client represents a GitHub API client
type Client struct {
	client *github.Client
}

// NewClient creates a GitHub API client authenticated with token. An empty
// token yields an anonymous client that can only read public repositories.
func NewClient(token string, cfg config.GitHubConfig) (*Client, error) {
	httpClient := &http.Client{}
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = oauth2.NewClient(context.Background(), ts)
	}

	timeout := cfg.RequestTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	httpClient.Timeout = timeout

	client := github.NewClient(httpClient)
	if cfg.APIURL != "" && strings.TrimSuffix(cfg.APIURL, "/") != defaultAPIURL {
		enterprise, err := client.WithEnterpriseURLs(cfg.APIURL, cfg.APIURL)
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub API URL %s: %w", cfg.APIURL, err)
		}
		client = enterprise
	}

	return &Client{client: client}, nil
}

// AuthenticatedLogin returns the login of the token owner
func (c *Client) AuthenticatedLogin(ctx context.Context) (string, error) {
	user, _, err := c.client.Users.Get(ctx, "")
	if err != nil {
		return "", classifyError("reading authenticated user", err)
	}
	return user.GetLogin(), nil
}

// GetRepository fetches a repository by owner and name
func (c *Client) GetRepository(ctx context.Context, owner, name string) (*github.Repository, error) {
	if owner == "" || name == "" {
		return nil, fmt.Errorf("owner and repo must be provided")
	}

	repo, _, err := c.client.Repositories.Get(ctx, owner, name)
	if err != nil {
		return nil, classifyError(fmt.Sprintf("getting %s/%s", owner, name), err)
	}
	return repo, nil
}

// CreateRepository creates a repository. An empty org creates it under the
// authenticated user.
func (c *Client) CreateRepository(ctx context.Context, org string, repo *github.Repository) (*github.Repository, error) {
	created, _, err := c.client.Repositories.Create(ctx, org, repo)
	if err != nil {
		return nil, classifyError(fmt.Sprintf("creating %s", repo.GetName()), err)
	}
	return created, nil
}

// BaseURL returns the API endpoint the client talks to
func (c *Client) BaseURL() *url.URL {
	return c.client.BaseURL
}

func classifyError(op string, err error) error {
	var errResp *github.ErrorResponse
	if errors.As(err, &errResp) && errResp.Response != nil {
		switch errResp.Response.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%s: %w", op, ErrRepositoryNotFound)
		case http.StatusUnauthorized:
			return fmt.Errorf("%s: %w", op, ErrUnauthorized)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
