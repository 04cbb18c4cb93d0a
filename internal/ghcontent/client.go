// Package ghcontent reads and writes single files in a GitHub repository
// through the repository contents API.
package ghcontent

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/folio-works/portfolio-api/internal/config"
	"github.com/google/go-github/v66/github"
	"go.uber.org/zap"
)

var (
	ErrNotFound      = errors.New("file not found in repository")
	ErrConflict      = errors.New("file changed since its sha was read")
	ErrUnauthorized  = errors.New("github token rejected")
	ErrNotConfigured = errors.New("github repository is not configured")
)

// File is the current state of a repository file
type File struct {
	Path    string
	SHA     string
	Content []byte
}

// Commit describes the result of a write
type Commit struct {
	SHA     string
	FileSHA string
	URL     string
	// Unchanged is set when the file already held the content and no commit was made
	Unchanged bool
	Attempts  int
}

// Client talks to one repository and branch
type Client struct {
	gh     *github.Client
	owner  string
	repo   string
	branch string
	logger *zap.Logger
}

// New creates a client from config. APIBaseURL points the client at GitHub
// Enterprise (or a test server) when set.
func New(cfg *config.GitHubConfig, logger *zap.Logger) (*Client, error) {
	if cfg.Repository == "" {
		return nil, ErrNotConfigured
	}
	owner, repo, err := cfg.OwnerAndRepo()
	if err != nil {
		return nil, err
	}

	gh := github.NewClient(&http.Client{Timeout: cfg.TimeoutDuration()})
	if cfg.Token != "" {
		gh = gh.WithAuthToken(cfg.Token)
	}
	if cfg.APIBaseURL != "" {
		base, err := url.Parse(strings.TrimRight(cfg.APIBaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("invalid github api base url: %w", err)
		}
		gh.BaseURL = base
	}

	branch := cfg.Branch
	if branch == "" {
		branch = "main"
	}

	return &Client{gh: gh, owner: owner, repo: repo, branch: branch, logger: logger}, nil
}

// Repository returns owner/name@branch for logging
func (c *Client) Repository() string {
	return c.owner + "/" + c.repo + "@" + c.branch
}

// GetFile reads a file at the head of the branch
func (c *Client) GetFile(ctx context.Context, path string) (*File, error) {
	opts := &github.RepositoryContentGetOptions{Ref: c.branch}
	fc, _, resp, err := c.gh.Repositories.GetContents(ctx, c.owner, c.repo, path, opts)
	if err != nil {
		return nil, c.classify(resp, err)
	}
	if fc == nil {
		return nil, fmt.Errorf("%s is a directory, not a file", path)
	}

	var content []byte
	if fc.GetEncoding() == "none" {
		// files over 1MB are not inlined
		rc, resp, err := c.gh.Repositories.DownloadContents(ctx, c.owner, c.repo, path, opts)
		if err != nil {
			return nil, c.classify(resp, err)
		}
		defer rc.Close()
		if content, err = io.ReadAll(rc); err != nil {
			return nil, fmt.Errorf("failed to download %s: %w", path, err)
		}
	} else {
		decoded, err := fc.GetContent()
		if err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", path, err)
		}
		content = []byte(decoded)
	}

	return &File{Path: fc.GetPath(), SHA: fc.GetSHA(), Content: content}, nil
}

// PutFile creates the file (sha empty) or replaces the revision identified by sha
func (c *Client) PutFile(ctx context.Context, path string, content []byte, message, sha string) (*Commit, error) {
	opts := &github.RepositoryContentFileOptions{
		Message: github.String(message),
		Content: content,
		Branch:  github.String(c.branch),
	}
	if sha != "" {
		opts.SHA = github.String(sha)
	}

	var (
		res  *github.RepositoryContentResponse
		resp *github.Response
		err  error
	)
	if sha == "" {
		res, resp, err = c.gh.Repositories.CreateFile(ctx, c.owner, c.repo, path, opts)
	} else {
		res, resp, err = c.gh.Repositories.UpdateFile(ctx, c.owner, c.repo, path, opts)
	}
	if err != nil {
		return nil, c.classify(resp, err)
	}

	commit := &Commit{SHA: res.Commit.GetSHA(), URL: res.Commit.GetHTMLURL()}
	if res.Content != nil {
		commit.FileSHA = res.Content.GetSHA()
	}
	return commit, nil
}

// Publish writes content to path, reading the current sha first and retrying
// with a fresh sha when another writer got in between. Identical content is not re-committed.
func (c *Client) Publish(ctx context.Context, path string, content []byte, message string, maxAttempts int) (*Commit, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		sha := ""
		current, err := c.GetFile(ctx, path)
		switch {
		case err == nil:
			sha = current.SHA
			if bytes.Equal(current.Content, content) {
				return &Commit{FileSHA: current.SHA, Unchanged: true, Attempts: attempt}, nil
			}
		case errors.Is(err, ErrNotFound):
			// first publish creates the file
		default:
			return nil, err
		}

		commit, err := c.PutFile(ctx, path, content, message, sha)
		if err == nil {
			commit.Attempts = attempt
			c.logger.Info("Published file to GitHub",
				zap.String("repository", c.Repository()),
				zap.String("path", path),
				zap.String("commit", commit.SHA),
				zap.Int("attempt", attempt),
			)
			return commit, nil
		}
		if !errors.Is(err, ErrConflict) {
			return nil, err
		}

		lastErr = err
		c.logger.Warn("GitHub file changed during publish, retrying with fresh sha",
			zap.String("path", path),
			zap.Int("attempt", attempt),
		)
	}
	return nil, fmt.Errorf("publish %s failed after %d attempts: %w", path, maxAttempts, lastErr)
}

// classify maps API failures onto package errors
func (c *Client) classify(resp *github.Response, err error) error {
	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return fmt.Errorf("github rate limit exceeded until %s: %w", rateErr.Rate.Reset.Time, err)
	}
	if resp == nil {
		return fmt.Errorf("github request failed: %w", err)
	}
	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	case http.StatusConflict:
		return fmt.Errorf("%w: %v", ErrConflict, err)
	case http.StatusUnprocessableEntity:
		// a missing or stale sha is reported as 422 on some endpoints
		if strings.Contains(strings.ToLower(err.Error()), "sha") {
			return fmt.Errorf("%w: %v", ErrConflict, err)
		}
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return fmt.Errorf("github request failed: %w", err)
}
