// Package history keeps a local git repository with one commit per published
// snapshot of the site data, so earlier versions can be listed and restored.
package history

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/folio-works/portfolio-api/internal/config"
	"github.com/folio-works/portfolio-api/internal/domain"
	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// SnapshotFile is the file name every snapshot is committed under.
const SnapshotFile = "data.json"

const defaultBranch = "main"

var ErrVersionNotFound = errors.New("version not found")

type Store struct {
	mu          sync.Mutex
	repo        *git.Repository
	authorName  string
	authorEmail string
}

// Open opens the history repository at cfg.Path, initialising it on first use.
func Open(cfg *config.HistoryConfig) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("history path is required")
	}

	repo, err := git.PlainOpen(cfg.Path)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		repo, err = initRepo(cfg.Path)
	}
	if err != nil {
		return nil, fmt.Errorf("open history repo: %w", err)
	}

	name := cfg.AuthorName
	if name == "" {
		name = "Portfolio Admin"
	}
	email := cfg.AuthorEmail
	if email == "" {
		email = "admin@portfolio.local"
	}

	return &Store{repo: repo, authorName: name, authorEmail: email}, nil
}

func initRepo(path string) (*git.Repository, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("create repo dir: %w", err)
	}
	repo, err := git.PlainInit(path, false)
	if err != nil {
		return nil, fmt.Errorf("init repo: %w", err)
	}
	head := plumbing.NewSymbolicReference(plumbing.HEAD, plumbing.NewBranchReferenceName(defaultBranch))
	if err := repo.Storer.SetReference(head); err != nil {
		return nil, fmt.Errorf("set HEAD to %s: %w", defaultBranch, err)
	}
	return repo, nil
}

// Record commits content as the newest snapshot. When content matches the
// current head the existing head hash is returned with changed=false.
func (s *Store) Record(content []byte, message string) (hash string, changed bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if head, err := s.headCommit(); err != nil {
		return "", false, err
	} else if head != nil {
		current, err := readSnapshot(head)
		if err == nil && bytes.Equal(current, content) {
			return head.Hash.String(), false, nil
		}
	}

	worktree, err := s.repo.Worktree()
	if err != nil {
		return "", false, fmt.Errorf("open worktree: %w", err)
	}

	root := worktree.Filesystem.Root()
	if err := os.WriteFile(filepath.Join(root, SnapshotFile), content, 0o644); err != nil {
		return "", false, fmt.Errorf("write %s: %w", SnapshotFile, err)
	}
	if _, err := worktree.Add(SnapshotFile); err != nil {
		return "", false, fmt.Errorf("git add snapshot: %w", err)
	}

	commitHash, err := worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  s.authorName,
			Email: s.authorEmail,
			When:  time.Now(),
		},
	})
	if err != nil {
		return "", false, fmt.Errorf("commit snapshot: %w", err)
	}
	return commitHash.String(), true, nil
}

// Log lists snapshots newest first. limit <= 0 returns everything.
func (s *Store) Log(limit int) ([]domain.VersionDTO, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	head, err := s.headCommit()
	if err != nil {
		return nil, err
	}
	versions := make([]domain.VersionDTO, 0)
	if head == nil {
		return versions, nil
	}

	iter, err := s.repo.Log(&git.LogOptions{From: head.Hash})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	err = iter.ForEach(func(c *object.Commit) error {
		versions = append(versions, toVersion(c))
		if limit > 0 && len(versions) >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return versions, nil
}

// Read returns the snapshot stored at hash. Abbreviated hashes are accepted.
func (s *Store) Read(hash string) ([]byte, domain.VersionDTO, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	resolved, err := s.resolve(hash)
	if err != nil {
		return nil, domain.VersionDTO{}, err
	}
	c, err := s.repo.CommitObject(resolved)
	if err != nil {
		if errors.Is(err, plumbing.ErrObjectNotFound) {
			return nil, domain.VersionDTO{}, ErrVersionNotFound
		}
		return nil, domain.VersionDTO{}, fmt.Errorf("read commit %s: %w", hash, err)
	}
	content, err := readSnapshot(c)
	if err != nil {
		return nil, domain.VersionDTO{}, err
	}
	return content, toVersion(c), nil
}

func (s *Store) headCommit() (*object.Commit, error) {
	ref, err := s.repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("resolve HEAD: %w", err)
	}
	c, err := s.repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("read head commit: %w", err)
	}
	return c, nil
}

func (s *Store) resolve(hash string) (plumbing.Hash, error) {
	hash = strings.TrimSpace(hash)
	if len(hash) < 4 || strings.Trim(hash, "0123456789abcdef") != "" {
		return plumbing.ZeroHash, ErrVersionNotFound
	}
	if len(hash) == 40 {
		return plumbing.NewHash(hash), nil
	}
	resolved, err := s.repo.ResolveRevision(plumbing.Revision(hash))
	if err != nil {
		return plumbing.ZeroHash, ErrVersionNotFound
	}
	return *resolved, nil
}

func readSnapshot(c *object.Commit) ([]byte, error) {
	file, err := c.File(SnapshotFile)
	if err != nil {
		return nil, fmt.Errorf("load %s from commit: %w", SnapshotFile, err)
	}
	reader, err := file.Reader()
	if err != nil {
		return nil, fmt.Errorf("open snapshot reader: %w", err)
	}
	defer reader.Close()
	return io.ReadAll(reader)
}

func toVersion(c *object.Commit) domain.VersionDTO {
	return domain.VersionDTO{
		Hash:      c.Hash.String(),
		Message:   strings.TrimSpace(c.Message),
		Author:    c.Author.Name,
		Timestamp: c.Author.When.UTC(),
	}
}
