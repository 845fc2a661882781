package repository

import (
	"errors"
	"fmt"
	"os"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"go.uber.org/zap"
)

// committer identifies commits and tags created by afk itself (the
// bootstrap commit). Turn commits are authored by the agent CLI.
var committer = object.Signature{
	Name:  "afk",
	Email: "afk@localhost",
}

// Service provides repository observation and mutation for a session.
type Service interface {
	// Head returns the current HEAD revision, or the zero Revision when
	// the repository has no commits yet.
	Head() (Revision, error)

	// CommitMessage returns the full message of a revision. Fails when
	// the revision is absent.
	CommitMessage(rev Revision) (string, error)

	// CommitsBetween returns the commits reachable from after but not
	// from before, oldest first. The walk follows every parent, so merge
	// commits cannot hide commits from the range. An empty before means
	// "from the first commit" (the root commit itself excluded).
	CommitsBetween(before, after Revision) ([]CommitRecord, error)

	// IsRepository reports whether the directory is a git repository.
	IsRepository() bool

	// Initialize creates a new repository in the directory.
	Initialize() error

	// CommitEmpty creates an empty commit with the given message and
	// returns its revision. Used for the session bootstrap commit so
	// HEAD is always defined afterwards.
	CommitEmpty(message string) (Revision, error)

	// IsEmptyDirectory reports whether the directory has no entries
	// other than .git.
	IsEmptyDirectory() (bool, error)

	// TagExists reports whether a tag with the given name exists.
	TagExists(name string) (bool, error)

	// CreateTag creates a lightweight tag pointing at the revision. The
	// revision must resolve to an existing commit. The existence check
	// is repeated immediately before creation and a collision fails:
	// tags are permanent boundary markers, never moved.
	CreateTag(name string, rev Revision) error

	// TagRevision returns the revision a tag points at.
	TagRevision(name string) (Revision, error)

	// Path returns the repository root directory.
	Path() string
}

// service implements Service on go-git.
type service struct {
	path   string
	logger *zap.Logger

	repo *git.Repository
}

// New creates a repository facade for the given directory. The directory
// must exist; it does not need to be a repository yet.
func New(path string, logger *zap.Logger) (Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("repository path does not exist: %s", path)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("repository path is not a directory: %s", path)
	}
	return &service{path: path, logger: logger}, nil
}

func (s *service) Path() string { return s.path }

// open returns the cached go-git repository, opening it on first use.
func (s *service) open() (*git.Repository, error) {
	if s.repo != nil {
		return s.repo, nil
	}
	repo, err := git.PlainOpen(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open repository at %s: %w", s.path, err)
	}
	s.repo = repo
	return repo, nil
}

func (s *service) IsRepository() bool {
	if s.repo != nil {
		return true
	}
	_, err := git.PlainOpen(s.path)
	return err == nil
}

func (s *service) Initialize() error {
	repo, err := git.PlainInit(s.path, false)
	if err != nil {
		return fmt.Errorf("failed to initialize repository at %s: %w", s.path, err)
	}
	s.repo = repo
	s.logger.Info("initialized repository", zap.String("path", s.path))
	return nil
}

func (s *service) Head() (Revision, error) {
	repo, err := s.open()
	if err != nil {
		return "", err
	}
	ref, err := repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			// Valid repository, just no commits yet.
			return "", nil
		}
		return "", fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	return Revision(ref.Hash().String()), nil
}

func (s *service) CommitMessage(rev Revision) (string, error) {
	commit, err := s.commitObject(rev)
	if err != nil {
		return "", err
	}
	return commit.Message, nil
}

func (s *service) CommitsBetween(before, after Revision) ([]CommitRecord, error) {
	afterCommit, err := s.commitObject(after)
	if err != nil {
		return nil, err
	}

	base := before
	if base == "" {
		base, err = s.rootCommit(afterCommit)
		if err != nil {
			return nil, err
		}
	}
	baseCommit, err := s.commitObject(base)
	if err != nil {
		return nil, err
	}

	// Every commit reachable from base is excluded from the range, base
	// itself included.
	excluded := make(map[plumbing.Hash]bool)
	err = object.NewCommitPreorderIter(baseCommit, nil, nil).ForEach(func(c *object.Commit) error {
		excluded[c.Hash] = true
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk ancestors of %s: %w", base.Short(), err)
	}

	included := make(map[plumbing.Hash]*object.Commit)
	err = object.NewCommitPreorderIter(afterCommit, excluded, nil).ForEach(func(c *object.Commit) error {
		included[c.Hash] = c
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk commits of %s: %w", after.Short(), err)
	}
	if len(included) == 0 {
		return nil, nil
	}

	records := make([]CommitRecord, 0, len(included))
	for _, c := range orderOldestFirst(afterCommit, included) {
		records = append(records, CommitRecord{
			Hash:    Revision(c.Hash.String()),
			Message: c.Message,
		})
	}
	return records, nil
}

// orderOldestFirst arranges the included commits so that parents always
// precede children (a post-order walk from after). Commit timestamps are
// not used: git records them with one-second resolution, too coarse to
// order commits created in quick succession.
func orderOldestFirst(after *object.Commit, included map[plumbing.Hash]*object.Commit) []*object.Commit {
	type frame struct {
		c        *object.Commit
		expanded bool
	}

	ordered := make([]*object.Commit, 0, len(included))
	visited := make(map[plumbing.Hash]bool, len(included))
	stack := []frame{{c: after}}

	for len(stack) > 0 {
		i := len(stack) - 1
		if stack[i].expanded {
			c := stack[i].c
			stack = stack[:i]
			if !visited[c.Hash] {
				visited[c.Hash] = true
				ordered = append(ordered, c)
			}
			continue
		}
		stack[i].expanded = true
		for _, ph := range stack[i].c.ParentHashes {
			if pc, ok := included[ph]; ok && !visited[ph] {
				stack = append(stack, frame{c: pc})
			}
		}
	}
	return ordered
}

// rootCommit returns the single root commit reachable from the given
// commit. Multi-root repositories are not supported.
func (s *service) rootCommit(from *object.Commit) (Revision, error) {
	var roots []Revision
	err := object.NewCommitPreorderIter(from, nil, nil).ForEach(func(c *object.Commit) error {
		if c.NumParents() == 0 {
			roots = append(roots, Revision(c.Hash.String()))
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to find root commit: %w", err)
	}
	if len(roots) == 0 {
		return "", fmt.Errorf("no root commit found")
	}
	if len(roots) > 1 {
		return "", fmt.Errorf("repository has %d root commits; only single-root repositories are supported", len(roots))
	}
	return roots[0], nil
}

func (s *service) CommitEmpty(message string) (Revision, error) {
	repo, err := s.open()
	if err != nil {
		return "", err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return "", fmt.Errorf("failed to open worktree: %w", err)
	}

	sig := committer
	sig.When = time.Now()
	hash, err := wt.Commit(message, &git.CommitOptions{
		AllowEmptyCommits: true,
		Author:            &sig,
		Committer:         &sig,
	})
	if err != nil {
		return "", fmt.Errorf("failed to create empty commit: %w", err)
	}
	return Revision(hash.String()), nil
}

func (s *service) IsEmptyDirectory() (bool, error) {
	entries, err := os.ReadDir(s.path)
	if err != nil {
		return false, fmt.Errorf("failed to read directory %s: %w", s.path, err)
	}
	for _, entry := range entries {
		if entry.Name() != ".git" {
			return false, nil
		}
	}
	return true, nil
}

func (s *service) TagExists(name string) (bool, error) {
	repo, err := s.open()
	if err != nil {
		return false, err
	}
	_, err = repo.Tag(name)
	if err != nil {
		if errors.Is(err, git.ErrTagNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to look up tag %s: %w", name, err)
	}
	return true, nil
}

func (s *service) CreateTag(name string, rev Revision) error {
	repo, err := s.open()
	if err != nil {
		return err
	}
	// Resolve first: a tag must never point at a missing object.
	if _, err := s.commitObject(rev); err != nil {
		return err
	}
	// Re-check immediately before creating. A collision fails rather
	// than moving the existing tag.
	exists, err := s.TagExists(name)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("tag already exists: %s", name)
	}
	if _, err := repo.CreateTag(name, plumbing.NewHash(rev.String()), nil); err != nil {
		return fmt.Errorf("failed to create tag %s: %w", name, err)
	}
	s.logger.Debug("created tag",
		zap.String("tag", name),
		zap.String("revision", rev.Short()))
	return nil
}

func (s *service) TagRevision(name string) (Revision, error) {
	repo, err := s.open()
	if err != nil {
		return "", err
	}
	ref, err := repo.Tag(name)
	if err != nil {
		return "", fmt.Errorf("failed to look up tag %s: %w", name, err)
	}
	return Revision(ref.Hash().String()), nil
}

// commitObject resolves a revision to its commit object.
func (s *service) commitObject(rev Revision) (*object.Commit, error) {
	repo, err := s.open()
	if err != nil {
		return nil, err
	}
	commit, err := repo.CommitObject(plumbing.NewHash(rev.String()))
	if err != nil {
		return nil, fmt.Errorf("commit %s not found: %w", rev.Short(), err)
	}
	return commit, nil
}
