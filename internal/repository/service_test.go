package repository

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestService returns a facade over a fresh temp directory. The
// directory is not yet a repository.
func newTestService(t *testing.T) Service {
	t.Helper()
	svc, err := New(t.TempDir(), nil)
	require.NoError(t, err)
	return svc
}

// initialized returns a facade over a repository with one bootstrap commit.
func initialized(t *testing.T) (Service, Revision) {
	t.Helper()
	svc := newTestService(t)
	require.NoError(t, svc.Initialize())
	rev, err := svc.CommitEmpty("chore: bootstrap")
	require.NoError(t, err)
	return svc, rev
}

// commitWithParents creates an empty commit with explicit parents,
// bypassing the facade. Used to build merge topologies.
func commitWithParents(t *testing.T, path, message string, parents ...Revision) Revision {
	t.Helper()
	repo, err := git.PlainOpen(path)
	require.NoError(t, err)
	wt, err := repo.Worktree()
	require.NoError(t, err)

	hashes := make([]plumbing.Hash, 0, len(parents))
	for _, p := range parents {
		hashes = append(hashes, plumbing.NewHash(p.String()))
	}
	sig := &object.Signature{Name: "test", Email: "test@localhost", When: time.Now()}
	hash, err := wt.Commit(message, &git.CommitOptions{
		AllowEmptyCommits: true,
		Author:            sig,
		Committer:         sig,
		Parents:           hashes,
	})
	require.NoError(t, err)
	return Revision(hash.String())
}

func TestNew_RequiresExistingDirectory(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not exist")
}

func TestNew_RejectsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))

	_, err := New(path, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a directory")
}

func TestIsRepository(t *testing.T) {
	svc := newTestService(t)
	assert.False(t, svc.IsRepository())

	require.NoError(t, svc.Initialize())
	assert.True(t, svc.IsRepository())
}

func TestHead_NotARepositoryFails(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.Head()
	require.Error(t, err)
}

func TestHead_UnbornBranchReturnsZero(t *testing.T) {
	svc := newTestService(t)
	require.NoError(t, svc.Initialize())

	head, err := svc.Head()
	require.NoError(t, err)
	assert.Equal(t, Revision(""), head)
}

func TestCommitEmpty_DefinesHead(t *testing.T) {
	svc, rev := initialized(t)

	head, err := svc.Head()
	require.NoError(t, err)
	assert.Equal(t, rev, head)

	message, err := svc.CommitMessage(rev)
	require.NoError(t, err)
	assert.Equal(t, "chore: bootstrap", message)
}

func TestCommitMessage_MissingRevisionFails(t *testing.T) {
	svc, _ := initialized(t)

	_, err := svc.CommitMessage(Revision("0123456789abcdef0123456789abcdef01234567"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestCommitsBetween_BootstrapOnlyIsEmpty(t *testing.T) {
	svc, rev := initialized(t)

	records, err := svc.CommitsBetween("", rev)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestCommitsBetween_SingleCommit(t *testing.T) {
	svc, bootstrap := initialized(t)
	next, err := svc.CommitEmpty("feat: add widget\n\noutcome: success\n")
	require.NoError(t, err)

	records, err := svc.CommitsBetween(bootstrap, next)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, next, records[0].Hash)
	assert.Equal(t, "feat: add widget", records[0].Subject())
}

func TestCommitsBetween_SameRevisionIsEmpty(t *testing.T) {
	svc, bootstrap := initialized(t)

	records, err := svc.CommitsBetween(bootstrap, bootstrap)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestCommitsBetween_OldestFirst(t *testing.T) {
	svc, bootstrap := initialized(t)
	first, err := svc.CommitEmpty("first")
	require.NoError(t, err)
	second, err := svc.CommitEmpty("second")
	require.NoError(t, err)

	records, err := svc.CommitsBetween(bootstrap, second)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, first, records[0].Hash)
	assert.Equal(t, second, records[1].Hash)
}

func TestCommitsBetween_FromFirstCommit(t *testing.T) {
	svc, _ := initialized(t)
	first, err := svc.CommitEmpty("first")
	require.NoError(t, err)

	records, err := svc.CommitsBetween("", first)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, first, records[0].Hash)
}

func TestCommitsBetween_MergeDoesNotHideCommits(t *testing.T) {
	svc, base := initialized(t)
	path := svc.Path()

	// Two divergent commits off the bootstrap, then a merge of both.
	left := commitWithParents(t, path, "left", base)
	right := commitWithParents(t, path, "right", base)
	merge := commitWithParents(t, path, "merge left and right", left, right)

	records, err := svc.CommitsBetween(base, merge)
	require.NoError(t, err)
	require.Len(t, records, 3)

	// Parents always precede children; the merge comes last.
	assert.Equal(t, merge, records[2].Hash)
	hashes := []Revision{records[0].Hash, records[1].Hash}
	assert.ElementsMatch(t, []Revision{left, right}, hashes)
}

func TestTagLifecycle(t *testing.T) {
	svc, rev := initialized(t)

	exists, err := svc.TagExists("afk-demo-0")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, svc.CreateTag("afk-demo-0", rev))

	exists, err = svc.TagExists("afk-demo-0")
	require.NoError(t, err)
	assert.True(t, exists)

	resolved, err := svc.TagRevision("afk-demo-0")
	require.NoError(t, err)
	assert.Equal(t, rev, resolved)
}

func TestCreateTag_CollisionFails(t *testing.T) {
	svc, rev := initialized(t)
	require.NoError(t, svc.CreateTag("afk-demo-1", rev))

	other, err := svc.CommitEmpty("another")
	require.NoError(t, err)

	err = svc.CreateTag("afk-demo-1", other)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tag already exists")

	// The original tag target is untouched.
	resolved, err := svc.TagRevision("afk-demo-1")
	require.NoError(t, err)
	assert.Equal(t, rev, resolved)
}

func TestCreateTag_UnknownRevisionFails(t *testing.T) {
	svc, _ := initialized(t)

	err := svc.CreateTag("afk-demo-2", Revision("0123456789abcdef0123456789abcdef01234567"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")

	// No dangling tag was created.
	exists, err := svc.TagExists("afk-demo-2")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestIsEmptyDirectory(t *testing.T) {
	svc, _ := initialized(t)

	// Only .git present.
	empty, err := svc.IsEmptyDirectory()
	require.NoError(t, err)
	assert.True(t, empty)

	require.NoError(t, os.WriteFile(filepath.Join(svc.Path(), "main.go"), []byte("package main\n"), 0o600))

	empty, err = svc.IsEmptyDirectory()
	require.NoError(t, err)
	assert.False(t, empty)
}
