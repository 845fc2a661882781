package turn

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/afk/internal/driver"
	"github.com/fyrsmithlabs/afk/internal/repository"
)

// runnerFunc adapts a function to the Runner interface.
type runnerFunc func(ctx context.Context, prompt, workDir, logPath string) (driver.Status, error)

func (f runnerFunc) Run(ctx context.Context, prompt, workDir, logPath string) (driver.Status, error) {
	return f(ctx, prompt, workDir, logPath)
}

var okRunner = runnerFunc(func(ctx context.Context, prompt, workDir, logPath string) (driver.Status, error) {
	return driver.Status{Started: true}, nil
})

// newTestTurn builds a turn over a bootstrapped repository.
func newTestTurn(t *testing.T, runner Runner) (*Turn, repository.Service, repository.Revision) {
	t.Helper()
	root := t.TempDir()
	repo, err := repository.New(root, nil)
	require.NoError(t, err)
	require.NoError(t, repo.Initialize())
	bootstrap, err := repo.CommitEmpty("chore: bootstrap")
	require.NoError(t, err)

	tn, err := New(1, Label("coding"), repo, runner, root, filepath.Join(root, "logs"), "run-1234", nil)
	require.NoError(t, err)
	return tn, repo, bootstrap
}

func TestNew_ValidatesNumber(t *testing.T) {
	repo, err := repository.New(t.TempDir(), nil)
	require.NoError(t, err)

	for _, n := range []int{0, -1, MaxTurnNumber + 1} {
		_, err := New(n, Label("coding"), repo, okRunner, "", "", "", nil)
		require.Error(t, err, "number %d", n)
	}
}

func TestNew_RequiresCollaborators(t *testing.T) {
	repo, err := repository.New(t.TempDir(), nil)
	require.NoError(t, err)

	_, err = New(1, Label("coding"), nil, okRunner, "", "", "", nil)
	require.Error(t, err)

	_, err = New(1, Label("coding"), repo, nil, "", "", "", nil)
	require.Error(t, err)
}

func TestStart_TransitionsAndCapturesHead(t *testing.T) {
	tn, _, bootstrap := newTestTurn(t, okRunner)
	assert.Equal(t, StateInitial, tn.State())

	require.NoError(t, tn.Start(context.Background()))
	assert.Equal(t, StateInProgress, tn.State())
	assert.Equal(t, bootstrap, tn.HeadBefore())

	content, err := os.ReadFile(tn.LogPath())
	require.NoError(t, err)
	assert.Contains(t, string(content), "=== turn 001 (coding) start ===")
	assert.Contains(t, string(content), "run: run-1234")
	assert.Contains(t, string(content), bootstrap.String())
}

func TestStart_RejectsSecondCall(t *testing.T) {
	tn, _, _ := newTestTurn(t, okRunner)
	require.NoError(t, tn.Start(context.Background()))

	err := tn.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "in_progress")
}

func TestExecute_RequiresInProgress(t *testing.T) {
	tn, _, _ := newTestTurn(t, okRunner)

	_, err := tn.Execute(context.Background(), "do the thing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "initial")
}

func TestExecute_LogsPromptAndDelegates(t *testing.T) {
	var gotPrompt, gotLogPath string
	runner := runnerFunc(func(ctx context.Context, prompt, workDir, logPath string) (driver.Status, error) {
		gotPrompt = prompt
		gotLogPath = logPath
		return driver.Status{Started: true, Code: 0}, nil
	})
	tn, _, _ := newTestTurn(t, runner)
	require.NoError(t, tn.Start(context.Background()))

	status, err := tn.Execute(context.Background(), "add a widget")
	require.NoError(t, err)
	assert.True(t, status.Started)
	assert.Equal(t, "add a widget", gotPrompt)
	assert.Equal(t, tn.LogPath(), gotLogPath)

	content, err := os.ReadFile(tn.LogPath())
	require.NoError(t, err)
	assert.Contains(t, string(content), "prompt: add a widget")
	assert.Contains(t, string(content), "agent exit: code=0")
}

func TestExecute_ReturnsRawNonZeroStatus(t *testing.T) {
	runner := runnerFunc(func(ctx context.Context, prompt, workDir, logPath string) (driver.Status, error) {
		return driver.Status{Started: true, Code: 3}, nil
	})
	tn, _, _ := newTestTurn(t, runner)
	require.NoError(t, tn.Start(context.Background()))

	// Execute does not classify: a non-zero code is not an error here.
	status, err := tn.Execute(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, 3, status.Code)
}

func TestFinish_ProducesResult(t *testing.T) {
	tn, repo, _ := newTestTurn(t, okRunner)
	require.NoError(t, tn.Start(context.Background()))
	_, err := tn.Execute(context.Background(), "p")
	require.NoError(t, err)

	commit, err := repo.CommitEmpty("feat: widget\n\noutcome: success\n")
	require.NoError(t, err)

	result, err := tn.Finish(repository.OutcomeSuccess, commit, "feat: widget\n\noutcome: success\n")
	require.NoError(t, err)
	assert.Equal(t, StateFinished, tn.State())
	assert.Equal(t, 1, result.Number)
	assert.Equal(t, Label("coding"), result.Label)
	assert.Equal(t, repository.OutcomeSuccess, result.Outcome)
	assert.Equal(t, commit, result.CommitHash)
	assert.Equal(t, tn.LogPath(), result.LogPath)
	assert.False(t, result.Timestamp.IsZero())

	content, err := os.ReadFile(tn.LogPath())
	require.NoError(t, err)
	assert.Contains(t, string(content), "finished")
}

func TestFinish_RequiresInProgress(t *testing.T) {
	tn, _, _ := newTestTurn(t, okRunner)

	_, err := tn.Finish("", "", "")
	require.Error(t, err)

	require.NoError(t, tn.Start(context.Background()))
	_, err = tn.Finish(repository.OutcomeSuccess, "abc", "m")
	require.NoError(t, err)

	// No re-entry after the terminal state.
	_, err = tn.Finish(repository.OutcomeSuccess, "abc", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "finished")
}

func TestAbort_RecordsCauseAndReturnsItUnchanged(t *testing.T) {
	tn, _, _ := newTestTurn(t, okRunner)
	require.NoError(t, tn.Start(context.Background()))

	cause := errors.New("agent went sideways")
	err := tn.Abort(cause)
	assert.Same(t, cause, err)
	assert.Equal(t, StateAborted, tn.State())

	// The log is preserved and records the abort.
	content, readErr := os.ReadFile(tn.LogPath())
	require.NoError(t, readErr)
	assert.Contains(t, string(content), "aborted")
	assert.Contains(t, string(content), "agent went sideways")
	assert.Contains(t, string(content), "stack:")
}

func TestAbort_IsTerminal(t *testing.T) {
	tn, _, _ := newTestTurn(t, okRunner)
	require.NoError(t, tn.Start(context.Background()))
	_ = tn.Abort(errors.New("boom"))

	require.Error(t, tn.Start(context.Background()))
	_, err := tn.Execute(context.Background(), "p")
	require.Error(t, err)
	_, err = tn.Finish("", "", "")
	require.Error(t, err)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "initial", StateInitial.String())
	assert.Equal(t, "in_progress", StateInProgress.String())
	assert.Equal(t, "finished", StateFinished.String())
	assert.Equal(t, "aborted", StateAborted.String())
}
