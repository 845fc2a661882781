package turn

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/afk/internal/driver"
	"github.com/fyrsmithlabs/afk/internal/repository"
)

// MaxTurnNumber is the sanity ceiling for turn numbers. It matches the
// three-digit zero padding of log file names.
const MaxTurnNumber = 999

// State is the lifecycle state of a Turn.
type State int

const (
	StateInitial State = iota
	StateInProgress
	StateFinished
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateInitial:
		return "initial"
	case StateInProgress:
		return "in_progress"
	case StateFinished:
		return "finished"
	case StateAborted:
		return "aborted"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Runner executes one agent invocation. *driver.Driver implements it;
// tests substitute stubs.
type Runner interface {
	Run(ctx context.Context, prompt, workDir, logPath string) (driver.Status, error)
}

// Turn is one execution attempt. It is transient: the session discards it
// after it produces a Result or aborts.
type Turn struct {
	number  int
	label   Label
	repo    repository.Service
	runner  Runner
	workDir string
	logDir  string
	runID   string
	logger  *zap.Logger

	state      State
	log        *Log
	headBefore repository.Revision
	startedAt  time.Time
}

// New creates a turn in the Initial state. The number comes from the
// session's allocator.
func New(number int, label Label, repo repository.Service, runner Runner, workDir, logDir, runID string, logger *zap.Logger) (*Turn, error) {
	if number < 1 || number > MaxTurnNumber {
		return nil, fmt.Errorf("turn number must be between 1 and %d, got %d", MaxTurnNumber, number)
	}
	if repo == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if runner == nil {
		return nil, fmt.Errorf("runner is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Turn{
		number:  number,
		label:   label,
		repo:    repo,
		runner:  runner,
		workDir: workDir,
		logDir:  logDir,
		runID:   runID,
		logger:  logger,
		state:   StateInitial,
	}, nil
}

func (t *Turn) Number() int { return t.number }

func (t *Turn) Label() Label { return t.label }

func (t *Turn) State() State { return t.state }

// HeadBefore returns the HEAD revision captured at Start; zero when the
// repository had no commits (never the case after session bootstrap).
func (t *Turn) HeadBefore() repository.Revision { return t.headBefore }

// LogPath returns the turn's log file path, empty before Start.
func (t *Turn) LogPath() string {
	if t.log == nil {
		return ""
	}
	return t.log.Path()
}

// Start transitions Initial → InProgress: captures HEAD as "before",
// creates the turn log, and writes the start marker.
func (t *Turn) Start(ctx context.Context) error {
	if t.state != StateInitial {
		return fmt.Errorf("cannot start turn %d in state %s", t.number, t.state)
	}

	head, err := t.repo.Head()
	if err != nil {
		return fmt.Errorf("failed to capture HEAD before turn %d: %w", t.number, err)
	}

	log, err := NewLog(t.logDir, t.number, t.label)
	if err != nil {
		return err
	}

	t.headBefore = head
	t.startedAt = time.Now().UTC()
	t.log = log
	t.state = StateInProgress

	t.appendf("=== turn %03d (%s) start ===", t.number, t.label)
	t.appendf("run: %s", t.runID)
	t.appendf("head before: %s", revisionOrNone(head))
	t.appendf("started at: %s", t.startedAt.Format(time.RFC3339))

	t.logger.Info("turn started",
		zap.Int("turn", t.number),
		zap.String("label", t.label.String()),
		zap.String("log", t.log.Path()))
	return nil
}

// Execute runs the prompt through the driver and returns the raw exit
// status without classifying success: commit presence, validated by the
// session, is the authoritative signal.
func (t *Turn) Execute(ctx context.Context, prompt string) (driver.Status, error) {
	if t.state != StateInProgress {
		return driver.Status{}, fmt.Errorf("cannot execute turn %d in state %s", t.number, t.state)
	}

	t.appendf("prompt: %s", prompt)
	status, err := t.runner.Run(ctx, prompt, t.workDir, t.log.Path())
	if err != nil {
		return status, err
	}
	t.appendf("agent exit: code=%d signal=%q", status.Code, status.Signal)
	return status, nil
}

// Finish transitions InProgress → Finished and returns the frozen Result.
func (t *Turn) Finish(outcome repository.Outcome, commit repository.Revision, message string) (Result, error) {
	if t.state != StateInProgress {
		return Result{}, fmt.Errorf("cannot finish turn %d in state %s", t.number, t.state)
	}

	t.appendf("=== turn %03d (%s) finished commit=%s outcome=%q ===",
		t.number, t.label, commit.Short(), outcome)
	t.state = StateFinished
	logPath := t.log.Path()
	_ = t.log.Close()

	t.logger.Info("turn finished",
		zap.Int("turn", t.number),
		zap.String("commit", commit.Short()),
		zap.String("outcome", string(outcome)))

	return Result{
		Number:     t.number,
		Label:      t.label,
		Outcome:    outcome,
		CommitHash: commit,
		Message:    message,
		LogPath:    logPath,
		Timestamp:  t.startedAt,
	}, nil
}

// Abort transitions InProgress → Aborted, records the cause and a stack
// trace in the log, and returns cause unchanged so the caller's error
// handling still observes it. Terminal: there is no resume.
func (t *Turn) Abort(cause error) error {
	if t.state != StateInProgress {
		// Nothing to record; pass the cause through untouched.
		return cause
	}

	t.appendf("=== turn %03d (%s) aborted ===", t.number, t.label)
	t.appendf("error: %v", cause)
	t.appendf("stack:\n%s", debug.Stack())
	t.state = StateAborted
	_ = t.log.Close()

	t.logger.Error("turn aborted",
		zap.Int("turn", t.number),
		zap.String("log", t.LogPath()),
		zap.Error(cause))
	return cause
}

// appendf writes a formatted marker line, best-effort: a log write
// failure must never mask the turn's real error.
func (t *Turn) appendf(format string, args ...any) {
	if err := t.log.Append(fmt.Sprintf(format, args...)); err != nil {
		t.logger.Warn("turn log write failed", zap.Error(err))
	}
}

func revisionOrNone(rev repository.Revision) string {
	if rev == "" {
		return "(none)"
	}
	return rev.String()
}
