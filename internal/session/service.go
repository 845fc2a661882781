package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/afk/internal/driver"
	"github.com/fyrsmithlabs/afk/internal/repository"
	"github.com/fyrsmithlabs/afk/internal/turn"
)

const instrumentationName = "github.com/fyrsmithlabs/afk/internal/session"

const (
	// maxNameLength bounds session names; they become part of tag names
	// and log fields.
	maxNameLength = 64

	// logTailBytes is how much of the turn log a zero-commit failure
	// message carries for immediate diagnosis.
	logTailBytes = 2048
)

// TagName returns the boundary tag for a turn of the named session.
// Turn 0 is the session bootstrap.
func TagName(name string, number int) string {
	return fmt.Sprintf("afk-%s-%d", name, number)
}

// Session drives turns against one repository.
type Session struct {
	name   string
	root   string
	repo   repository.Service
	runner turn.Runner
	logger *zap.Logger
	runID  string

	// Telemetry
	tracer       trace.Tracer
	meter        metric.Meter
	turnCounter  metric.Int64Counter
	turnDuration metric.Float64Histogram

	results  []turn.Result
	nextTurn int
}

// New creates a session over the repository's directory and anchors its
// starting point.
//
// Directory rules: an empty directory is initialized as a repository with
// one bootstrap commit so HEAD is always defined; a valid repository with
// at least one commit is adopted as-is; a directory with content that is
// not a repository is refused. The current HEAD is then tagged as turn
// zero. If that tag already exists the session name has been used in
// this repository before, and construction fails before any execution.
func New(name string, repo repository.Service, runner turn.Runner, logger *zap.Logger) (*Session, error) {
	if err := validateName(name); err != nil {
		return nil, err
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

	head, err := anchor(name, repo)
	if err != nil {
		return nil, err
	}

	s := &Session{
		name:     name,
		root:     repo.Path(),
		repo:     repo,
		runner:   runner,
		logger:   logger,
		runID:    uuid.NewString(),
		tracer:   otel.Tracer(instrumentationName),
		meter:    otel.Meter(instrumentationName),
		nextTurn: 1,
	}
	s.initMetrics()

	logger.Info("session ready",
		zap.String("session", name),
		zap.String("root", s.root),
		zap.String("head", head.Short()),
		zap.String("run_id", s.runID))
	return s, nil
}

// anchor applies the directory adoption rules and creates the turn-zero
// tag. Returns the anchored HEAD revision.
func anchor(name string, repo repository.Service) (repository.Revision, error) {
	if !repo.IsRepository() {
		empty, err := repo.IsEmptyDirectory()
		if err != nil {
			return "", err
		}
		if !empty {
			return "", fmt.Errorf("directory %s has content but is not a repository; refusing to adopt", repo.Path())
		}
		if err := repo.Initialize(); err != nil {
			return "", err
		}
	}

	head, err := repo.Head()
	if err != nil {
		return "", err
	}
	if head == "" {
		// Valid repository without commits: bootstrap so HEAD is defined.
		head, err = repo.CommitEmpty(bootstrapMessage(name))
		if err != nil {
			return "", err
		}
	}

	tag := TagName(name, 0)
	exists, err := repo.TagExists(tag)
	if err != nil {
		return "", err
	}
	if exists {
		return "", fmt.Errorf("session name %q already used in this repository: tag %s exists", name, tag)
	}
	if err := repo.CreateTag(tag, head); err != nil {
		return "", err
	}
	return head, nil
}

func bootstrapMessage(name string) string {
	return fmt.Sprintf("chore: bootstrap afk session %s\n", name)
}

func validateName(name string) error {
	if len(name) > maxNameLength {
		return fmt.Errorf("session name must be at most %d characters, got %d", maxNameLength, len(name))
	}
	if _, err := turn.ParseLabel(name); err != nil {
		return fmt.Errorf("invalid session name: %w", err)
	}
	return nil
}

// initMetrics initializes the session's OpenTelemetry instruments.
func (s *Session) initMetrics() {
	var err error

	s.turnCounter, err = s.meter.Int64Counter(
		"afk.session.turns_total",
		metric.WithDescription("Total number of turns executed"),
		metric.WithUnit("{turn}"),
	)
	if err != nil {
		s.logger.Warn("failed to create turn counter", zap.Error(err))
	}

	s.turnDuration, err = s.meter.Float64Histogram(
		"afk.session.turn_duration_seconds",
		metric.WithDescription("Wall-clock duration of one turn"),
		metric.WithUnit("s"),
	)
	if err != nil {
		s.logger.Warn("failed to create turn duration histogram", zap.Error(err))
	}
}

// Name returns the session name.
func (s *Session) Name() string { return s.name }

// RootDir returns the repository root the session works in.
func (s *Session) RootDir() string { return s.root }

// LogDir returns the directory holding the per-turn log files.
func (s *Session) LogDir() string { return filepath.Join(s.root, "logs") }

// RunID returns the unique identifier of this session run.
func (s *Session) RunID() string { return s.runID }

// History returns a snapshot of the completed turns in order. The
// internal history is never exposed as a live reference.
func (s *Session) History() []turn.Result {
	return append([]turn.Result(nil), s.results...)
}

// ExecuteTurn runs one turn: allocate a number, run the prompt through
// the agent, validate that exactly one commit appeared, record the
// result, and tag the boundary commit.
//
// The number is allocated before any work, so a failed turn still
// consumes it; numbers are never reused. Any failure aborts the turn
// without touching the history or creating a tag.
func (s *Session) ExecuteTurn(ctx context.Context, prompt, label string) (turn.Result, error) {
	ctx, span := s.tracer.Start(ctx, "session.ExecuteTurn",
		trace.WithAttributes(
			attribute.String("session.name", s.name),
			attribute.String("turn.label", label),
		))
	defer span.End()

	start := time.Now()
	result, err := s.executeTurn(ctx, prompt, label)
	s.recordTurn(ctx, time.Since(start), err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return result, err
	}
	span.SetAttributes(
		attribute.Int("turn.number", result.Number),
		attribute.String("turn.commit", result.CommitHash.Short()),
	)
	return result, nil
}

func (s *Session) executeTurn(ctx context.Context, prompt, label string) (turn.Result, error) {
	lbl, err := turn.ParseLabel(label)
	if err != nil {
		return turn.Result{}, err
	}
	if strings.TrimSpace(prompt) == "" {
		return turn.Result{}, fmt.Errorf("prompt must not be empty")
	}

	number := s.nextTurn
	if number > turn.MaxTurnNumber {
		return turn.Result{}, fmt.Errorf("turn number ceiling %d reached", turn.MaxTurnNumber)
	}
	s.nextTurn++ // allocated now; a failed turn still consumes the number

	tag := TagName(s.name, number)
	exists, err := s.repo.TagExists(tag)
	if err != nil {
		return turn.Result{}, err
	}
	if exists {
		return turn.Result{}, fmt.Errorf("tag %s already exists; refusing to run turn %d", tag, number)
	}

	t, err := turn.New(number, lbl, s.repo, s.runner, s.root, s.LogDir(), s.runID, s.logger.Named("turn"))
	if err != nil {
		return turn.Result{}, err
	}
	if err := t.Start(ctx); err != nil {
		return turn.Result{}, err
	}

	status, err := t.Execute(ctx, prompt)
	if err != nil {
		return turn.Result{}, t.Abort(err)
	}

	record, err := s.validateCommitDelta(t, status)
	if err != nil {
		return turn.Result{}, t.Abort(err)
	}

	if status.Code != 0 || status.Signal != "" {
		// Exit-code propagation through the pseudo-terminal wrapper is
		// unreliable; with exactly one commit present the turn counts.
		s.logger.Warn("agent exit status was not clean",
			zap.Int("turn", number),
			zap.Int("code", status.Code),
			zap.String("signal", status.Signal),
			zap.String("log", t.LogPath()))
	}

	outcome := repository.ParseOutcome(record.Message)
	result, err := t.Finish(outcome, record.Hash, record.Message)
	if err != nil {
		return turn.Result{}, err
	}

	// Record first, tag second: a tagging failure must never lose a
	// known result.
	s.results = append(s.results, result)
	if err := s.repo.CreateTag(tag, record.Hash); err != nil {
		return result, fmt.Errorf("turn %d completed but tagging failed: %w", number, err)
	}
	return result, nil
}

// validateCommitDelta compares HEAD before/after the turn and requires
// exactly one new commit. Zero or multiple commits is a hard failure,
// not an Outcome; the commit presence is the authoritative signal, the
// exit status only decorates the diagnostics.
func (s *Session) validateCommitDelta(t *turn.Turn, status driver.Status) (repository.CommitRecord, error) {
	headAfter, err := s.repo.Head()
	if err != nil {
		return repository.CommitRecord{}, err
	}

	commits, err := s.repo.CommitsBetween(t.HeadBefore(), headAfter)
	if err != nil {
		return repository.CommitRecord{}, err
	}

	switch len(commits) {
	case 1:
		return commits[0], nil
	case 0:
		return repository.CommitRecord{}, fmt.Errorf(
			"turn %d produced no commit (exit code=%d signal=%q, HEAD before %s after %s)\nlog tail:\n%s",
			t.Number(), status.Code, status.Signal,
			t.HeadBefore().Short(), headAfter.Short(), logTail(t.LogPath()))
	default:
		summaries := make([]string, 0, len(commits))
		for _, c := range commits {
			summaries = append(summaries, "  "+c.Summary())
		}
		return repository.CommitRecord{}, fmt.Errorf(
			"turn %d produced %d commits, expected exactly one:\n%s",
			t.Number(), len(commits), strings.Join(summaries, "\n"))
	}
}

// recordTurn feeds the turn counter and duration histogram.
func (s *Session) recordTurn(ctx context.Context, elapsed time.Duration, err error) {
	attrs := metric.WithAttributes(
		attribute.String("session.name", s.name),
		attribute.Bool("success", err == nil),
	)
	if s.turnCounter != nil {
		s.turnCounter.Add(ctx, 1, attrs)
	}
	if s.turnDuration != nil {
		s.turnDuration.Record(ctx, elapsed.Seconds(), attrs)
	}
}

// logTail reads the last logTailBytes of the turn log for inclusion in
// failure messages. Best effort: a read problem is reported inline, not
// as an error.
func logTail(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Sprintf("(log unavailable: %v)", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Sprintf("(log unavailable: %v)", err)
	}
	offset := info.Size() - logTailBytes
	if offset < 0 {
		offset = 0
	}
	buf := make([]byte, info.Size()-offset)
	if _, err := f.ReadAt(buf, offset); err != nil {
		return fmt.Sprintf("(log unavailable: %v)", err)
	}
	return strings.TrimSpace(string(buf))
}
