package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/afk/internal/config"
	"github.com/fyrsmithlabs/afk/internal/driver"
	"github.com/fyrsmithlabs/afk/internal/logging"
	"github.com/fyrsmithlabs/afk/internal/repository"
	"github.com/fyrsmithlabs/afk/internal/session"
	"github.com/fyrsmithlabs/afk/internal/telemetry"
)

var (
	// run command flags
	runConfigPath string
	runSession    string
	runRoot       string
	runLabel      string
	runPrompt     string
	runPromptFile string
	runModel      string
)

func init() {
	runCmd.Flags().StringVar(&runConfigPath, "config", "", "Path to YAML config file")
	runCmd.Flags().StringVar(&runSession, "session", "", "Session name (tag namespace afk-<name>-<n>)")
	runCmd.Flags().StringVar(&runRoot, "root", "", "Repository root directory (defaults to current directory)")
	runCmd.Flags().StringVar(&runLabel, "label", "coding", "Label for the turn's log file")
	runCmd.Flags().StringVar(&runPrompt, "prompt", "", "Prompt text for the turn")
	runCmd.Flags().StringVar(&runPromptFile, "prompt-file", "", "Read the prompt from a file ('-' for stdin)")
	runCmd.Flags().StringVar(&runModel, "model", "", "Model passed to the agent via --model")
}

var runCmd = &cobra.Command{
	Use:   "run [prompt]",
	Short: "Execute one turn of a session",
	Long: `Execute one turn: run the agent with the prompt, require exactly one
new commit, and tag the boundary.

The first turn against a directory anchors the session: an empty directory
is initialized with a bootstrap commit, an existing repository is adopted
as-is, and the current HEAD becomes tag afk-<session>-0.

Examples:
  # Run a turn in the current repository
  afk run --session fix-auth "add retry logic to the login handler"

  # Prompt from a file, labeled log
  afk run --session fix-auth --label tests --prompt-file prompt.txt

  # Different repository and model
  afk run --session fix-auth --root ~/src/app --model opus "refactor"`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

// runRun handles the run command
func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(runConfigPath)
	if err != nil {
		return err
	}

	// Flags override the config file and environment.
	if runSession != "" {
		cfg.Session.Name = runSession
	}
	if runRoot != "" {
		cfg.Session.Root = runRoot
	}
	if runModel != "" {
		cfg.Agent.Model = runModel
	}
	if cfg.Session.Name == "" {
		return fmt.Errorf("session name is required (--session or AFK_SESSION_NAME)")
	}
	if cfg.Session.Root == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to determine working directory: %w", err)
		}
		cfg.Session.Root = cwd
	}

	prompt, err := resolvePrompt(args)
	if err != nil {
		return err
	}

	logger, err := logging.NewLogger(&cfg.Logging)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	tel, err := telemetry.New(cmd.Context(), &cfg.Telemetry, version, logger.Named("telemetry"))
	if err != nil {
		return err
	}
	defer func() {
		// Fresh context: the command context may already be canceled and
		// the flush should still happen.
		if err := tel.Shutdown(context.Background()); err != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	repo, err := repository.New(cfg.Session.Root, logger.Named("repository"))
	if err != nil {
		return err
	}

	drv, err := driver.New(driver.Config{
		AgentBinary: cfg.Agent.Binary,
		Wrapper:     cfg.Agent.Wrapper,
		Model:       cfg.Agent.Model,
	}, logger.Named("driver"))
	if err != nil {
		return err
	}

	sess, err := session.New(cfg.Session.Name, repo, drv, logger.Named("session"))
	if err != nil {
		return err
	}

	result, err := sess.ExecuteTurn(cmd.Context(), prompt, runLabel)
	if err != nil {
		logger.Error("turn failed", zap.Error(err))
		return err
	}

	fmt.Printf("turn %d (%s) committed %s\n", result.Number, result.Label, result.CommitHash.Short())
	fmt.Printf("outcome: %s\n", outcomeOrUnknown(result.Outcome))
	fmt.Printf("tag: %s\n", session.TagName(sess.Name(), result.Number))
	fmt.Printf("log: %s\n", result.LogPath)
	return nil
}

// resolvePrompt picks the prompt from, in order of precedence, --prompt,
// --prompt-file, or the positional argument.
func resolvePrompt(args []string) (string, error) {
	sources := 0
	if runPrompt != "" {
		sources++
	}
	if runPromptFile != "" {
		sources++
	}
	if len(args) > 0 {
		sources++
	}
	if sources > 1 {
		return "", fmt.Errorf("prompt given more than once; use --prompt, --prompt-file, or a positional argument")
	}

	switch {
	case runPrompt != "":
		return runPrompt, nil
	case runPromptFile != "":
		return readPromptFile(runPromptFile)
	case len(args) > 0:
		return args[0], nil
	default:
		return "", fmt.Errorf("a prompt is required (--prompt, --prompt-file, or a positional argument)")
	}
}

func readPromptFile(path string) (string, error) {
	var content []byte
	var err error
	if path == "-" {
		content, err = io.ReadAll(os.Stdin)
	} else {
		content, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read prompt from %s: %w", path, err)
	}
	prompt := strings.TrimSpace(string(content))
	if prompt == "" {
		return "", fmt.Errorf("prompt file %s is empty", path)
	}
	return prompt, nil
}

func outcomeOrUnknown(outcome repository.Outcome) string {
	if outcome == "" {
		return "(none declared)"
	}
	return string(outcome)
}
