package driver

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"regexp"
	"runtime"
	"strings"

	"go.uber.org/zap"
)

// Config configures the driver.
type Config struct {
	// AgentBinary is the agent CLI executable.
	AgentBinary string

	// Wrapper is the pseudo-terminal wrapper utility.
	Wrapper string

	// Model is passed to the agent via --model when non-empty.
	Model string
}

// Status reports how one agent invocation ended.
type Status struct {
	// Started is false when the process never started (tool missing or
	// not executable).
	Started bool

	// Code is the numeric exit code; -1 when signal-terminated.
	Code int

	// Signal names the terminating signal, empty on a clean exit.
	Signal string
}

// Driver runs the external agent CLI.
type Driver struct {
	cfg    Config
	logger *zap.Logger

	// out receives the live output stream, normally the terminal.
	out io.Writer
}

// New creates a driver and eagerly checks that the required tools exist:
// the wrapper must be on the search path and the agent must respond to
// --version. A missing tool is a startup failure, never a per-turn one.
func New(cfg Config, logger *zap.Logger) (*Driver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.AgentBinary == "" {
		return nil, fmt.Errorf("agent binary must not be empty")
	}
	if cfg.Wrapper == "" {
		return nil, fmt.Errorf("wrapper must not be empty")
	}
	if _, err := exec.LookPath(cfg.Wrapper); err != nil {
		return nil, fmt.Errorf("`%s` not found on PATH: %w", cfg.Wrapper, err)
	}
	if _, err := exec.LookPath(cfg.AgentBinary); err != nil {
		return nil, fmt.Errorf("`%s` not found on PATH: %w", cfg.AgentBinary, err)
	}
	probe := exec.Command(cfg.AgentBinary, "--version")
	if out, err := probe.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("`%s --version` failed: %w (%s)",
			cfg.AgentBinary, err, strings.TrimSpace(string(out)))
	}
	return &Driver{cfg: cfg, logger: logger, out: os.Stdout}, nil
}

// buildCommand assembles the wrapper invocation. The wrapper appends (-a)
// the session transcript to the log file quietly (-q); Linux `script`
// takes the command via -c, the BSD variant on darwin takes trailing
// arguments.
func (d *Driver) buildCommand(prompt, logPath string) []string {
	agent := []string{d.cfg.AgentBinary, "--print"}
	if d.cfg.Model != "" {
		agent = append(agent, "--model", d.cfg.Model)
	}
	agent = append(agent, prompt)

	if runtime.GOOS == "darwin" {
		return append([]string{d.cfg.Wrapper, "-a", "-q", logPath}, agent...)
	}
	return []string{d.cfg.Wrapper, "-a", "-q", "-c", shellJoin(agent), logPath}
}

// shellSafe matches arguments that need no quoting.
var shellSafe = regexp.MustCompile(`^[a-zA-Z0-9_@%+=:,./-]+$`)

// shellJoin renders argv as a single shell command string for `script -c`.
func shellJoin(args []string) string {
	quoted := make([]string, 0, len(args))
	for _, arg := range args {
		quoted = append(quoted, shellQuote(arg))
	}
	return strings.Join(quoted, " ")
}

func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if shellSafe.MatchString(s) {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
