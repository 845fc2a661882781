//go:build unix

package driver

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"

	"go.uber.org/zap"
)

// Run executes one prompt in workDir and blocks until the agent exits.
//
// The wrapper captures the complete transcript (interrupts included) to
// logPath for post-mortem debugging while Run streams the same output to
// stdout. The returned Status is raw: Run does not classify success.
func (d *Driver) Run(ctx context.Context, prompt, workDir, logPath string) (Status, error) {
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		return Status{}, fmt.Errorf("failed to create log directory: %w", err)
	}

	argv := d.buildCommand(prompt, logPath)
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = workDir
	// Own process group: interrupts must reach every helper the agent
	// forks, and only those.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	pr, pw, err := os.Pipe()
	if err != nil {
		return Status{}, fmt.Errorf("failed to create output pipe: %w", err)
	}
	cmd.Stdout = pw
	cmd.Stderr = pw

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	d.logger.Debug("starting agent",
		zap.Strings("argv", argv),
		zap.String("work_dir", workDir),
		zap.String("log_path", logPath))

	if err := cmd.Start(); err != nil {
		pr.Close()
		pw.Close()
		return Status{Started: false}, fmt.Errorf("failed to start `%s`: %w", argv[0], err)
	}
	// The child holds its own copy of the write end.
	pw.Close()

	pgid := cmd.Process.Pid
	waitDone := make(chan struct{})
	interrupted := make(chan os.Signal, 1)

	go func() {
		select {
		case sig := <-sigCh:
			interrupted <- sig
			terminateTree(pgid, waitDone)
		case <-ctx.Done():
			terminateTree(pgid, waitDone)
		case <-waitDone:
		}
	}()

	// Pump output to the terminal in the calling goroutine. EOF arrives
	// once every process in the group has released the pipe.
	out := d.out
	buf := make([]byte, 32*1024)
	for {
		n, readErr := pr.Read(buf)
		if n > 0 && out != nil {
			if _, werr := out.Write(buf[:n]); werr != nil {
				// Keep draining so a chatty child never blocks on a
				// full pipe; the log file still captures everything.
				out = nil
			}
		}
		if readErr != nil {
			break
		}
	}

	waitErr := cmd.Wait()
	close(waitDone)
	pr.Close()

	status := statusFromWait(waitErr)

	select {
	case sig := <-interrupted:
		return status, fmt.Errorf("interrupted by signal %v (log preserved at %s)", sig, logPath)
	default:
	}
	if ctx.Err() != nil {
		return status, fmt.Errorf("agent run canceled (log preserved at %s): %w", logPath, ctx.Err())
	}

	d.logger.Debug("agent exited",
		zap.Int("code", status.Code),
		zap.String("signal", status.Signal))
	return status, nil
}

// statusFromWait converts the Wait error into a Status, separating clean
// numeric exits from signal termination.
func statusFromWait(waitErr error) Status {
	status := Status{Started: true}
	if waitErr == nil {
		return status
	}
	exitErr, ok := waitErr.(*exec.ExitError)
	if !ok {
		status.Code = -1
		return status
	}
	status.Code = exitErr.ExitCode()
	if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		status.Signal = ws.Signal().String()
	}
	return status
}
