package turn

import (
	"fmt"
	"os"
	"path/filepath"
)

// Log is the per-turn log file.
//
// The file is opened in append mode because the driver's pseudo-terminal
// wrapper appends the agent transcript to the same file between the
// turn's own marker lines. Creation is exclusive: a turn log is never
// overwritten.
type Log struct {
	path string
	file *os.File
}

// NewLog creates the log file for a turn, named turn-NNN-<label>.log
// with the number zero-padded so names sort chronologically.
func NewLog(dir string, number int, label Label) (*Log, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("turn-%03d-%s.log", number, label))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create turn log %s: %w", path, err)
	}
	return &Log{path: path, file: file}, nil
}

// Path returns the absolute path of the log file.
func (l *Log) Path() string { return l.path }

// Filename returns the base name of the log file.
func (l *Log) Filename() string { return filepath.Base(l.path) }

// Append writes one line to the log.
func (l *Log) Append(line string) error {
	if _, err := l.file.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("failed to append to turn log: %w", err)
	}
	return nil
}

// Close closes the log file. The file itself is always preserved.
func (l *Log) Close() error {
	return l.file.Close()
}
