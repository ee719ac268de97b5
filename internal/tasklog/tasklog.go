// Package tasklog appends human readable progress lines to a per-task log file
// so finished and in-flight work can be inspected after the fact.
package tasklog

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Path returns the log file location for a task id.
func Path(dir, taskID string) string {
	return filepath.Join(dir, fmt.Sprintf("%s.log", taskID))
}

// Writer appends timestamped lines to a single task's log file.
type Writer struct {
	mu   sync.Mutex
	file *os.File
}

// Open creates or appends to the log file for taskID. A missing directory is
// created on the fly.
func Open(dir, taskID string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("could not create task log dir: %w", err)
	}

	file, err := os.OpenFile(Path(dir, taskID), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("could not open task log file: %w", err)
	}

	return &Writer{file: file}, nil
}

func (w *Writer) Printf(format string, args ...any) {
	if w == nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	line := fmt.Sprintf(format, args...)
	fmt.Fprintf(w.file, "%s %s\n", time.Now().Format(time.RFC3339), line)
}

func (w *Writer) Close() {
	if w == nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.file.Close()
}
