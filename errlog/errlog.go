// Package errlog keeps an append-only file of errors that ended a
// dictation cycle, for users to attach to bug reports.
package errlog

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
)

const fileName = "errors.log"

// Sink appends one record per error.
type Sink struct {
	mu  sync.Mutex
	f   *os.File
	log *slog.Logger
}

// DefaultDir returns the directory errors.log is written to.
func DefaultDir() (string, error) {
	dir, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("get user cache dir: %w", err)
	}
	return filepath.Join(dir, "dictate", "logs"), nil
}

// Open opens (or creates) errors.log in dir.
func Open(dir string) (*Sink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dir, fileName), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open error log: %w", err)
	}
	return &Sink{
		f:   f,
		log: slog.New(slog.NewTextHandler(f, nil)),
	}, nil
}

// Path returns the log file path.
func (s *Sink) Path() string {
	return s.f.Name()
}

// Append writes message under context. Values are quoted so embedded line
// breaks cannot forge extra records. Safe on a nil or closed Sink.
func (s *Sink) Append(context, message string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.log == nil {
		return
	}
	s.log.Error(context, "message", message)
}

// Close closes the file. Further Appends are dropped.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.log == nil {
		return nil
	}
	s.log = nil
	return s.f.Close()
}
