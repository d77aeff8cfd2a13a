// ABOUTME: Structured logging setup on log/slog
// ABOUTME: Builds a text handler over stdout and/or log files and installs it as default
package logger

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Config selects the minimum level and where records go.
type Config struct {
	Level   string   `mapstructure:"level" yaml:"level"`     // debug/info/warn/error
	Outputs []string `mapstructure:"outputs" yaml:"outputs"` // "stdout" or a file path
}

var (
	mu     sync.Mutex
	files  []*os.File
	global = slog.Default()
)

// ParseLevel maps a level name to a slog.Level. Unknown names are Info.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New builds a logger for cfg. The returned closer releases any log files.
func New(cfg Config) (*slog.Logger, io.Closer, error) {
	var writers []io.Writer
	var opened closers
	for _, output := range cfg.Outputs {
		switch output {
		case "", "stdout":
			writers = append(writers, os.Stdout)
		case "stderr":
			writers = append(writers, os.Stderr)
		default:
			if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
				_ = opened.Close()
				return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
			}
			file, err := os.OpenFile(output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				_ = opened.Close()
				return nil, nil, fmt.Errorf("failed to open log file: %w", err)
			}
			writers = append(writers, file)
			opened = append(opened, file)
		}
	}
	if len(writers) == 0 {
		writers = append(writers, os.Stdout)
	}

	handler := slog.NewTextHandler(io.MultiWriter(writers...), &slog.HandlerOptions{
		Level: ParseLevel(cfg.Level),
	})
	return slog.New(handler), opened, nil
}

// Init replaces the process logger and slog's default with one built
// from cfg. Files opened by a previous Init are closed.
func Init(cfg Config) error {
	l, c, err := New(cfg)
	if err != nil {
		return err
	}

	mu.Lock()
	defer mu.Unlock()
	for _, f := range files {
		_ = f.Close()
	}
	files = c.(closers)
	global = l
	slog.SetDefault(l)
	return nil
}

// Logger returns the process logger.
func Logger() *slog.Logger {
	mu.Lock()
	defer mu.Unlock()
	return global
}

// Close releases files opened by Init.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	err := closers(files).Close()
	files = nil
	return err
}

type closers []*os.File

func (c closers) Close() error {
	var errs []error
	for _, f := range c {
		if err := f.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
