package utils

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger wraps a logrus logger and the optional file it writes to.
type Logger struct {
	*logrus.Logger
	file *os.File
}

// NewLogger creates a logger writing to filePath, or to stderr when filePath
// is empty. Files get JSON lines, terminals get text.
func NewLogger(filePath, level string) (*Logger, error) {
	l := logrus.New()
	lvl := logrus.InfoLevel
	if level != "" {
		parsed, err := logrus.ParseLevel(level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		lvl = parsed
	}
	l.SetLevel(lvl)

	if filePath == "" {
		l.SetOutput(os.Stderr)
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
		return &Logger{Logger: l}, nil
	}

	file, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	l.SetOutput(file)
	l.SetFormatter(&logrus.JSONFormatter{})
	return &Logger{Logger: l, file: file}, nil
}

// NopLogger discards everything. Used by tests and library defaults.
func NopLogger() *Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return &Logger{Logger: l}
}

// Close closes the log file, if any.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}
