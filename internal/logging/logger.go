package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// LogFileName is the file written inside the log directory.
const LogFileName = "ownership.log"

// Log levels supported by the logger
const (
	LevelDebug = "DEBUG"
	LevelInfo  = "INFO"
	LevelWarn  = "WARN"
	LevelError = "ERROR"
)

// sink is the destination shared by a logger and all of its children.
type sink struct {
	mu   sync.Mutex
	file *RotatingWriter
}

// Logger provides structured logging with context propagation.
// It is safe for concurrent use.
type Logger struct {
	logger *slog.Logger
	out    *sink
}

// NewLogger creates a Logger that writes JSON lines to {dir}/ownership.log
// with the default rotation. If dir is empty, logs go to stderr. Unknown
// levels fall back to INFO.
func NewLogger(dir string, level string) (*Logger, error) {
	return NewLoggerWithRotation(dir, level, DefaultRotationConfig())
}

// NewLoggerWithRotation is NewLogger with an explicit rotation policy.
func NewLoggerWithRotation(dir string, level string, rotation RotationConfig) (*Logger, error) {
	if dir == "" {
		return newLogger(os.Stderr, level, &sink{}), nil
	}

	rw, err := NewRotatingWriter(filepath.Join(dir, LogFileName), rotation)
	if err != nil {
		return nil, err
	}
	return newLogger(rw, level, &sink{file: rw}), nil
}

// NewWriterLogger creates a Logger that writes JSON lines to w.
// Close on such a logger is a no-op.
func NewWriterLogger(w io.Writer, level string) *Logger {
	return newLogger(w, level, &sink{})
}

func newLogger(w io.Writer, level string, out *sink) *Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: parseLevel(level)})
	return &Logger{logger: slog.New(handler), out: out}
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch ParseLevel(level) {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithScope returns a child Logger tagging entries with the working-tree scope.
func (l *Logger) WithScope(scope string) *Logger {
	return l.With("scope", scope)
}

// WithOwner returns a child Logger tagging entries with the lock owner.
func (l *Logger) WithOwner(owner string) *Logger {
	return l.With("owner", owner)
}

// With returns a child Logger with arbitrary key-value attributes.
func (l *Logger) With(args ...any) *Logger {
	if len(args) == 0 {
		return l
	}
	return &Logger{logger: l.logger.With(args...), out: l.out}
}

// Debug logs a message at DEBUG level with optional key-value pairs.
func (l *Logger) Debug(msg string, args ...any) { l.logger.Debug(msg, args...) }

// Info logs a message at INFO level with optional key-value pairs.
func (l *Logger) Info(msg string, args ...any) { l.logger.Info(msg, args...) }

// Warn logs a message at WARN level with optional key-value pairs.
func (l *Logger) Warn(msg string, args ...any) { l.logger.Warn(msg, args...) }

// Error logs a message at ERROR level with optional key-value pairs.
func (l *Logger) Error(msg string, args ...any) { l.logger.Error(msg, args...) }

// Close flushes and closes the log file shared with all child loggers.
// Calling it more than once, or on a logger without a file, is a no-op.
func (l *Logger) Close() error {
	l.out.mu.Lock()
	defer l.out.mu.Unlock()

	if l.out.file == nil {
		return nil
	}
	err := l.out.file.Close()
	l.out.file = nil
	return err
}

// NopLogger returns a Logger that discards all log output.
func NopLogger() *Logger {
	return NewWriterLogger(io.Discard, LevelError)
}

// ParseLevel normalizes a user-supplied level string.
// Returns LevelInfo if the level string is not recognized.
func ParseLevel(level string) string {
	switch l := strings.ToUpper(strings.TrimSpace(level)); l {
	case LevelDebug, LevelInfo, LevelWarn, LevelError:
		return l
	case "WARNING":
		return LevelWarn
	default:
		return LevelInfo
	}
}

// ValidLevels returns the list of valid log level strings.
func ValidLevels() []string {
	return []string{LevelDebug, LevelInfo, LevelWarn, LevelError}
}
