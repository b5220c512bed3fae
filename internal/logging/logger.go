package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Logger provides leveled console logging with an optional per-run log file.
type Logger struct {
	debug   bool
	noColor bool

	mu   sync.Mutex
	out  io.Writer
	file *os.File
	now  func() time.Time
}

// New creates a new logger instance writing to stderr
func New(debug, noColor bool) *Logger {
	return &Logger{
		debug:   debug,
		noColor: noColor,
		out:     os.Stderr,
		now:     time.Now,
	}
}

// NewWithWriter creates a logger writing console output to w.
func NewWithWriter(w io.Writer, debug, noColor bool) *Logger {
	l := New(debug, noColor)
	l.out = w
	return l
}

// AttachFile opens dir/name in append mode and mirrors every subsequent line
// into it, prefixed with an RFC3339 timestamp. The returned path is the file
// that was opened.
func (l *Logger) AttachFile(dir, name string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}
	path := filepath.Join(dir, name)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	l.mu.Lock()
	if l.file != nil {
		_ = l.file.Close()
	}
	l.file = f
	l.mu.Unlock()

	return path, nil
}

// Close releases the run log file, if any.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// IsDebug reports whether debug output is enabled.
func (l *Logger) IsDebug() bool {
	return l.debug
}

// Info logs an informational message
func (l *Logger) Info(format string, args ...interface{}) {
	l.write("INFO", "\033[32m✓\033[0m", "✓", fmt.Sprintf(format, args...))
}

// Warn logs a warning message
func (l *Logger) Warn(format string, args ...interface{}) {
	l.write("WARN", "\033[33m⚠\033[0m", "⚠", fmt.Sprintf(format, args...))
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.write("ERROR", "\033[31m✗\033[0m", "✗", fmt.Sprintf(format, args...))
}

// Debug logs a debug message if debug mode is enabled.
// Debug lines always reach the run log file.
func (l *Logger) Debug(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if !l.debug {
		l.mu.Lock()
		l.writeFile("DEBUG", msg)
		l.mu.Unlock()
		return
	}
	l.write("DEBUG", "\033[36m[DEBUG]\033[0m", "[DEBUG]", msg)
}

func (l *Logger) write(level, colored, plain, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	prefix := colored
	if l.noColor {
		prefix = plain
	}
	fmt.Fprintf(l.out, "%s %s\n", prefix, msg)
	l.writeFile(level, msg)
}

// writeFile must be called with l.mu held.
func (l *Logger) writeFile(level, msg string) {
	if l.file == nil {
		return
	}
	fmt.Fprintf(l.file, "%s %-5s %s\n", l.now().UTC().Format(time.RFC3339), level, msg)
}

// Secret represents a value that should be redacted in logs
type Secret string

// String implements the Stringer interface, always returning a redacted value
func (s Secret) String() string {
	return "[REDACTED]"
}

// GoString implements the GoStringer interface for %#v formatting
func (s Secret) GoString() string {
	return "[REDACTED]"
}

// Redact replaces sensitive values in a string with [REDACTED]
func Redact(s string, secrets []string) string {
	result := s
	for _, secret := range secrets {
		if secret != "" && len(secret) > 3 { // Only redact non-trivial secrets
			result = strings.ReplaceAll(result, secret, "[REDACTED]")
		}
	}
	return result
}

// RedactURL keeps the scheme and host of a webhook URL and hides the rest,
// which usually carries the token.
func RedactURL(raw string) string {
	idx := strings.Index(raw, "://")
	if idx < 0 {
		return "[REDACTED]"
	}
	rest := raw[idx+3:]
	if slash := strings.Index(rest, "/"); slash >= 0 {
		return raw[:idx+3] + rest[:slash] + "/[REDACTED]"
	}
	return raw
}
