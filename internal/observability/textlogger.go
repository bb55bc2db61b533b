package observability

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

// Level orders log severities for filtering.
type Level int

const (
	// LevelDebug enables all log output.
	LevelDebug Level = iota
	// LevelInfo suppresses debug output.
	LevelInfo
	// LevelWarn suppresses debug and info output.
	LevelWarn
	// LevelError only emits errors.
	LevelError
)

// ParseLevel converts a configuration string into a Level, defaulting to info.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// TextLogger writes single-line key=value log records to an io.Writer.
type TextLogger struct {
	mu    sync.Mutex
	out   io.Writer
	level Level
	clock func() time.Time
}

// NewTextLogger constructs a text logger with the given minimum level.
func NewTextLogger(out io.Writer, level Level) *TextLogger {
	logger := new(TextLogger)
	logger.out = out
	logger.level = level
	logger.clock = time.Now
	return logger
}

// Debug emits a debug-level record.
func (l *TextLogger) Debug(msg string, fields ...Field) { l.write(LevelDebug, "DEBUG", msg, fields) }

// Info emits an info-level record.
func (l *TextLogger) Info(msg string, fields ...Field) { l.write(LevelInfo, "INFO", msg, fields) }

// Warn emits a warn-level record.
func (l *TextLogger) Warn(msg string, fields ...Field) { l.write(LevelWarn, "WARN", msg, fields) }

// Error emits an error-level record.
func (l *TextLogger) Error(msg string, fields ...Field) { l.write(LevelError, "ERROR", msg, fields) }

func (l *TextLogger) write(level Level, tag, msg string, fields []Field) {
	if l == nil || l.out == nil || level < l.level {
		return
	}
	var b strings.Builder
	b.WriteString(l.clock().UTC().Format(time.RFC3339Nano))
	b.WriteString(" ")
	b.WriteString(tag)
	b.WriteString(" ")
	b.WriteString(msg)
	for _, f := range fields {
		if f.Key == "" {
			continue
		}
		fmt.Fprintf(&b, " %s=%v", f.Key, f.Value)
	}
	b.WriteString("\n")
	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = io.WriteString(l.out, b.String())
}
