package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// ParseLevel maps a config/flag string to a Level. Unknown values fall back
// to INFO.
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

func (l Level) rank() int {
	switch l {
	case LevelDebug:
		return 0
	case LevelInfo:
		return 1
	case LevelWarn:
		return 2
	case LevelError:
		return 3
	default:
		return 1
	}
}

// Logger writes one line per record:
//
//	2025-01-01T00:00:00Z [LEVEL] msg key=value ...
//
// A Logger is created per invocation and passed to the components that need
// it. Child loggers created with With share the parent's writer.
type Logger struct {
	mu       *sync.Mutex
	out      io.Writer
	closer   io.Closer
	minLevel Level
	fields   []any
	now      func() time.Time
}

// New returns a Logger writing to w.
func New(w io.Writer, level Level) *Logger {
	return &Logger{
		mu:       &sync.Mutex{},
		out:      w,
		minLevel: level,
		now:      time.Now,
	}
}

// NewFile truncates (or creates) the file at path and returns a Logger that
// appends to it until Close is called. This is the per-run log artifact.
func NewFile(path string, level Level) (*Logger, error) {
	if path == "" {
		return nil, fmt.Errorf("log file path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, err
	}
	l := New(f, level)
	l.closer = f
	return l, nil
}

// Discard returns a Logger that drops everything.
func Discard() *Logger {
	return New(io.Discard, LevelError)
}

// Close closes the underlying file when the Logger owns one.
func (l *Logger) Close() error {
	if l == nil || l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

// With returns a child logger that prepends kv to every record.
func (l *Logger) With(kv ...any) *Logger {
	child := *l
	child.closer = nil
	child.fields = append(append([]any{}, l.fields...), kv...)
	return &child
}

func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	l.minLevel = level
	l.mu.Unlock()
}

func (l *Logger) Debug(msg string, kv ...any) {
	l.log(LevelDebug, msg, kv...)
}

func (l *Logger) Info(msg string, kv ...any) {
	l.log(LevelInfo, msg, kv...)
}

func (l *Logger) Warn(msg string, kv ...any) {
	l.log(LevelWarn, msg, kv...)
}

func (l *Logger) Error(msg string, err error, kv ...any) {
	// Prepend error into key-value list.
	extended := append([]any{"err", err}, kv...)
	l.log(LevelError, msg, extended...)
}

// Printf lets the logger be handed to libraries expecting a printf-style
// sink (cron).
func (l *Logger) Printf(format string, args ...any) {
	l.log(LevelDebug, fmt.Sprintf(format, args...))
}

func (l *Logger) log(level Level, msg string, kv ...any) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if level.rank() < l.minLevel.rank() {
		return
	}

	ts := l.now().Format(time.RFC3339Nano)
	line := ts + " [" + string(level) + "] " + msg
	if len(l.fields) > 0 {
		line += formatKVs(l.fields...)
	}
	if len(kv) > 0 {
		line += formatKVs(kv...)
	}
	_, _ = io.WriteString(l.out, line+"\n")
}

func formatKVs(kv ...any) string {
	var b strings.Builder
	// Expect kv as pairs: key, value, key, value, ...
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		b.WriteString(" ")
		b.WriteString(key)
		b.WriteString("=")
		b.WriteString(quoteIfNeeded(fmt.Sprint(kv[i+1])))
	}
	// If odd number of args, last one is ignored.
	return b.String()
}

// quoteIfNeeded keeps values with spaces on one readable token so raw event
// lines in the run log stay greppable.
func quoteIfNeeded(s string) string {
	if s == "" {
		return `""`
	}
	if strings.ContainsAny(s, " \t\n\"=") {
		return fmt.Sprintf("%q", s)
	}
	return s
}

var (
	std     *Logger
	stdOnce sync.Once
)

func defaultLogger() *Logger {
	stdOnce.Do(func() {
		std = New(os.Stderr, LevelInfo)
	})
	return std
}

// Default returns the process-wide stderr logger.
func Default() *Logger {
	return defaultLogger()
}

func SetLevel(l Level) {
	defaultLogger().SetLevel(l)
}

func Debug(msg string, kv ...any) {
	defaultLogger().Debug(msg, kv...)
}

func Info(msg string, kv ...any) {
	defaultLogger().Info(msg, kv...)
}

func Warn(msg string, kv ...any) {
	defaultLogger().Warn(msg, kv...)
}

func Error(msg string, err error, kv ...any) {
	defaultLogger().Error(msg, err, kv...)
}
