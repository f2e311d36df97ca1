// Package corelog provides the fluent structured-logging builder shared by
// the scanner, the cache store, and the cache lock.
package corelog

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

// Logger wraps a zerolog.Logger behind the fluent Error/Warn/Info/Debug
// builder the rest of this module uses.
type Logger struct {
	mu   sync.Mutex
	zlog zerolog.Logger
}

var (
	defaultOnce sync.Once
	defaultLog  *Logger
)

// Default returns the process-wide logger, writing to stderr, console-
// formatted when stderr is a TTY and newline-delimited JSON otherwise.
func Default() *Logger {
	defaultOnce.Do(func() {
		defaultLog = New(os.Stderr)
	})
	return defaultLog
}

// New builds a Logger writing to w.
func New(w io.Writer) *Logger {
	var out io.Writer = w
	if f, ok := w.(*os.File); ok && isatty.IsTerminal(f.Fd()) {
		out = zerolog.ConsoleWriter{Out: f, TimeFormat: time.RFC3339}
	}

	zlog := zerolog.New(out).With().Timestamp().Logger()
	return &Logger{zlog: zlog}
}

// LogEntry is a single in-progress structured log record.
type LogEntry struct {
	level  zerolog.Level
	err    error
	msg    string
	fields map[string]any
	logger *Logger
}

func (l *Logger) entry(level zerolog.Level) *LogEntry {
	return &LogEntry{level: level, fields: make(map[string]any), logger: l}
}

// Error starts an error-level entry.
func (l *Logger) Error(err error) *LogEntry { e := l.entry(zerolog.ErrorLevel); e.err = err; return e }

// Warn starts a warning-level entry.
func (l *Logger) Warn() *LogEntry { return l.entry(zerolog.WarnLevel) }

// Info starts an info-level entry.
func (l *Logger) Info() *LogEntry { return l.entry(zerolog.InfoLevel) }

// Debug starts a debug-level entry.
func (l *Logger) Debug() *LogEntry { return l.entry(zerolog.DebugLevel) }

// WithMessage sets the human-readable message.
func (e *LogEntry) WithMessage(msg string) *LogEntry {
	e.msg = msg
	return e
}

// WithField attaches one structured field.
func (e *LogEntry) WithField(key string, value any) *LogEntry {
	e.fields[key] = value
	return e
}

// WithFields merges multiple structured fields.
func (e *LogEntry) WithFields(fields map[string]any) *LogEntry {
	for k, v := range fields {
		e.fields[k] = v
	}
	return e
}

// Write emits the entry. Safe to call on a nil *Logger (the entry is simply
// dropped), so call sites never need a logger != nil guard.
func (e *LogEntry) Write() {
	if e == nil || e.logger == nil {
		return
	}
	e.logger.mu.Lock()
	defer e.logger.mu.Unlock()

	ev := e.logger.zlog.WithLevel(e.level).Fields(e.fields)
	if e.err != nil {
		ev = ev.Err(e.err)
	}
	ev.Msg(e.msg)
}
