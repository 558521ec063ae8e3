package applog

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode/utf8"

	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	maxFileSizeMB = 5
	maxBackups    = 3
	maxValueLen   = 200
	truncSuffix   = "…"
)

// Logger writes event-style log lines: an event name followed by key/value
// pairs. The zero value discards everything.
type Logger struct {
	l *slog.Logger
}

// New wraps an slog logger.
func New(l *slog.Logger) Logger {
	return Logger{l: l}
}

// Discard returns a logger that drops every line.
func Discard() Logger {
	return Logger{}
}

// Info logs a structured event line.
//
//	log.Info("bridge.connected", "remote", addr)
//	log.Info("sort.done", "tabs", 42)
func (lg Logger) Info(event string, kv ...any) {
	lg.write(slog.LevelInfo, event, nil, kv)
}

// Debug logs verbose pipeline traces.
func (lg Logger) Debug(event string, kv ...any) {
	lg.write(slog.LevelDebug, event, nil, kv)
}

// Warn logs a recovered problem.
func (lg Logger) Warn(event string, kv ...any) {
	lg.write(slog.LevelWarn, event, nil, kv)
}

// Error logs an event with an error.
//
//	log.Error("render.move", err, "tab", 12)
func (lg Logger) Error(event string, err error, kv ...any) {
	lg.write(slog.LevelError, event, err, kv)
}

func (lg Logger) write(level slog.Level, event string, err error, kv []any) {
	if lg.l == nil || !lg.l.Enabled(context.Background(), level) {
		return
	}
	attrs := make([]any, 0, len(kv)+2)
	if err != nil {
		attrs = append(attrs, "err", clip(err.Error()))
	}
	for i := 0; i+1 < len(kv); i += 2 {
		attrs = append(attrs, fmt.Sprint(kv[i]), clip(fmt.Sprint(kv[i+1])))
	}
	lg.l.Log(context.Background(), level, event, attrs...)
}

// clip cuts s to maxValueLen bytes on a rune boundary.
func clip(s string) string {
	if len(s) <= maxValueLen {
		return s
	}
	cut := maxValueLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + truncSuffix
}

var (
	mu      sync.Mutex
	def     = Discard()
	rotator *lumberjack.Logger
)

// Options controls where Init sends log lines.
type Options struct {
	Dir    string
	Level  string // debug, info, warn, error
	Stderr bool   // mirror to stderr
}

// Init opens tabsort.log in dir (rotated at 5 MB) and installs it as the
// default logger. Safe to skip; package-level calls are no-ops until then.
func Init(opts Options) (Logger, error) {
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return Discard(), err
	}

	w := &lumberjack.Logger{
		Filename:   filepath.Join(opts.Dir, "tabsort.log"),
		MaxSize:    maxFileSizeMB,
		MaxBackups: maxBackups,
	}
	var out io.Writer = w
	if opts.Stderr {
		out = io.MultiWriter(os.Stderr, w)
	}

	h := slog.NewTextHandler(out, &slog.HandlerOptions{Level: ParseLevel(opts.Level)})
	lg := New(slog.New(h))

	mu.Lock()
	if rotator != nil {
		rotator.Close()
	}
	rotator = w
	def = lg
	mu.Unlock()
	return lg, nil
}

// ParseLevel maps a level name to an slog level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Default returns the logger installed by Init.
func Default() Logger {
	mu.Lock()
	defer mu.Unlock()
	return def
}

// Close flushes and closes the log file.
func Close() {
	mu.Lock()
	defer mu.Unlock()
	if rotator != nil {
		rotator.Close()
		rotator = nil
	}
	def = Discard()
}

// Info logs through the default logger.
func Info(event string, kv ...any) { Default().Info(event, kv...) }

// Error logs through the default logger.
func Error(event string, err error, kv ...any) { Default().Error(event, err, kv...) }
