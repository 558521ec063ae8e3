package applog

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestLoggerWritesEventAndPairs(t *testing.T) {
	var buf bytes.Buffer
	lg := New(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	lg.Info("sort.done", "tabs", 3)
	lg.Error("render.move", errors.New("no tab"), "tab", 12)

	out := buf.String()
	for _, want := range []string{"msg=sort.done", "tabs=3", "msg=render.move", `err="no tab"`, "tab=12"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestLoggerRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	lg := New(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))

	lg.Debug("cluster", "tabs", 2)
	if buf.Len() != 0 {
		t.Errorf("debug line written at info level: %q", buf.String())
	}
}

func TestLoggerTruncatesLongValues(t *testing.T) {
	var buf bytes.Buffer
	lg := New(slog.New(slog.NewTextHandler(&buf, nil)))

	lg.Info("long", "v", strings.Repeat("x", 500))
	if strings.Contains(buf.String(), strings.Repeat("x", 201)) {
		t.Error("value was not truncated")
	}
}

func TestDiscardIsSafe(t *testing.T) {
	Discard().Info("nothing", "k", "v")
	Discard().Error("nothing", errors.New("x"))
	var zero Logger
	zero.Debug("nothing")
}

func TestInitWritesFile(t *testing.T) {
	dir := t.TempDir()
	if _, err := Init(Options{Dir: dir, Level: "info"}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	Info("bridge.connected", "remote", "127.0.0.1")
	Close()

	data, err := os.ReadFile(filepath.Join(dir, "tabsort.log"))
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "bridge.connected") {
		t.Errorf("log file missing event: %q", data)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestClipKeepsRuneBoundary(t *testing.T) {
	tests := []struct {
		name string
		in   string
		max  int // expected byte length before the suffix
	}{
		{"short", "héllo", -1},
		{"ascii", strings.Repeat("a", maxValueLen+10), maxValueLen},
		// "é" is two bytes, so byte maxValueLen falls inside a rune.
		{"split rune", "a" + strings.Repeat("é", maxValueLen), maxValueLen - 1},
		{"three byte runes", strings.Repeat("€", maxValueLen), maxValueLen - maxValueLen%3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := clip(tt.in)
			if !utf8.ValidString(got) {
				t.Fatalf("clip produced invalid UTF-8: %q", got)
			}
			if tt.max < 0 {
				if got != tt.in {
					t.Errorf("clip(%q) = %q, want unchanged", tt.in, got)
				}
				return
			}
			body := strings.TrimSuffix(got, truncSuffix)
			if body == got {
				t.Fatalf("clip(%d bytes) has no %q suffix", len(tt.in), truncSuffix)
			}
			if len(body) != tt.max {
				t.Errorf("kept %d bytes, want %d", len(body), tt.max)
			}
		})
	}
}
