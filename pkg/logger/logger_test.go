package logger

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

// TestFileOutputJSON verifies records land in the file as JSON and respect the level.
func TestFileOutputJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "speech_writer.log")
	l, err := New(Config{Level: "warn", Format: "json", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Info("dropped")
	l.Warn("kept", "provider", "openai")
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d: %q", len(lines), data)
	}
	var rec map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &rec); err != nil {
		t.Fatalf("not JSON: %v", err)
	}
	if rec["msg"] != "kept" || rec["provider"] != "openai" {
		t.Fatalf("unexpected record: %v", rec)
	}
}

func TestTextFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")
	l, err := New(Config{Format: "text", OutputPaths: []string{path}})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	l.Info("hello", "job", "j1")
	l.Close()

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "msg=hello") || !strings.Contains(string(data), "job=j1") {
		t.Fatalf("unexpected text output: %q", data)
	}
}
