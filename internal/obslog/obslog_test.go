package obslog

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestJSONConsoleCore(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "warn", Console: true, Format: "json", Stdout: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("agent_failure", zap.String("color", "white"))
	_ = logger.Sync()

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info line passed warn level: %s", out)
	}
	if !strings.Contains(out, `"msg":"agent_failure"`) || !strings.Contains(out, `"color":"white"`) {
		t.Fatalf("unexpected output: %s", out)
	}
}

func TestFileCore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "arena.log")
	logger, err := New(Options{Level: "debug", File: path, Format: "legacy"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	logger.Debug("move_applied")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "DEBUG | ") || !strings.Contains(string(data), "move_applied") {
		t.Fatalf("unexpected log line: %s", data)
	}
}

func TestOptionsFromEnv(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_TO_FILE", "false")
	t.Setenv("LOG_FORMAT", "json")
	opts := OptionsFromEnv()
	if opts.Level != "debug" || opts.File != "" || opts.Format != "json" || !opts.Console {
		t.Fatalf("opts = %+v", opts)
	}
}

func TestOrFallsBackToGlobal(t *testing.T) {
	if Or(nil) != L() {
		t.Fatalf("Or(nil) should return the global logger")
	}
	l := zap.NewNop()
	if Or(l) != l {
		t.Fatalf("Or should keep a non-nil logger")
	}
}
