// Package logging tests for structured JSON logging.
package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
)

// resetGlobal clears the global logger between tests.
func resetGlobal() {
	global = nil
	once = *new(sync.Once)
}

// TestInit verifies logger initialization.
func TestInit(t *testing.T) {
	resetGlobal()

	var buf bytes.Buffer
	Init(&buf, LevelInfo)

	logger := Get()
	if logger == nil {
		t.Fatal("Get() returned nil after Init()")
	}
	if logger.out != &buf {
		t.Error("Init() did not set output writer correctly")
	}
	if logger.minLevel != LevelInfo {
		t.Errorf("minLevel = %v, want LevelInfo", logger.minLevel)
	}
}

// TestInit_idempotent verifies Init is idempotent.
func TestInit_idempotent(t *testing.T) {
	resetGlobal()

	var buf1 bytes.Buffer
	Init(&buf1, LevelInfo)
	firstLogger := Get()

	var buf2 bytes.Buffer
	Init(&buf2, LevelDebug)

	if Get() != firstLogger {
		t.Error("Second Init() should be ignored, different logger returned")
	}
}

// TestLog_levelFiltering verifies entries below minLevel are suppressed.
func TestLog_levelFiltering(t *testing.T) {
	resetGlobal()

	var buf bytes.Buffer
	Init(&buf, LevelWarn)

	logger := Get()
	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message", nil)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("emitted %d lines, want 2: %q", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "warn message") {
		t.Errorf("first line = %q, want warn message", lines[0])
	}
}

// TestLog_jsonShape verifies the entry is valid JSON with expected fields.
func TestLog_jsonShape(t *testing.T) {
	resetGlobal()

	var buf bytes.Buffer
	Init(&buf, LevelDebug)

	Get().Error("write failed", errors.New("disk full"), map[string]interface{}{"table": "contact_data"})

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if entry.Level != "ERROR" {
		t.Errorf("level = %q, want ERROR", entry.Level)
	}
	if entry.Message != "write failed" {
		t.Errorf("message = %q, want 'write failed'", entry.Message)
	}
	if entry.Error != "disk full" {
		t.Errorf("error = %q, want 'disk full'", entry.Error)
	}
	if entry.Context["table"] != "contact_data" {
		t.Errorf("context table = %v, want contact_data", entry.Context["table"])
	}
}

// TestScoped verifies child loggers tag entries with their scope.
func TestScoped(t *testing.T) {
	resetGlobal()

	var buf bytes.Buffer
	Init(&buf, LevelDebug)

	Scoped("dispatcher").Info("started")

	var entry LogEntry
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if entry.Scope != "dispatcher" {
		t.Errorf("scope = %q, want 'dispatcher'", entry.Scope)
	}
}

// TestParseLevel verifies level string parsing and its fallback.
func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want LogLevel
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"warning", LevelWarn},
		{" error ", LevelError},
		{"bogus", LevelInfo},
		{"", LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

// TestMergeContext verifies multiple context maps are merged.
func TestMergeContext(t *testing.T) {
	merged := mergeContext(
		map[string]interface{}{"a": 1},
		map[string]interface{}{"b": 2},
	)

	if len(merged) != 2 {
		t.Fatalf("merged size = %d, want 2", len(merged))
	}
	if merged["a"] != 1 || merged["b"] != 2 {
		t.Errorf("merged = %v, want both keys present", merged)
	}

	if mergeContext() != nil {
		t.Error("mergeContext() with no args should return nil")
	}
}
