package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestNewRejectsBadInput(t *testing.T) {
	if _, err := New("loud", "json"); err == nil {
		t.Error("expected error for invalid level")
	}
	if _, err := New("info", "xml"); err == nil {
		t.Error("expected error for invalid format")
	}
}

func TestNewFileWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "tasklist.log")

	logger, err := NewFile("info", "json", path)
	if err != nil {
		t.Fatalf("NewFile failed: %v", err)
	}
	logger.Debug("hidden")
	logger.Info("task added", zap.String("task_id", "abc"))
	logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 1 {
		t.Fatalf("expected 1 log line, got %d: %s", len(lines), data)
	}

	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("expected JSON log line: %v", err)
	}
	if entry["msg"] != "task added" {
		t.Errorf("expected msg 'task added', got %v", entry["msg"])
	}
	if entry["task_id"] != "abc" {
		t.Errorf("expected task_id abc, got %v", entry["task_id"])
	}
}

func TestNewFileConsoleFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "console.log")

	logger, err := NewFile("debug", "console", path)
	if err != nil {
		t.Fatalf("NewFile failed: %v", err)
	}
	logger.Debug("visible at debug")
	logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read log: %v", err)
	}
	if !strings.Contains(string(data), "visible at debug") {
		t.Errorf("expected debug message in console log, got %s", data)
	}
}
