package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/nick-dorsch/tasklist/internal/config"
)

func TestFlagsOverrideEnvironment(t *testing.T) {
	tmpDir := t.TempDir()
	envDB := filepath.Join(tmpDir, "env", "env.db")
	flagDB := filepath.Join(tmpDir, "flag", "flag.db")

	t.Setenv("TASKLIST_DB_PATH", envDB)
	t.Setenv("TASKLIST_LOG_LEVEL", "warn")

	var stderr bytes.Buffer
	if err := execute([]string{"--db-path", flagDB, "--verbose", "db"}, &stderr); err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	if cfg.DBPath != flagDB {
		t.Errorf("expected db path %s, got %s", flagDB, cfg.DBPath)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("expected --verbose to select debug, got %s", cfg.LogLevel)
	}
	if cfg.SnapshotPath != filepath.Join(tmpDir, "flag", "snapshot.jsonl") {
		t.Errorf("expected snapshot next to database, got %s", cfg.SnapshotPath)
	}
}

func TestEnvironmentDefaults(t *testing.T) {
	snapshot := filepath.Join(t.TempDir(), "elsewhere.jsonl")
	t.Setenv("TASKLIST_SNAPSHOT_PATH", snapshot)
	t.Setenv("TASKLIST_LOG_LEVEL", "warn")

	var stderr bytes.Buffer
	if err := execute([]string{"db"}, &stderr); err != nil {
		t.Fatalf("execute failed: %v", err)
	}

	if cfg.DBPath != config.DefaultDBPath {
		t.Errorf("expected default db path, got %s", cfg.DBPath)
	}
	if cfg.SnapshotPath != snapshot {
		t.Errorf("expected snapshot path from environment, got %s", cfg.SnapshotPath)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("expected log level from environment, got %s", cfg.LogLevel)
	}
}
