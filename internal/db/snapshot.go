package db

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nick-dorsch/tasklist/pkg/models"
)

const snapshotVersion = 1

type snapshotMeta struct {
	RecordType string    `json:"record_type"`
	Version    int       `json:"version"`
	ExportedAt time.Time `json:"exported_at"`
	TaskCount  int       `json:"task_count"`
}

type snapshotTask struct {
	RecordType string `json:"record_type"`
	models.Task
}

// EnableAutoSnapshot subscribes a hook that exports a snapshot to path after
// every successful write. Export failures are passed to onErr when it is set;
// they never fail the original write.
func (db *DB) EnableAutoSnapshot(path string, onErr func(error)) func() {
	return db.Subscribe(func(ctx context.Context, _ ChangeEvent) {
		if err := db.ExportSnapshot(ctx, path); err != nil && onErr != nil {
			onErr(err)
		}
	})
}

// ExportSnapshot writes a meta line followed by one line per task, in
// description order, to path atomically using a temporary file.
func (db *DB) ExportSnapshot(ctx context.Context, path string) error {
	tasks, err := db.ListTasks(ctx)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	tempFile, err := os.CreateTemp(dir, "snapshot-*.jsonl")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		if tempFile != nil {
			tempFile.Close()
			os.Remove(tempFile.Name())
		}
	}()

	w := bufio.NewWriter(tempFile)
	enc := json.NewEncoder(w)

	meta := snapshotMeta{
		RecordType: "meta",
		Version:    snapshotVersion,
		ExportedAt: time.Now().UTC(),
		TaskCount:  len(tasks),
	}
	if err := enc.Encode(meta); err != nil {
		return fmt.Errorf("failed to write snapshot meta: %w", err)
	}

	for _, t := range tasks {
		if err := enc.Encode(snapshotTask{RecordType: "task", Task: *t}); err != nil {
			return fmt.Errorf("failed to write snapshot line: %w", err)
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush snapshot: %w", err)
	}

	if err := tempFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	filename := tempFile.Name()
	tempFile = nil // Prevent defer from removing it

	if err := os.Rename(filename, path); err != nil {
		os.Remove(filename)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// ImportSnapshot reads a JSONL snapshot and merges it into the database in a
// single transaction. Tasks are matched by id: unknown ids are inserted, known
// ids only take the snapshot's completion state since descriptions never change.
func (db *DB) ImportSnapshot(ctx context.Context, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open snapshot file: %w", err)
	}
	defer file.Close()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(strings.TrimSpace(string(line))) == 0 {
			continue
		}

		var base struct {
			RecordType string `json:"record_type"`
		}
		if err := json.Unmarshal(line, &base); err != nil {
			return fmt.Errorf("failed to unmarshal base record on line %d: %w", lineNo, err)
		}

		switch base.RecordType {
		case "meta":
			var meta snapshotMeta
			if err := json.Unmarshal(line, &meta); err != nil {
				return fmt.Errorf("failed to unmarshal meta: %w", err)
			}
			if meta.Version > snapshotVersion {
				return fmt.Errorf("unsupported snapshot version %d", meta.Version)
			}
		case "task":
			var rec snapshotTask
			if err := json.Unmarshal(line, &rec); err != nil {
				return fmt.Errorf("failed to unmarshal task on line %d: %w", lineNo, err)
			}
			t := rec.Task
			t.Description = strings.TrimSpace(t.Description)
			if t.Description == "" {
				return fmt.Errorf("task on line %d has an empty description", lineNo)
			}
			if t.ID == "" {
				t.ID = uuid.New().String()
			}
			if err := upsertTask(ctx, tx, &t); err != nil {
				return fmt.Errorf("failed to sync task %s: %w", t.ID, err)
			}
		default:
			return fmt.Errorf("unknown record type %q on line %d", base.RecordType, lineNo)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scanner error: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	db.triggerChange(ctx, ChangeEvent{Kind: ChangeImported})
	return nil
}

func upsertTask(ctx context.Context, exec executor, t *models.Task) error {
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	if t.UpdatedAt.IsZero() {
		t.UpdatedAt = t.CreatedAt
	}

	query := `
		INSERT INTO tasks (id, description, completed, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			completed = excluded.completed,
			updated_at = excluded.updated_at
	`
	_, err := exec.ExecContext(ctx, query,
		t.ID, t.Description, boolToInt(t.Completed), t.CreatedAt, t.UpdatedAt,
	)
	return err
}
