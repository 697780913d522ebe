package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/nick-dorsch/tasklist/pkg/models"
)

// ErrTaskNotFound is returned by mutations addressed to an unknown task id.
var ErrTaskNotFound = errors.New("task not found")

const taskColumns = `id, description, completed, created_at, updated_at`

// CreateTask inserts a new task into the database.
// If t.ID is empty, a new UUID is generated.
func (db *DB) CreateTask(ctx context.Context, t *models.Task) error {
	if err := db.createTask(ctx, db.DB, t); err != nil {
		return err
	}

	db.triggerChange(ctx, ChangeEvent{Kind: ChangeInserted, TaskID: t.ID})
	return nil
}

func (db *DB) createTask(ctx context.Context, exec executor, t *models.Task) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}

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
	`
	_, err := exec.ExecContext(ctx, query,
		t.ID, t.Description, boolToInt(t.Completed), t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create task: %w", err)
	}
	return nil
}

// GetTask retrieves a task by its ID. It returns nil, nil when no task matches.
func (db *DB) GetTask(ctx context.Context, id string) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = ?`

	t, err := scanTask(db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}
	return t, nil
}

// SetTaskCompleted writes the completion flag of an existing task and returns
// the updated row. The write and the re-read share a transaction, so an error
// always means nothing was stored. Unknown ids leave the store untouched and
// yield ErrTaskNotFound.
func (db *DB) SetTaskCompleted(ctx context.Context, id string, completed bool) (*models.Task, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `UPDATE tasks SET completed = ?, updated_at = ? WHERE id = ?`
	res, err := tx.ExecContext(ctx, query, boolToInt(completed), time.Now().UTC(), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update task completion: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTaskNotFound, id)
	}

	t, err := scanTask(tx.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("failed to read updated task: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	db.triggerChange(ctx, ChangeEvent{Kind: ChangeUpdated, TaskID: id})
	return t, nil
}

// ListTasks returns every task ordered by description, ascending.
func (db *DB) ListTasks(ctx context.Context) ([]*models.Task, error) {
	query := `
		SELECT ` + taskColumns + `
		FROM tasks
		ORDER BY description ASC, created_at ASC, id ASC
	`
	return db.queryTasks(ctx, db.DB, query)
}

// CountTasks returns the number of tasks and how many of them are completed.
func (db *DB) CountTasks(ctx context.Context) (total int, completed int, err error) {
	query := `SELECT COUNT(*), COALESCE(SUM(completed), 0) FROM tasks`
	if err := db.QueryRowContext(ctx, query).Scan(&total, &completed); err != nil {
		return 0, 0, fmt.Errorf("failed to count tasks: %w", err)
	}
	return total, completed, nil
}

func (db *DB) queryTasks(ctx context.Context, exec executor, query string, args ...any) ([]*models.Task, error) {
	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	tasks := []*models.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		tasks = append(tasks, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return tasks, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	t := &models.Task{}
	var completed int
	if err := row.Scan(&t.ID, &t.Description, &completed, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Completed = completed != 0
	return t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
