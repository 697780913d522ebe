package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	embedsql "github.com/nick-dorsch/tasklist/embed/sql"
	_ "modernc.org/sqlite"
)

type ChangeKind string

const (
	ChangeInserted ChangeKind = "inserted"
	ChangeUpdated  ChangeKind = "updated"
	ChangeImported ChangeKind = "imported"
)

// ChangeEvent describes a successful mutation of the task store.
// TaskID is empty for bulk changes such as a snapshot import.
type ChangeEvent struct {
	Kind   ChangeKind
	TaskID string
}

type ChangeFunc func(ctx context.Context, ev ChangeEvent)

type subscriber struct {
	id int
	fn ChangeFunc
}

type DB struct {
	*sql.DB
	subscribers []subscriber
	nextSubID   int
	onChangeMu  sync.RWMutex
}

type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Subscribe registers fn to be called after every successful write.
// Subscribers run synchronously in registration order on the writer's goroutine.
// The returned func removes the subscription.
func (db *DB) Subscribe(fn ChangeFunc) func() {
	db.onChangeMu.Lock()
	defer db.onChangeMu.Unlock()

	db.nextSubID++
	id := db.nextSubID
	db.subscribers = append(db.subscribers, subscriber{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			db.onChangeMu.Lock()
			defer db.onChangeMu.Unlock()
			for i, s := range db.subscribers {
				if s.id == id {
					db.subscribers = append(db.subscribers[:i:i], db.subscribers[i+1:]...)
					return
				}
			}
		})
	}
}

func (db *DB) triggerChange(ctx context.Context, ev ChangeEvent) {
	db.onChangeMu.RLock()
	subs := make([]subscriber, len(db.subscribers))
	copy(subs, db.subscribers)
	db.onChangeMu.RUnlock()

	for _, s := range subs {
		s.fn(ctx, ev)
	}
}

// Open opens a SQLite database at the given path.
func Open(path string) (*DB, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Wait for another process's write lock instead of failing with SQLITE_BUSY.
	if _, err := db.Exec("PRAGMA busy_timeout=5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	// WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	// SQLite works best with a single writer.
	// This also keeps ":memory:" databases alive on one connection.
	db.SetMaxOpenConns(1)

	return &DB{DB: db}, nil
}

// Init brings the schema up to the latest embedded migration.
func (db *DB) Init(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	src, err := iofs.New(embedsql.Migrations, embedsql.MigrationsDir)
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}

	driver, err := sqlite.WithInstance(db.DB, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	// The migrate instance is not closed: closing the driver would close db.DB.
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// SchemaVersion reports the applied migration version.
func (db *DB) SchemaVersion(ctx context.Context) (uint, error) {
	var version uint
	err := db.QueryRowContext(ctx, `SELECT version FROM schema_migrations LIMIT 1`).Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}
