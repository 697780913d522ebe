package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/nick-dorsch/tasklist/internal/config"
	"github.com/nick-dorsch/tasklist/internal/db"
	"github.com/nick-dorsch/tasklist/internal/logging"
	"github.com/nick-dorsch/tasklist/internal/mcp"
	"github.com/nick-dorsch/tasklist/internal/metrics"
	"github.com/nick-dorsch/tasklist/internal/server"
	"github.com/nick-dorsch/tasklist/internal/tasklist"
	"github.com/nick-dorsch/tasklist/internal/ui"
	"go.uber.org/zap"
)

var cfg *config.Config

// runTUI is replaced in tests.
var runTUI = func(ctx context.Context, ctrl ui.Controller, notifier ui.Notifier) error {
	return ui.Run(ctx, ctrl, notifier)
}

func main() {
	if err := execute(os.Args[1:], os.Stderr); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func execute(args []string, stderr io.Writer) error {
	loaded, err := config.Load()
	if err != nil {
		return err
	}
	cfg = loaded

	var verbose bool
	rootFlags := flag.NewFlagSet("tasklist", flag.ContinueOnError)
	rootFlags.SetOutput(stderr)
	rootFlags.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "Path to database file")
	rootFlags.StringVar(&cfg.SnapshotPath, "snapshot-path", cfg.SnapshotPath, "Path to snapshot file")
	rootFlags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level (debug, info, warn, error)")
	rootFlags.BoolVar(&verbose, "verbose", false, "Enable verbose logging")
	rootFlags.Usage = func() {
		fmt.Fprintln(stderr, "Usage: tasklist [flags] [command] [arguments]")
		fmt.Fprintln(stderr, "\nRunning `tasklist` with no command launches the TUI.")
		fmt.Fprintln(stderr, "\nCommands:")
		fmt.Fprintln(stderr, "  init [dir]                     Create .tasklist/ and the database")
		fmt.Fprintln(stderr, "  add <description...>           Add a task")
		fmt.Fprintln(stderr, "  toggle <id>                    Toggle a task's completion")
		fmt.Fprintln(stderr, "  list                           List tasks")
		fmt.Fprintln(stderr, "  status                         Show task counts")
		fmt.Fprintln(stderr, "  db status|export|import [path] Manage the database and snapshot")
		fmt.Fprintln(stderr, "  mcp                            Serve MCP tools on stdio")
		fmt.Fprintln(stderr, "  web [-port N]                  Serve the JSON API and /metrics")
		fmt.Fprintln(stderr, "\nFlags:")
		rootFlags.PrintDefaults()
	}
	if err := rootFlags.Parse(args); err != nil {
		return err
	}

	if verbose {
		cfg.LogLevel = "debug"
	}

	// A relocated database keeps its snapshot and log next to it.
	if cfg.DBPath != config.DefaultDBPath {
		if cfg.SnapshotPath == config.DefaultSnapshotPath {
			cfg.SnapshotPath = cfg.SiblingPath(filepath.Base(config.DefaultSnapshotPath))
		}
		if cfg.LogFile == config.DefaultLogFile {
			cfg.LogFile = cfg.SiblingPath(filepath.Base(config.DefaultLogFile))
		}
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	if rootFlags.NArg() == 0 {
		return runRoot()
	}

	command := rootFlags.Arg(0)
	rest := rootFlags.Args()[1:]

	switch command {
	case "init":
		return runInit(rest)
	case "add":
		return runAdd(rest)
	case "toggle":
		return runToggle(rest)
	case "list":
		return runList(rest)
	case "status":
		return runStatus(rest)
	case "db":
		return runDB(rest)
	case "mcp":
		return runMCP(rest)
	case "web":
		return runWeb(rest)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

// openStore opens and migrates the database and, when enabled, keeps the
// snapshot file in step with every write.
func openStore(ctx context.Context, logger *zap.Logger) (*db.DB, error) {
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	if err := database.Init(ctx); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if cfg.AutoSnapshot {
		database.EnableAutoSnapshot(cfg.SnapshotPath, func(err error) {
			metrics.IncSnapshotFailures()
			logger.Error("Failed to export snapshot",
				zap.String("path", cfg.SnapshotPath),
				zap.Error(err),
			)
		})
	}

	return database, nil
}

func newLogger() (*zap.Logger, error) {
	return logging.New(cfg.LogLevel, cfg.LogFormat)
}

func runRoot() error {
	logger, err := logging.NewFile(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := openStore(ctx, logger)
	if err != nil {
		return err
	}
	defer database.Close()

	logger.Info("Starting TUI", zap.String("db_path", cfg.DBPath))
	return runTUI(ctx, tasklist.NewController(database, logger), database)
}

func runInit(args []string) error {
	targetDir := "."
	if len(args) > 0 {
		targetDir = args[0]
	}

	dataDir := filepath.Join(targetDir, config.DirName)
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", config.DirName, err)
	}
	fmt.Printf("✓ Created %s/ directory\n", config.DirName)

	gitignorePath := filepath.Join(dataDir, ".gitignore")
	if err := os.WriteFile(gitignorePath, []byte("tasklist.db*\ntasklist.log\n"), 0644); err != nil {
		return fmt.Errorf("failed to create .gitignore: %w", err)
	}
	fmt.Printf("✓ Created %s/.gitignore\n", config.DirName)

	// Default paths if not overridden by flags
	finalDBPath := cfg.DBPath
	if cfg.DBPath == config.DefaultDBPath {
		finalDBPath = filepath.Join(dataDir, filepath.Base(config.DefaultDBPath))
	}

	finalSnapshotPath := cfg.SnapshotPath
	if cfg.SnapshotPath == config.DefaultSnapshotPath {
		finalSnapshotPath = filepath.Join(dataDir, filepath.Base(config.DefaultSnapshotPath))
	}

	database, err := db.Open(finalDBPath)
	if err != nil {
		return err
	}
	defer database.Close()

	ctx := context.Background()
	if err := database.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	fmt.Printf("✓ Initialized database at %s\n", finalDBPath)

	// Check if snapshot exists and import it
	if _, err := os.Stat(finalSnapshotPath); err == nil {
		if err := database.ImportSnapshot(ctx, finalSnapshotPath); err != nil {
			return fmt.Errorf("failed to import snapshot: %w", err)
		}
		fmt.Printf("✓ Imported snapshot from %s\n", finalSnapshotPath)
	}

	fmt.Println("✓ Tasklist initialized successfully")
	return nil
}

func runAdd(args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := context.Background()
	database, err := openStore(ctx, logger)
	if err != nil {
		return err
	}
	defer database.Close()

	ctrl := tasklist.NewController(database, logger)
	res := ctrl.AddTask(ctx, strings.Join(args, " "))
	if !res.OK() {
		return fmt.Errorf("task not added: %w", res.Err)
	}

	fmt.Printf("✓ Added %s %s\n", res.Task.ID, res.Task.Description)
	return nil
}

func runToggle(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: tasklist toggle <id>")
	}

	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := context.Background()
	database, err := openStore(ctx, logger)
	if err != nil {
		return err
	}
	defer database.Close()

	ctrl := tasklist.NewController(database, logger)
	res := ctrl.ToggleCompletion(ctx, args[0])
	if !res.OK() {
		return res.Err
	}

	state := "open"
	if res.Task.Completed {
		state = "done"
	}
	fmt.Printf("✓ Marked %s as %s\n", res.Task.Description, state)
	return nil
}

func runList(args []string) error {
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer database.Close()

	ctx := context.Background()
	if err := database.Init(ctx); err != nil {
		return err
	}

	tasks, err := database.ListTasks(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("%-36s %-4s %s\n", "ID", "DONE", "DESCRIPTION")
	fmt.Println("----------------------------------------------------------------------")
	for _, t := range tasks {
		mark := "[ ]"
		if t.Completed {
			mark = "[x]"
		}
		fmt.Printf("%-36s %-4s %s\n", t.ID, mark, t.Description)
	}
	return nil
}

func runStatus(args []string) error {
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer database.Close()

	ctx := context.Background()
	if err := database.Init(ctx); err != nil {
		return err
	}

	total, completed, err := database.CountTasks(ctx)
	if err != nil {
		return err
	}

	version, err := database.SchemaVersion(ctx)
	if err != nil {
		return err
	}

	fmt.Println("Tasklist Status")
	fmt.Println("===============")
	fmt.Printf("Database:        %s (schema v%d)\n", cfg.DBPath, version)
	fmt.Printf("Total Tasks:     %d\n", total)
	fmt.Printf("  Open:          %d\n", total-completed)
	fmt.Printf("  Completed:     %d\n", completed)

	return nil
}

func runDB(args []string) error {
	if len(args) == 0 {
		fmt.Println("Usage: tasklist db <command> [arguments]")
		fmt.Println("\nCommands:")
		fmt.Println("  status           Show database status")
		fmt.Println("  export [path]    Write a snapshot (defaults to the snapshot path)")
		fmt.Println("  import [path]    Merge a snapshot into the database")
		return nil
	}

	command := args[0]
	subArgs := args[1:]

	switch command {
	case "status":
		return runStatus(subArgs)
	case "export":
		return runExport(subArgs)
	case "import":
		return runImport(subArgs)
	default:
		return fmt.Errorf("unknown db command: %s", command)
	}
}

func snapshotArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return cfg.SnapshotPath
}

func runExport(args []string) error {
	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer database.Close()

	ctx := context.Background()
	if err := database.Init(ctx); err != nil {
		return err
	}

	path := snapshotArg(args)
	if err := database.ExportSnapshot(ctx, path); err != nil {
		return err
	}
	fmt.Printf("✓ Exported snapshot to %s\n", path)
	return nil
}

func runImport(args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx := context.Background()
	database, err := openStore(ctx, logger)
	if err != nil {
		return err
	}
	defer database.Close()

	path := snapshotArg(args)
	if err := database.ImportSnapshot(ctx, path); err != nil {
		return err
	}
	fmt.Printf("✓ Imported snapshot from %s\n", path)
	return nil
}

func runMCP(args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	database, err := openStore(context.Background(), logger)
	if err != nil {
		return err
	}
	defer database.Close()

	s := mcp.NewServer(tasklist.NewController(database, logger))
	return mcp.Serve(s)
}

func runWeb(args []string) error {
	webFlags := flag.NewFlagSet("web", flag.ContinueOnError)
	port := webFlags.Int("port", cfg.WebPort, "Port to listen on")
	if err := webFlags.Parse(args); err != nil {
		return err
	}

	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	database, err := openStore(ctx, logger)
	if err != nil {
		return err
	}
	defer database.Close()

	srv := server.NewServer(tasklist.NewController(database, logger))

	// Ensure graceful shutdown
	go func() {
		<-ctx.Done()
		// A second interrupt kills the process.
		stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	addr := fmt.Sprintf(":%d", *port)
	logger.Info("Web server listening", zap.String("addr", addr))
	if err := srv.Start(addr); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
