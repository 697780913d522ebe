package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

const (
	// DirName is the per-project data directory.
	DirName = ".tasklist"

	DefaultDBPath       = DirName + "/tasklist.db"
	DefaultSnapshotPath = DirName + "/snapshot.jsonl"
	DefaultLogFile      = DirName + "/tasklist.log"
)

type Config struct {
	// Storage
	DBPath       string
	SnapshotPath string
	AutoSnapshot bool

	// Observability
	LogLevel  string
	LogFormat string // json or console
	LogFile   string // used while the TUI owns the terminal

	// Web
	WebPort int
}

// Load reads configuration from the environment, after loading a .env file
// from the working directory when one exists.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DBPath:       getEnv("TASKLIST_DB_PATH", DefaultDBPath),
		SnapshotPath: getEnv("TASKLIST_SNAPSHOT_PATH", DefaultSnapshotPath),
		AutoSnapshot: getEnvAsBool("TASKLIST_AUTO_SNAPSHOT", true),

		LogLevel:  getEnv("TASKLIST_LOG_LEVEL", "info"),
		LogFormat: getEnv("TASKLIST_LOG_FORMAT", "console"),
		LogFile:   getEnv("TASKLIST_LOG_FILE", DefaultLogFile),

		WebPort: getEnvAsInt("TASKLIST_WEB_PORT", 8000),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("TASKLIST_DB_PATH cannot be empty")
	}

	if c.AutoSnapshot && c.SnapshotPath == "" {
		return fmt.Errorf("TASKLIST_SNAPSHOT_PATH is required when auto snapshot is enabled")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.LogLevel)
	}

	if c.LogFormat != "json" && c.LogFormat != "console" {
		return fmt.Errorf("invalid log format: %s (valid: json, console)", c.LogFormat)
	}

	if c.WebPort < 1 || c.WebPort > 65535 {
		return fmt.Errorf("invalid port: %d", c.WebPort)
	}

	return nil
}

// SiblingPath resolves name next to the database file, so that a non-default
// db path keeps its snapshot and log alongside it.
func (c *Config) SiblingPath(name string) string {
	return filepath.Join(filepath.Dir(c.DBPath), name)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
