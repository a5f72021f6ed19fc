package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config captures environment driven configuration values for the scheduling store server.
type Config struct {
	HTTPPort        int
	SQLitePath      string
	AssignerKeyHash string
	LogLevel        string
	ShutdownTimeout time.Duration
}

// WatcherConfig captures environment driven configuration values for the session watcher CLI.
type WatcherConfig struct {
	StoreURL              string
	AssignerKey           string
	PollInterval          time.Duration
	TickInterval          time.Duration
	FetchTimeout          time.Duration
	MaxCompletionAttempts int
	LogLevel              string
}

// LoadEnvFile loads variables from a dotenv file without overriding the
// process environment. A missing file is not an error; it reports whether a
// file was read.
func LoadEnvFile(path string) (bool, error) {
	if strings.TrimSpace(path) == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("load %s: %w", path, err)
	}
	return true, nil
}

// Load parses server configuration values from the current process environment.
//
// Optional fields fall back to defaults; missing and invalid values are
// reported together.
func Load() (Config, error) {
	cfg := Config{
		HTTPPort:        8080,
		SQLitePath:      "scheduler.db",
		LogLevel:        "info",
		ShutdownTimeout: 10 * time.Second,
	}

	var r report

	if port, ok := r.positiveInt("SCHEDULER_HTTP_PORT"); ok {
		if port > 65535 {
			r.invalid = append(r.invalid, "SCHEDULER_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}
	if path := strings.TrimSpace(os.Getenv("SCHEDULER_SQLITE_PATH")); path != "" {
		cfg.SQLitePath = path
	}
	if hash := strings.TrimSpace(os.Getenv("SCHEDULER_ASSIGNER_KEY_HASH")); hash == "" {
		r.missing = append(r.missing, "SCHEDULER_ASSIGNER_KEY_HASH")
	} else {
		cfg.AssignerKeyHash = hash
	}
	if level, ok := r.logLevel("SCHEDULER_LOG_LEVEL"); ok {
		cfg.LogLevel = level
	}
	if timeout, ok := r.positiveDuration("SCHEDULER_SHUTDOWN_TIMEOUT"); ok {
		cfg.ShutdownTimeout = timeout
	}

	if err := r.err(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadWatcher parses watcher configuration values from the current process environment.
func LoadWatcher() (WatcherConfig, error) {
	cfg := WatcherConfig{
		StoreURL:              "http://localhost:8080",
		PollInterval:          30 * time.Second,
		TickInterval:          time.Minute,
		FetchTimeout:          10 * time.Second,
		MaxCompletionAttempts: 5,
		LogLevel:              "warn",
	}

	var r report

	if raw := strings.TrimSpace(os.Getenv("SESSIONWATCH_STORE_URL")); raw != "" {
		if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
			r.invalid = append(r.invalid, "SESSIONWATCH_STORE_URL")
		} else {
			cfg.StoreURL = strings.TrimRight(raw, "/")
		}
	}
	cfg.AssignerKey = strings.TrimSpace(os.Getenv("SESSIONWATCH_ASSIGNER_KEY"))
	if d, ok := r.positiveDuration("SESSIONWATCH_POLL_INTERVAL"); ok {
		cfg.PollInterval = d
	}
	if d, ok := r.positiveDuration("SESSIONWATCH_TICK_INTERVAL"); ok {
		cfg.TickInterval = d
	}
	if d, ok := r.positiveDuration("SESSIONWATCH_FETCH_TIMEOUT"); ok {
		cfg.FetchTimeout = d
	}
	if n, ok := r.positiveInt("SESSIONWATCH_MAX_COMPLETION_ATTEMPTS"); ok {
		cfg.MaxCompletionAttempts = n
	}
	if level, ok := r.logLevel("SESSIONWATCH_LOG_LEVEL"); ok {
		cfg.LogLevel = level
	}

	if err := r.err(); err != nil {
		return WatcherConfig{}, err
	}
	return cfg, nil
}

type report struct {
	missing []string
	invalid []string
}

func (r *report) positiveInt(key string) (int, bool) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return 0, false
	}
	n, err := strconv.Atoi(value)
	if err != nil || n <= 0 {
		r.invalid = append(r.invalid, key)
		return 0, false
	}
	return n, true
}

func (r *report) positiveDuration(key string) (time.Duration, bool) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return 0, false
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		r.invalid = append(r.invalid, key)
		return 0, false
	}
	return d, true
}

func (r *report) logLevel(key string) (string, bool) {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return "", false
	}
	switch value {
	case "debug", "info", "warn", "error":
		return value, true
	}
	r.invalid = append(r.invalid, key)
	return "", false
}

func (r *report) err() error {
	if len(r.missing) > 0 {
		return fmt.Errorf("required environment variables are not set: %s", strings.Join(r.missing, ", "))
	}
	if len(r.invalid) > 0 {
		return fmt.Errorf("environment variables have invalid values: %s", strings.Join(r.invalid, ", "))
	}
	return nil
}
