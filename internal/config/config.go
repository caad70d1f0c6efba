package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Config represents the complete application configuration
type Config struct {
	Sync      SyncConfig
	Git       GitConfig
	Watch     WatchConfig
	GitHub    GitHubConfig
	Database  DatabaseConfig
	Logging   LoggingConfig
	configDir string // Internal: Directory where config was loaded from
}

// SyncConfig configures the sync engine
type SyncConfig struct {
	RepoPath        string        // Working directory kept in sync
	Branch          string        // Branch to commit to and push
	Remote          string        // Remote to pull from and push to
	AutoInit        bool          // Create the repository when the working directory has none
	Debounce        time.Duration // Quiet period before a batch is committed
	PushMaxAttempts int           // Total push attempts including the first
	PushBaseDelay   time.Duration // Delay before the second push attempt, doubled each time
	HistoryLimit    int           // History entries kept in memory and on disk
	HistoryPersist  bool          // Store history in the database
}

// GitConfig configures the git backend
type GitConfig struct {
	Binary      string        // git executable
	Timeout     time.Duration // Upper bound for one git invocation
	AuthorName  string        // Commit identity override
	AuthorEmail string
	Username    string // HTTPS username for fetch and push
	Token       string // HTTPS token for fetch and push
}

// WatchConfig configures the filesystem watcher
type WatchConfig struct {
	EventsPerSecond float64  // Sustained rate of change notifications
	Burst           int      // Notifications allowed in a burst
	Ignore          []string // Path segments whose events are dropped
}

// GitHubConfig configures remote provisioning on GitHub. The API token is
// shared with Git.Token.
type GitHubConfig struct {
	APIURL         string        // API base URL, override for GitHub Enterprise
	RequestTimeout time.Duration // Timeout for GitHub API requests
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	Path            string        // Path to the SQLite database file
	JournalMode     string        // Journal mode (WAL recommended)
	SynchronousMode string        // Synchronous mode
	BusyTimeout     int           // Busy timeout in milliseconds
	CacheSize       int           // Cache size in KiB
	ForeignKeys     bool          // Whether to enforce foreign key constraints
	ConnMaxLife     time.Duration // Maximum connection lifetime
	QueryTimeout    time.Duration // Query timeout
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level      string // debug, info, warn, error
	Format     string // text or json
	Output     string // stdout, stderr, or file path
	AddSource  bool   // Include source code position in logs
	TimeFormat string // Time format for logs (empty uses RFC3339)
	MaxSizeMB  int    // Rotate file output after this many megabytes
	MaxBackups int    // Rotated files to keep
	MaxAgeDays int    // Days to keep rotated files
}

// New returns a new empty Config
func New() *Config {
	return &Config{}
}

// ConfigDir returns the directory the configuration was loaded from
func (c *Config) ConfigDir() string {
	return c.configDir
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := c.validateSync(); err != nil {
		return fmt.Errorf("sync config: %w", err)
	}

	if err := c.validateGit(); err != nil {
		return fmt.Errorf("git config: %w", err)
	}

	if err := c.validateWatch(); err != nil {
		return fmt.Errorf("watch config: %w", err)
	}

	if err := c.validateGitHub(); err != nil {
		return fmt.Errorf("github config: %w", err)
	}

	if err := c.validateDatabase(); err != nil {
		return fmt.Errorf("database config: %w", err)
	}

	if err := c.validateLogging(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// ParseLogLevel parses a log level string to a slog.Level
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	case "none":
		// Set to a very high level that won't be triggered
		return slog.Level(9999)
	default:
		return slog.LevelInfo
	}
}

func (c *Config) validateSync() error {
	if c.Sync.RepoPath == "" {
		return fmt.Errorf("repository path cannot be empty")
	}

	if c.Sync.Branch == "" || strings.ContainsAny(c.Sync.Branch, " ~^:?*[\\") {
		return fmt.Errorf("invalid branch name: %q", c.Sync.Branch)
	}

	if c.Sync.Remote == "" || strings.ContainsAny(c.Sync.Remote, " /") {
		return fmt.Errorf("invalid remote name: %q", c.Sync.Remote)
	}

	if c.Sync.Debounce <= 0 {
		return fmt.Errorf("debounce must be positive")
	}

	if c.Sync.PushMaxAttempts <= 0 {
		return fmt.Errorf("push max attempts must be positive")
	}

	if c.Sync.PushBaseDelay <= 0 {
		return fmt.Errorf("push base delay must be positive")
	}

	if c.Sync.HistoryLimit <= 0 {
		return fmt.Errorf("history limit must be positive")
	}

	return nil
}

func (c *Config) validateGit() error {
	if c.Git.Binary == "" {
		return fmt.Errorf("git binary cannot be empty")
	}

	if c.Git.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}

	return nil
}

func (c *Config) validateWatch() error {
	if c.Watch.EventsPerSecond <= 0 {
		return fmt.Errorf("events per second must be positive")
	}

	if c.Watch.Burst <= 0 {
		return fmt.Errorf("burst must be positive")
	}

	return nil
}

func (c *Config) validateGitHub() error {
	if c.GitHub.APIURL != "" && !strings.HasPrefix(c.GitHub.APIURL, "http://") && !strings.HasPrefix(c.GitHub.APIURL, "https://") {
		return fmt.Errorf("invalid API URL: %s", c.GitHub.APIURL)
	}

	if c.GitHub.RequestTimeout <= 0 {
		return fmt.Errorf("request timeout must be positive")
	}

	return nil
}

func (c *Config) validateDatabase() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database path cannot be empty")
	}

	if c.Database.Path != ":memory:" {
		// Create the directory if it doesn't exist
		dir := filepath.Dir(c.Database.Path)
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return fmt.Errorf("failed to create directory for database: %w", err)
			}
		}

		// Check if directory is writable
		if err := checkDirectoryWritable(dir); err != nil {
			return fmt.Errorf("database directory: %w", err)
		}
	}

	if c.Database.BusyTimeout <= 0 {
		return fmt.Errorf("busy timeout must be positive")
	}

	if c.Database.ConnMaxLife <= 0 {
		return fmt.Errorf("connection max life must be positive")
	}

	if c.Database.QueryTimeout <= 0 {
		return fmt.Errorf("query timeout must be positive")
	}

	return nil
}

func (c *Config) validateLogging() error {
	// Validate logging level
	level := strings.ToLower(c.Logging.Level)
	if level != "debug" && level != "info" && level != "warn" && level != "error" && level != "none" {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	// Validate format
	format := strings.ToLower(c.Logging.Format)
	if format != "text" && format != "json" {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	if c.Logging.MaxSizeMB < 0 || c.Logging.MaxBackups < 0 || c.Logging.MaxAgeDays < 0 {
		return fmt.Errorf("log rotation limits cannot be negative")
	}

	return nil
}

// getEnvString returns a string from the environment variable
func getEnvString(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt returns an int from the environment variable
func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// getEnvBool returns a bool from the environment variable
func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvDuration returns a time.Duration from the environment variable
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvFloat returns a float64 from the environment variable
func getEnvFloat(key string, defaultValue float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// getEnvList returns a comma separated list from the environment variable
func getEnvList(key string, defaultValue []string) []string {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}

	var items []string
	for _, item := range strings.Split(value, ",") {
		item = strings.TrimSpace(item)
		if item != "" && !strings.HasPrefix(item, "#") {
			items = append(items, item)
		}
	}
	return items
}

// getTimeFormat converts a named time format to its actual format string
func getTimeFormat(name string) string {
	switch name {
	case "RFC3339":
		return time.RFC3339
	case "RFC3339Nano":
		return time.RFC3339Nano
	case "RFC822":
		return time.RFC822
	case "RFC1123":
		return time.RFC1123
	case "Kitchen":
		return time.Kitchen
	case "Stamp":
		return time.Stamp
	case "StampMilli":
		return time.StampMilli
	case "DateTime":
		return "2006-01-02 15:04:05"
	case "DateTimeMS":
		return "2006-01-02 15:04:05.000"
	case "Date":
		return "2006-01-02"
	case "Time":
		return "15:04:05"
	default:
		return name
	}
}

// checkDirectoryWritable tests if a directory is writable
func checkDirectoryWritable(dir string) error {
	// Create a temporary file to test write permissions
	testFile := filepath.Join(dir, fmt.Sprintf("test_write_%d", time.Now().UnixNano()))
	f, err := os.Create(testFile)
	if err != nil {
		return fmt.Errorf("directory not writable: %w", err)
	}

	// Clean up
	f.Close()
	os.Remove(testFile)

	return nil
}
