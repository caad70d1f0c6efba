package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

// DefaultConfigDir returns ~/.plansync
func DefaultConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".plansync"), nil
}

// LoadFromEnv loads configuration from environment variables
// Parameters:
// - configDir: Directory containing config files (or empty for default)
// - configFilePath: Path to .env file (or empty for default)
func LoadFromEnv(configDir string, configFilePath string) (*Config, error) {
	cfg := New()

	if configDir == "" {
		dir, err := DefaultConfigDir()
		if err != nil {
			return nil, err
		}
		configDir = dir

		if err := os.MkdirAll(configDir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	cfg.configDir = configDir

	// Default database and log paths are in the config directory
	defaultDBPath := filepath.Join(configDir, "plansync.db")
	defaultLogPath := filepath.Join(configDir, "plansync.log")

	// Use provided config file path or default
	if configFilePath == "" {
		configFilePath = filepath.Join(configDir, ".env")
	}

	// Check if ENV_FILE_PATH is set to load from a custom .env file
	envFilePath := getEnvString("ENV_FILE_PATH", "")
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			return nil, fmt.Errorf("failed to load env file from %s: %w", envFilePath, err)
		}
	} else {
		// Try to load from config directory first
		if err := godotenv.Load(configFilePath); err != nil {
			// Then try current directory as fallback
			_ = godotenv.Load() // Ignore errors if file doesn't exist
		}
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	repoPath, err := filepath.Abs(getEnvString("PLANSYNC_REPO_PATH", cwd))
	if err != nil {
		return nil, fmt.Errorf("resolving repository path: %w", err)
	}

	// Sync Configuration
	cfg.Sync = SyncConfig{
		RepoPath:        repoPath,
		Branch:          getEnvString("PLANSYNC_BRANCH", "main"),
		Remote:          getEnvString("PLANSYNC_REMOTE", "origin"),
		AutoInit:        getEnvBool("PLANSYNC_AUTO_INIT", true),
		Debounce:        getEnvDuration("PLANSYNC_DEBOUNCE", 30*time.Second),
		PushMaxAttempts: getEnvInt("PLANSYNC_PUSH_MAX_ATTEMPTS", 5),
		PushBaseDelay:   getEnvDuration("PLANSYNC_PUSH_BASE_DELAY", time.Second),
		HistoryLimit:    getEnvInt("PLANSYNC_HISTORY_LIMIT", 50),
		HistoryPersist:  getEnvBool("PLANSYNC_HISTORY_PERSIST", true),
	}

	// Git Configuration
	cfg.Git = GitConfig{
		Binary:      getEnvString("PLANSYNC_GIT_BINARY", "git"),
		Timeout:     getEnvDuration("PLANSYNC_GIT_TIMEOUT", 2*time.Minute),
		AuthorName:  getEnvString("PLANSYNC_AUTHOR_NAME", ""),
		AuthorEmail: getEnvString("PLANSYNC_AUTHOR_EMAIL", ""),
		Username:    getEnvString("PLANSYNC_GIT_USERNAME", ""),
		Token:       getEnvString("PLANSYNC_GIT_TOKEN", ""),
	}

	// Watch Configuration
	cfg.Watch = WatchConfig{
		EventsPerSecond: getEnvFloat("PLANSYNC_WATCH_EVENTS_PER_SECOND", 10),
		Burst:           getEnvInt("PLANSYNC_WATCH_BURST", 20),
		Ignore:          getEnvList("PLANSYNC_WATCH_IGNORE", []string{".git"}),
	}

	// GitHub Configuration
	cfg.GitHub = GitHubConfig{
		APIURL:         getEnvString("PLANSYNC_GITHUB_API_URL", "https://api.github.com"),
		RequestTimeout: getEnvDuration("PLANSYNC_GITHUB_TIMEOUT", 30*time.Second),
	}

	// Database Configuration
	cfg.Database = DatabaseConfig{
		Path:            getEnvString("PLANSYNC_DB_PATH", defaultDBPath),
		BusyTimeout:     getEnvInt("PLANSYNC_DB_BUSY_TIMEOUT", 5000),
		JournalMode:     getEnvString("PLANSYNC_DB_JOURNAL_MODE", "WAL"),
		SynchronousMode: getEnvString("PLANSYNC_DB_SYNCHRONOUS_MODE", "NORMAL"),
		CacheSize:       getEnvInt("PLANSYNC_DB_CACHE_SIZE", -16000), // ~16MB
		ForeignKeys:     getEnvBool("PLANSYNC_DB_FOREIGN_KEYS", true),
		ConnMaxLife:     getEnvDuration("PLANSYNC_DB_CONN_MAX_LIFE", 5*time.Minute),
		QueryTimeout:    getEnvDuration("PLANSYNC_DB_QUERY_TIMEOUT", 30*time.Second),
	}

	// Logging Configuration
	cfg.Logging = LoggingConfig{
		Level:      getEnvString("PLANSYNC_LOG_LEVEL", "info"),
		Format:     getEnvString("PLANSYNC_LOG_FORMAT", "text"),
		Output:     getEnvString("PLANSYNC_LOG_OUTPUT", defaultLogPath),
		AddSource:  getEnvBool("PLANSYNC_LOG_ADD_SOURCE", true),
		TimeFormat: getTimeFormat(getEnvString("PLANSYNC_LOG_TIME_FORMAT", "RFC3339")),
		MaxSizeMB:  getEnvInt("PLANSYNC_LOG_MAX_SIZE_MB", 10),
		MaxBackups: getEnvInt("PLANSYNC_LOG_MAX_BACKUPS", 3),
		MaxAgeDays: getEnvInt("PLANSYNC_LOG_MAX_AGE_DAYS", 28),
	}

	// Validate the configuration
	return cfg, cfg.Validate()
}
