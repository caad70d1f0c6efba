// Package app wires configuration, storage, the git backend and the sync
// engine together
package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tildaslashalef/plansync/internal/config"
	"github.com/tildaslashalef/plansync/internal/database"
	"github.com/tildaslashalef/plansync/internal/git"
	"github.com/tildaslashalef/plansync/internal/github"
	"github.com/tildaslashalef/plansync/internal/loggy"
	"github.com/tildaslashalef/plansync/internal/sync"
	"github.com/urfave/cli/v2"
)

// App represents the application instance with its dependencies
type App struct {
	Config   *config.Config
	DB       *sql.DB
	Settings *config.SettingsService
	Git      *git.Service
	GitHub   *github.Service
	Engine   *sync.Engine
	Logger   *loggy.Logger
}

// New loads configuration, opens the database and builds the sync engine.
// The repository is not touched until Start is called.
func New(ctx context.Context, version string) (*App, error) {
	cfg, err := config.LoadFromEnv("", "")
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := InitLogger(cfg); err != nil {
		return nil, err
	}

	loggy.Info("Application initializing",
		"version", version,
		"repo", cfg.Sync.RepoPath,
		"log_level", cfg.Logging.Level,
	)

	db, err := database.Open(ctx, &cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	if _, err := database.RunMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	logger := loggy.GetGlobalLogger()

	settings := config.NewSettingsService(db, cfg, logger)
	if err := settings.Load(ctx); err != nil {
		loggy.Warn("Failed to load sync settings from database", "error", err)
	}

	gitService := git.NewService(cfg.Sync.RepoPath, git.Options{
		GitBinary:   cfg.Git.Binary,
		Timeout:     cfg.Git.Timeout,
		AuthorName:  cfg.Git.AuthorName,
		AuthorEmail: cfg.Git.AuthorEmail,
		Username:    cfg.Git.Username,
		Token:       cfg.Git.Token,
	}, logger.With("component", "git"))

	githubService, err := github.NewService(cfg, logger.With("component", "github"))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize GitHub client: %w", err)
	}

	var store sync.HistoryStore
	if cfg.Sync.HistoryPersist {
		store = sync.NewSQLRepository(db, logger)
	}

	engine := sync.NewEngine(gitService, store, EngineOptions(cfg), logger.With("component", "sync"))

	loggy.Info("Application initialized successfully")
	return &App{
		Config:   cfg,
		DB:       db,
		Settings: settings,
		Git:      gitService,
		GitHub:   githubService,
		Engine:   engine,
		Logger:   logger,
	}, nil
}

// EngineOptions maps the sync configuration to engine options
func EngineOptions(cfg *config.Config) sync.Options {
	return sync.Options{
		Branch:   cfg.Sync.Branch,
		Remote:   cfg.Sync.Remote,
		Debounce: cfg.Sync.Debounce,
		Retry: sync.RetryPolicy{
			MaxAttempts: cfg.Sync.PushMaxAttempts,
			BaseDelay:   cfg.Sync.PushBaseDelay,
			Classify:    sync.IsRetryable,
		},
		HistoryLimit: cfg.Sync.HistoryLimit,
		AutoInit:     cfg.Sync.AutoInit,
		PullStrategy: git.PullMerge,
	}
}

// InitLogger initializes the logging system
func InitLogger(cfg *config.Config) error {
	err := loggy.Init(loggy.Config{
		Level:      config.ParseLogLevel(cfg.Logging.Level),
		Format:     cfg.Logging.Format,
		Output:     cfg.Logging.Output,
		AddSource:  cfg.Logging.AddSource,
		TimeFormat: cfg.Logging.TimeFormat,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAgeDays: cfg.Logging.MaxAgeDays,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	return nil
}

// Start prepares the repository and restores history
func (app *App) Start(ctx context.Context) error {
	if err := app.Engine.Initialize(ctx); err != nil {
		return fmt.Errorf("initializing repository %s: %w", app.Config.Sync.RepoPath, err)
	}
	return nil
}

// Shutdown stops the engine and closes the database
func (app *App) Shutdown() error {
	loggy.Info("Shutting down application")

	if err := app.Engine.Close(); err != nil {
		loggy.Error("Error stopping sync engine", "error", err)
	}

	if err := app.DB.Close(); err != nil {
		loggy.Error("Error closing database connection", "error", err)
		return err
	}

	return nil
}

// FromContext retrieves the App instance from the CLI context
func FromContext(c *cli.Context) (*App, error) {
	if c.App.Metadata == nil {
		return nil, fmt.Errorf("app metadata not found in context")
	}

	app, ok := c.App.Metadata["app"].(*App)
	if !ok {
		return nil, fmt.Errorf("app instance not found in context")
	}

	return app, nil
}
