package config

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tildaslashalef/plansync/internal/loggy"
)

// SettingsService manages settings stored in the database and keeps the
// in-memory Config in step with them
type SettingsService struct {
	repo   SettingsRepository
	config *Config
	logger *loggy.Logger
}

// NewSettingsService creates a new settings service
func NewSettingsService(db *sql.DB, config *Config, logger *loggy.Logger) *SettingsService {
	return NewSettingsServiceWithRepository(NewSQLSettingsRepository(db, logger), config, logger)
}

// NewSettingsServiceWithRepository creates a settings service over repo
func NewSettingsServiceWithRepository(repo SettingsRepository, config *Config, logger *loggy.Logger) *SettingsService {
	return &SettingsService{
		repo:   repo,
		config: config,
		logger: logger,
	}
}

// Get retrieves a setting by key
func (s *SettingsService) Get(ctx context.Context, key string) (string, error) {
	if !IsKnownKey(key) {
		return "", fmt.Errorf("unknown setting %q", key)
	}
	return s.repo.GetSetting(ctx, key)
}

// All returns every stored sync setting
func (s *SettingsService) All(ctx context.Context) (map[string]string, error) {
	return s.repo.GetSettings(ctx, "sync.")
}

// Set stores a setting and applies it to the config
func (s *SettingsService) Set(ctx context.Context, key, value string) error {
	if !IsKnownKey(key) {
		return fmt.Errorf("unknown setting %q", key)
	}

	if err := s.repo.SetSetting(ctx, key, value); err != nil {
		return err
	}

	s.logger.Info("Setting updated", "key", key)
	return s.Load(ctx)
}

// Unset deletes a stored setting. The environment value applies again on
// the next start.
func (s *SettingsService) Unset(ctx context.Context, key string) error {
	if !IsKnownKey(key) {
		return fmt.Errorf("unknown setting %q", key)
	}
	return s.repo.DeleteSetting(ctx, key)
}

// Load applies stored sync settings to the config and validates the result
func (s *SettingsService) Load(ctx context.Context) error {
	if err := LoadSyncSettings(ctx, s.config, s.repo); err != nil {
		return err
	}
	if err := s.config.validateSync(); err != nil {
		return fmt.Errorf("sync config: %w", err)
	}
	return nil
}
