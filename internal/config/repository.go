package config

import (
	"context"
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/tildaslashalef/plansync/internal/loggy"
	"github.com/tildaslashalef/plansync/internal/ulid"
)

// Setting keys persisted in the settings table
const (
	KeyBranch      = "sync.branch"
	KeyRemote      = "sync.remote"
	KeyAuthorName  = "sync.author_name"
	KeyAuthorEmail = "sync.author_email"
	KeyGitUsername = "sync.git_username"
	KeyGitToken    = "sync.git_token"
)

// KnownKeys lists the settings the config command accepts
var KnownKeys = []string{KeyBranch, KeyRemote, KeyAuthorName, KeyAuthorEmail, KeyGitUsername, KeyGitToken}

// IsKnownKey reports whether key is a setting the application reads
func IsKnownKey(key string) bool {
	for _, k := range KnownKeys {
		if k == key {
			return true
		}
	}
	return false
}

// SettingsRepository defines operations for managing settings in the database
type SettingsRepository interface {
	// GetSetting retrieves a setting by key, returning "" when it is not set
	GetSetting(ctx context.Context, key string) (string, error)

	// GetSettings retrieves all settings whose key starts with prefix
	GetSettings(ctx context.Context, prefix string) (map[string]string, error)

	// SetSetting inserts or replaces a setting value
	SetSetting(ctx context.Context, key, value string) error

	// DeleteSetting deletes a setting
	DeleteSetting(ctx context.Context, key string) error
}

// SQLSettingsRepository implements SettingsRepository using a SQL database
type SQLSettingsRepository struct {
	db     *sql.DB
	logger *loggy.Logger
}

// NewSQLSettingsRepository creates a new SQL settings repository
func NewSQLSettingsRepository(db *sql.DB, logger *loggy.Logger) *SQLSettingsRepository {
	return &SQLSettingsRepository{
		db:     db,
		logger: logger,
	}
}

// GetSetting retrieves a setting by key
func (r *SQLSettingsRepository) GetSetting(ctx context.Context, key string) (string, error) {
	query, args, err := squirrel.Select("value").
		From("settings").
		Where(squirrel.Eq{"key": key}).
		Limit(1).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("building get setting query: %w", err)
	}

	var value string
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("executing get setting query: %w", err)
	}

	if key == KeyGitToken {
		return deobfuscateToken(value)
	}
	return value, nil
}

// GetSettings retrieves multiple settings by prefix
func (r *SQLSettingsRepository) GetSettings(ctx context.Context, prefix string) (map[string]string, error) {
	query, args, err := squirrel.Select("key", "value").
		From("settings").
		Where(squirrel.Like{"key": prefix + "%"}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building get settings query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("executing get settings query: %w", err)
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, fmt.Errorf("scanning setting row: %w", err)
		}

		if key == KeyGitToken {
			value, err = deobfuscateToken(value)
			if err != nil {
				r.logger.Warn("Failed to deobfuscate token", "error", err)
				continue
			}
		}

		settings[key] = value
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating setting rows: %w", err)
	}

	return settings, nil
}

// SetSetting inserts or replaces a setting value
func (r *SQLSettingsRepository) SetSetting(ctx context.Context, key, value string) error {
	storeValue := value
	if key == KeyGitToken && value != "" {
		storeValue = obfuscateToken(value)
	}

	now := time.Now().UTC()
	query, args, err := squirrel.Insert("settings").
		Columns("id", "key", "value", "created_at", "updated_at").
		Values(ulid.SettingID(), key, storeValue, now, now).
		Suffix("ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("building set setting query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("executing set setting query: %w", err)
	}

	return nil
}

// DeleteSetting deletes a setting
func (r *SQLSettingsRepository) DeleteSetting(ctx context.Context, key string) error {
	query, args, err := squirrel.Delete("settings").
		Where(squirrel.Eq{"key": key}).
		ToSql()
	if err != nil {
		return fmt.Errorf("building delete setting query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("executing delete setting query: %w", err)
	}

	return nil
}

// LoadSyncSettings applies stored sync settings on top of cfg.
// Empty values leave the environment configuration in place.
func LoadSyncSettings(ctx context.Context, cfg *Config, repo SettingsRepository) error {
	settings, err := repo.GetSettings(ctx, "sync.")
	if err != nil {
		return fmt.Errorf("loading sync settings: %w", err)
	}

	apply := func(key string, dst *string) {
		if v, ok := settings[key]; ok && v != "" {
			*dst = v
		}
	}

	apply(KeyBranch, &cfg.Sync.Branch)
	apply(KeyRemote, &cfg.Sync.Remote)
	apply(KeyAuthorName, &cfg.Git.AuthorName)
	apply(KeyAuthorEmail, &cfg.Git.AuthorEmail)
	apply(KeyGitUsername, &cfg.Git.Username)
	apply(KeyGitToken, &cfg.Git.Token)

	return nil
}

// obfuscateToken keeps tokens from being stored in plain text.
// It is not encryption.
func obfuscateToken(token string) string {
	runes := []rune(token)
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return "OBFS:" + base64.StdEncoding.EncodeToString([]byte(string(runes)))
}

// deobfuscateToken reverses obfuscateToken; plain values pass through
func deobfuscateToken(value string) (string, error) {
	encoded, ok := strings.CutPrefix(value, "OBFS:")
	if !ok {
		return value, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decoding obfuscated token: %w", err)
	}

	runes := []rune(string(decoded))
	for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
		runes[i], runes[j] = runes[j], runes[i]
	}
	return string(runes), nil
}
