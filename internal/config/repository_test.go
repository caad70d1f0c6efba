package config

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tildaslashalef/plansync/internal/loggy"
)

func newMockSettings(t *testing.T) (*SQLSettingsRepository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	return NewSQLSettingsRepository(db, loggy.NewNoopLogger()), mock
}

func TestGetSetting(t *testing.T) {
	repo, mock := newMockSettings(t)
	query := regexp.QuoteMeta("SELECT value FROM settings WHERE key = ? LIMIT 1")

	mock.ExpectQuery(query).WithArgs(KeyBranch).
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow("planner"))
	mock.ExpectQuery(query).WithArgs(KeyRemote).
		WillReturnRows(sqlmock.NewRows([]string{"value"}))

	value, err := repo.GetSetting(context.Background(), KeyBranch)
	require.NoError(t, err)
	assert.Equal(t, "planner", value)

	value, err = repo.GetSetting(context.Background(), KeyRemote)
	require.NoError(t, err)
	assert.Equal(t, "", value, "missing settings read as empty")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetSettingObfuscatesToken(t *testing.T) {
	repo, mock := newMockSettings(t)

	mock.ExpectExec(regexp.QuoteMeta(
		"INSERT INTO settings (id,key,value,created_at,updated_at) VALUES (?,?,?,?,?) ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at")).
		WithArgs(sqlmock.AnyArg(), KeyGitToken, obfuscateToken("ghp_secret"), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, repo.SetSetting(context.Background(), KeyGitToken, "ghp_secret"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetSettingsAndLoad(t *testing.T) {
	repo, mock := newMockSettings(t)

	rows := sqlmock.NewRows([]string{"key", "value"}).
		AddRow(KeyBranch, "planner").
		AddRow(KeyRemote, "").
		AddRow(KeyGitToken, obfuscateToken("ghp_secret")).
		AddRow(KeyGitUsername, "me")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT key, value FROM settings WHERE key LIKE ?")).
		WithArgs("sync.%").
		WillReturnRows(rows)

	cfg := &Config{Sync: SyncConfig{Branch: "main", Remote: "origin"}}
	require.NoError(t, LoadSyncSettings(context.Background(), cfg, repo))

	assert.Equal(t, "planner", cfg.Sync.Branch)
	assert.Equal(t, "origin", cfg.Sync.Remote, "empty stored values keep the environment value")
	assert.Equal(t, "ghp_secret", cfg.Git.Token)
	assert.Equal(t, "me", cfg.Git.Username)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteSetting(t *testing.T) {
	repo, mock := newMockSettings(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM settings WHERE key = ?")).
		WithArgs(KeyRemote).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.DeleteSetting(context.Background(), KeyRemote))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTokenObfuscation(t *testing.T) {
	obfuscated := obfuscateToken("ghp_secret")
	assert.NotContains(t, obfuscated, "ghp_secret")

	plain, err := deobfuscateToken(obfuscated)
	require.NoError(t, err)
	assert.Equal(t, "ghp_secret", plain)

	plain, err = deobfuscateToken("not-obfuscated")
	require.NoError(t, err)
	assert.Equal(t, "not-obfuscated", plain)

	_, err = deobfuscateToken("OBFS:%%%")
	assert.Error(t, err)
}

func TestSettingsServiceRejectsUnknownKeys(t *testing.T) {
	repo, mock := newMockSettings(t)
	svc := NewSettingsServiceWithRepository(repo, &Config{}, loggy.NewNoopLogger())

	assert.Error(t, svc.Set(context.Background(), "llm.model", "x"))
	_, err := svc.Get(context.Background(), "sync.server_url")
	assert.Error(t, err)
	assert.Error(t, svc.Unset(context.Background(), "nope"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettingsServiceSetReloads(t *testing.T) {
	repo, mock := newMockSettings(t)
	cfg := validConfig(t)
	svc := NewSettingsServiceWithRepository(repo, cfg, loggy.NewNoopLogger())

	mock.ExpectExec("INSERT INTO settings").
		WithArgs(sqlmock.AnyArg(), KeyRemote, "backup", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("SELECT key, value FROM settings").
		WillReturnRows(sqlmock.NewRows([]string{"key", "value"}).AddRow(KeyRemote, "backup"))

	require.NoError(t, svc.Set(context.Background(), KeyRemote, "backup"))
	assert.Equal(t, "backup", cfg.Sync.Remote)
	assert.NoError(t, mock.ExpectationsWereMet())
}
