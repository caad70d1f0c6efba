package config

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/tildaslashalef/plansync/internal/loggy"
)

//go:embed env.sample
var configFS embed.FS

// SetupConfigDirectory creates the config directory and writes a sample .env into it
func SetupConfigDirectory(configDir string, backupExisting bool) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return err
	}

	envPath := filepath.Join(configDir, ".env")
	if err := ExtractEmbeddedFile("env.sample", envPath, backupExisting); err != nil {
		loggy.Warn("Failed to extract sample env file", "error", err)
	}

	return nil
}

// ExtractEmbeddedFile writes an embedded file to targetPath.
// An existing file is left alone unless backupExisting is set, in which case
// it is copied to <target>.<date>.bak first.
func ExtractEmbeddedFile(embeddedPath, targetPath string, backupExisting bool) error {
	if _, err := os.Stat(targetPath); err == nil {
		if !backupExisting {
			return nil
		}

		backupPath := fmt.Sprintf("%s.%s.bak", targetPath, time.Now().Format("2006-01-02"))
		existing, err := os.ReadFile(targetPath)
		if err != nil {
			return fmt.Errorf("failed to read existing file for backup: %w", err)
		}
		if err := os.WriteFile(backupPath, existing, 0600); err != nil {
			return fmt.Errorf("failed to write backup file: %w", err)
		}
		loggy.Info("Created backup of existing file", "original", targetPath, "backup", backupPath)
	}

	data, err := configFS.ReadFile(embeddedPath)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(targetPath), 0755); err != nil {
		return err
	}

	// The env file may hold a git token
	if err := os.WriteFile(targetPath, data, 0600); err != nil {
		return err
	}

	loggy.Info("Extracted embedded file", "source", embeddedPath, "target", targetPath)
	return nil
}
