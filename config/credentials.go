package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/teranos/warden/errors"
)

// Credentials holds the cloud refresh token. Kept out of config.toml so the
// config file can be shared or committed without leaking secrets.
type Credentials struct {
	RefreshToken string `toml:"refresh_token"`
	// BaseURL optionally pins the cloud endpoint these credentials belong to
	BaseURL string `toml:"base_url,omitempty"`
}

// HasToken reports whether a refresh token is present.
func (c *Credentials) HasToken() bool {
	return c != nil && c.RefreshToken != ""
}

// LoadCredentials reads the credentials file. A missing file is not an error:
// it returns empty credentials (cloud features stay disabled).
func LoadCredentials(path string) (*Credentials, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Credentials{}, nil
		}
		return nil, errors.Wrap(err, "failed to read credentials")
	}

	var creds Credentials
	if err := toml.Unmarshal(data, &creds); err != nil {
		return nil, errors.Wrap(err, "failed to parse credentials")
	}
	return &creds, nil
}

// SaveCredentials writes the credentials file with backup rotation.
// Marks the write as our own so the watcher doesn't trigger a reload loop.
func SaveCredentials(path string, creds *Credentials) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return errors.Wrap(err, "failed to create credentials directory")
	}

	if err := createBackup(path); err != nil {
		return errors.Wrap(err, "failed to create backup")
	}

	data, err := toml.Marshal(creds)
	if err != nil {
		return errors.Wrap(err, "failed to marshal credentials")
	}

	// Mark this as our own write to prevent reload loops
	globalWatcherMu.Lock()
	if globalWatcher != nil {
		globalWatcher.MarkOwnWrite()
	}
	globalWatcherMu.Unlock()

	// Token is a secret: owner-only
	if err := os.WriteFile(path, data, 0600); err != nil {
		return errors.Wrap(err, "failed to write credentials")
	}

	return nil
}

// createBackup creates rotating backups (.back1, .back2, .back3) before modifying a file
func createBackup(path string) error {
	// Check if file exists before backing up
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil // No file to backup
	}

	// Rotate backups: .back3 -> delete, .back2 -> .back3, .back1 -> .back2, current -> .back1
	back3 := path + ".back3"
	back2 := path + ".back2"
	back1 := path + ".back1"

	// Delete oldest backup if exists
	if err := os.Remove(back3); err != nil && !os.IsNotExist(err) {
		// Log deletion failures (but don't fail the save)
		fmt.Printf("⚠️  Failed to delete old backup %s: %v\n", back3, err)
	}

	// Rotate .back2 to .back3
	if _, err := os.Stat(back2); err == nil {
		if err := os.Rename(back2, back3); err != nil {
			return errors.Wrap(err, "failed to rotate .back2 to .back3")
		}
	}

	// Rotate .back1 to .back2
	if _, err := os.Stat(back1); err == nil {
		if err := os.Rename(back1, back2); err != nil {
			return errors.Wrap(err, "failed to rotate .back1 to .back2")
		}
	}

	// Copy current to .back1
	content, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "failed to read file for backup")
	}

	if err := os.WriteFile(back1, content, 0600); err != nil {
		return errors.Wrap(err, "failed to create .back1")
	}

	return nil
}
