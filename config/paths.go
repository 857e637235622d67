package config

import (
	"os"
	"path/filepath"
)

// BaseDir returns the warden working root.
// WARDEN_BASE_DIR overrides for tests and dev setups; otherwise ~/.warden.
func BaseDir() string {
	if dir := os.Getenv("WARDEN_BASE_DIR"); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		// Degenerate fallback: relative dir in cwd
		return ".warden"
	}
	return filepath.Join(home, ".warden")
}

// JobsDir returns the directory holding per-job output directories.
func JobsDir() string {
	return filepath.Join(BaseDir(), "jobs")
}

// JobDir returns the output directory for a single job.
func JobDir(jobID string) string {
	return filepath.Join(JobsDir(), jobID)
}

// CredentialsPath returns the path of the credentials file.
func CredentialsPath() string {
	return filepath.Join(BaseDir(), "credentials.toml")
}

// EnsureBaseDir creates the warden base directory tree if missing.
func EnsureBaseDir() error {
	if err := os.MkdirAll(JobsDir(), DefaultDirPermissions); err != nil {
		return err
	}
	return nil
}

// GetDatabasePath returns the configured database path
func GetDatabasePath() (string, error) {
	// Check for DB_PATH environment variable first (for dev mode override)
	if dbPath := os.Getenv("DB_PATH"); dbPath != "" {
		return dbPath, nil
	}

	config, err := Load()
	if err != nil {
		return "", err
	}
	return config.DatabasePath(), nil
}

// DatabasePath returns the audit database path with the base-dir default applied
func (c *Config) DatabasePath() string {
	if c.Database.Path == "" {
		return filepath.Join(c.AgentBaseDir(), "warden.db")
	}
	return c.Database.Path
}

// AgentBaseDir returns the working root with the default applied
func (c *Config) AgentBaseDir() string {
	if c.Agent.BaseDir == "" {
		return BaseDir()
	}
	return c.Agent.BaseDir
}

// ConditionsPath returns the declarative conditions file path with the default applied
func (c *Config) ConditionsPath() string {
	if c.Agent.ConditionsPath == "" {
		return filepath.Join(c.AgentBaseDir(), "conditions.yaml")
	}
	return c.Agent.ConditionsPath
}
