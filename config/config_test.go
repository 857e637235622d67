package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func TestLoad_Defaults(t *testing.T) {
	// Create isolated viper instance without loading user/system config
	v := viper.New()
	SetDefaults(v)

	// Load config from isolated viper
	cfg, err := LoadWithViper(v)
	if err != nil {
		t.Fatalf("LoadWithViper() failed: %v", err)
	}

	// Check default values are applied
	if cfg.Server.Port == nil || *cfg.Server.Port != DefaultServerPort {
		t.Errorf("expected default port %d, got %v", DefaultServerPort, cfg.Server.Port)
	}

	if cfg.Agent.QueueSize != 64 {
		t.Errorf("expected default queue size 64, got %d", cfg.Agent.QueueSize)
	}

	if cfg.Agent.PollIntervalSeconds != 3600 {
		t.Errorf("expected default poll interval 3600, got %d", cfg.Agent.PollIntervalSeconds)
	}

	if cfg.Cloud.PollIntervalSeconds != 10 {
		t.Errorf("expected default cloud poll interval 10, got %d", cfg.Cloud.PollIntervalSeconds)
	}

	if cfg.Cloud.RefreshAttempts != 3 {
		t.Errorf("expected default refresh attempts 3, got %d", cfg.Cloud.RefreshAttempts)
	}

	if !cfg.Notify.CloudEnabled || !cfg.Notify.LoggingEnabled {
		t.Error("expected both notification sinks enabled by default")
	}
}

func TestValidate_ZeroValues(t *testing.T) {
	zero := 0
	negative := -1

	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:    "empty config is valid",
			config:  Config{},
			wantErr: false,
		},
		{
			name: "zero port is invalid (omit for default)",
			config: Config{
				Server: ServerConfig{Port: &zero},
			},
			wantErr: true,
		},
		{
			name: "negative port is invalid",
			config: Config{
				Server: ServerConfig{Port: &negative},
			},
			wantErr: true,
		},
		{
			name: "zero queue size is valid (use default)",
			config: Config{
				Agent: AgentConfig{QueueSize: 0},
			},
			wantErr: false,
		},
		{
			name: "negative queue size is invalid",
			config: Config{
				Agent: AgentConfig{QueueSize: -1},
			},
			wantErr: true,
		},
		{
			name: "negative poll interval is invalid",
			config: Config{
				Agent: AgentConfig{PollIntervalSeconds: -1},
			},
			wantErr: true,
		},
		{
			name: "zero refresh attempts is valid (no retry)",
			config: Config{
				Cloud: CloudConfig{RefreshAttempts: 0},
			},
			wantErr: false,
		},
		{
			name: "negative refresh attempts is invalid",
			config: Config{
				Cloud: CloudConfig{RefreshAttempts: -1},
			},
			wantErr: true,
		},
		{
			name: "negative rate cap is invalid",
			config: Config{
				Cloud: CloudConfig{RequestsPerSecond: -0.5},
			},
			wantErr: true,
		},
		{
			name: "empty database path is valid",
			config: Config{
				Database: DatabaseConfig{Path: ""},
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSetDefaults(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	// Verify critical defaults are set
	tests := []struct {
		key      string
		expected interface{}
	}{
		{"server.port", DefaultServerPort},
		{"server.log_theme", "everforest"},
		{"agent.queue_size", 64},
		{"agent.poll_interval_seconds", 3600},
		{"agent.stop_timeout_seconds", 30},
		{"cloud.poll_interval_seconds", 10},
		{"cloud.refresh_attempts", 3},
		{"cloud.refresh_delay_seconds", 1},
		{"notify.cloud_enabled", true},
		{"notify.logging_enabled", true},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got := v.Get(tt.key)
			if got != tt.expected {
				t.Errorf("default %s = %v, want %v", tt.key, got, tt.expected)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.toml")

	content := `
[server]
port = 8800

[agent]
poll_interval_seconds = 120

[cloud]
base_url = "https://cloud.example.com/graphql"
refresh_attempts = 5
`
	if err := os.WriteFile(configPath, []byte(content), DefaultFilePermissions); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile() failed: %v", err)
	}

	if cfg.Server.Port == nil || *cfg.Server.Port != 8800 {
		t.Errorf("expected port 8800, got %v", cfg.Server.Port)
	}
	if cfg.Agent.PollIntervalSeconds != 120 {
		t.Errorf("expected poll interval 120, got %d", cfg.Agent.PollIntervalSeconds)
	}
	if cfg.Cloud.BaseURL != "https://cloud.example.com/graphql" {
		t.Errorf("unexpected cloud base URL %q", cfg.Cloud.BaseURL)
	}
	if cfg.Cloud.RefreshAttempts != 5 {
		t.Errorf("expected refresh attempts 5, got %d", cfg.Cloud.RefreshAttempts)
	}

	// Defaults still fill the gaps
	if cfg.Cloud.PollIntervalSeconds != 10 {
		t.Errorf("expected default cloud poll interval 10, got %d", cfg.Cloud.PollIntervalSeconds)
	}
}

func TestFindProjectConfig(t *testing.T) {
	tmpDir := t.TempDir()

	t.Run("finds warden.toml in parent", func(t *testing.T) {
		subDir := filepath.Join(tmpDir, "test1", "subdir")
		os.MkdirAll(subDir, DefaultDirPermissions)

		os.WriteFile(filepath.Join(tmpDir, "test1", "warden.toml"), []byte(""), DefaultFilePermissions)

		oldWd, _ := os.Getwd()
		defer os.Chdir(oldWd)
		os.Chdir(subDir)

		result := findProjectConfig()
		if result == "" {
			t.Error("expected to find config file")
		}
		if filepath.Base(result) != "warden.toml" {
			t.Errorf("expected warden.toml, got %s", filepath.Base(result))
		}
	})

	t.Run("no config found", func(t *testing.T) {
		subDir := filepath.Join(tmpDir, "test2", "subdir")
		os.MkdirAll(subDir, DefaultDirPermissions)

		oldWd, _ := os.Getwd()
		defer os.Chdir(oldWd)
		os.Chdir(subDir)

		result := findProjectConfig()
		if result != "" {
			t.Errorf("expected empty string, got %s", result)
		}
	})
}

func TestDurationAccessors(t *testing.T) {
	v := viper.New()
	SetDefaults(v)

	cfg, err := LoadWithViper(v)
	if err != nil {
		t.Fatalf("LoadWithViper() failed: %v", err)
	}

	if got := cfg.DefaultPollInterval(); got != time.Hour {
		t.Errorf("DefaultPollInterval() = %s, want 1h", got)
	}
	if got := cfg.CloudPollInterval(); got != 10*time.Second {
		t.Errorf("CloudPollInterval() = %s, want 10s", got)
	}
	if got := cfg.StopTimeout(); got != 30*time.Second {
		t.Errorf("StopTimeout() = %s, want 30s", got)
	}
	if got := cfg.RefreshDelay(); got != time.Second {
		t.Errorf("RefreshDelay() = %s, want 1s", got)
	}

	// Zero values fall back to defaults rather than disabling
	empty := Config{}
	if got := empty.DefaultPollInterval(); got != time.Hour {
		t.Errorf("zero-value DefaultPollInterval() = %s, want 1h", got)
	}
	if got := empty.ServerPort(); got != DefaultServerPort {
		t.Errorf("zero-value ServerPort() = %d, want %d", got, DefaultServerPort)
	}
}

func TestBaseDirOverride(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("WARDEN_BASE_DIR", tmpDir)

	if got := BaseDir(); got != tmpDir {
		t.Errorf("BaseDir() = %q, want %q", got, tmpDir)
	}
	if got := JobDir("abc"); got != filepath.Join(tmpDir, "jobs", "abc") {
		t.Errorf("JobDir() = %q", got)
	}
	if got := CredentialsPath(); got != filepath.Join(tmpDir, "credentials.toml") {
		t.Errorf("CredentialsPath() = %q", got)
	}

	if err := EnsureBaseDir(); err != nil {
		t.Fatalf("EnsureBaseDir() failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tmpDir, "jobs")); err != nil {
		t.Errorf("jobs dir not created: %v", err)
	}
}
