package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Agent defaults
	v.SetDefault("agent.queue_size", 64)
	v.SetDefault("agent.poll_interval_seconds", 3600) // Hourly scalar poll unless a job overrides
	v.SetDefault("agent.stop_timeout_seconds", 30)

	// Server configuration defaults
	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("server.allowed_origins", []string{
		"http://localhost",
		"https://localhost",
		"http://127.0.0.1",
		"https://127.0.0.1",
	})
	v.SetDefault("server.log_theme", "everforest")

	// Cloud defaults
	v.SetDefault("cloud.poll_interval_seconds", 10)
	v.SetDefault("cloud.refresh_attempts", 3)
	v.SetDefault("cloud.refresh_delay_seconds", 1)
	v.SetDefault("cloud.requests_per_second", 5.0)
	v.SetDefault("cloud.timeout_seconds", 30)
	v.SetDefault("cloud.token_expiry_skew_secs", 60)

	// Notification sink defaults
	v.SetDefault("notify.cloud_enabled", true)
	v.SetDefault("notify.logging_enabled", true)
}

// BindSensitiveEnvVars explicitly binds sensitive configuration to environment variables
func BindSensitiveEnvVars(v *viper.Viper) {
	// Cloud endpoint and database path
	v.BindEnv("cloud.base_url", "WARDEN_CLOUD_BASE_URL")
	v.BindEnv("database.path", "WARDEN_DATABASE_PATH")

	// Agent working root (also honored directly by BaseDir for pre-config paths)
	v.BindEnv("agent.base_dir", "WARDEN_BASE_DIR")
}

// GetServerPort returns the configured daemon port
// Returns server.port from config, or DefaultServerPort (7779) if not configured
func GetServerPort() int {
	cfg, err := Load()
	if err != nil || cfg.Server.Port == nil || *cfg.Server.Port == 0 {
		return DefaultServerPort
	}
	return *cfg.Server.Port
}

// ServerPort returns the daemon port with the default applied
func (c *Config) ServerPort() int {
	if c.Server.Port == nil || *c.Server.Port == 0 {
		return DefaultServerPort
	}
	return *c.Server.Port
}

// GetServerAllowedOrigins returns the allowed CORS origins
func (c *Config) GetServerAllowedOrigins() []string {
	if len(c.Server.AllowedOrigins) == 0 {
		return []string{
			"http://localhost",
			"https://localhost",
			"http://127.0.0.1",
			"https://127.0.0.1",
		}
	}
	return c.Server.AllowedOrigins
}

// GetServerLogTheme returns the log theme (default: everforest)
func (c *Config) GetServerLogTheme() string {
	if c.Server.LogTheme == "" {
		return "everforest"
	}
	return c.Server.LogTheme
}

// DefaultPollInterval returns the default per-job scalar poll interval
func (c *Config) DefaultPollInterval() time.Duration {
	if c.Agent.PollIntervalSeconds <= 0 {
		return time.Hour
	}
	return time.Duration(c.Agent.PollIntervalSeconds) * time.Second
}

// QueueSize returns the submit queue capacity with the default applied
func (c *Config) QueueSize() int {
	if c.Agent.QueueSize <= 0 {
		return 64
	}
	return c.Agent.QueueSize
}

// StopTimeout returns the graceful-shutdown drain cap
func (c *Config) StopTimeout() time.Duration {
	if c.Agent.StopTimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Agent.StopTimeoutSeconds) * time.Second
}

// CloudPollInterval returns the remote-task poll cadence
func (c *Config) CloudPollInterval() time.Duration {
	if c.Cloud.PollIntervalSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Cloud.PollIntervalSeconds) * time.Second
}

// CloudTimeout returns the per-request cloud timeout
func (c *Config) CloudTimeout() time.Duration {
	if c.Cloud.TimeoutSeconds <= 0 {
		return 30 * time.Second
	}
	return time.Duration(c.Cloud.TimeoutSeconds) * time.Second
}

// RefreshDelay returns the linear backoff base between token refreshes
func (c *Config) RefreshDelay() time.Duration {
	if c.Cloud.RefreshDelaySeconds <= 0 {
		return time.Second
	}
	return time.Duration(c.Cloud.RefreshDelaySeconds) * time.Second
}

// TokenExpirySkew returns how early a JWT is treated as expired
func (c *Config) TokenExpirySkew() time.Duration {
	if c.Cloud.TokenExpirySkewSecs <= 0 {
		return time.Minute
	}
	return time.Duration(c.Cloud.TokenExpirySkewSecs) * time.Second
}

// String returns a string representation of the config
func (c *Config) String() string {
	return fmt.Sprintf("Config{BaseDir: %s, Server: {Port: %d}, Cloud: {PollInterval: %s}}",
		c.AgentBaseDir(), c.ServerPort(), c.CloudPollInterval())
}
