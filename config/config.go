package config

// Config represents the core warden configuration
type Config struct {
	Agent    AgentConfig    `mapstructure:"agent"`
	Server   ServerConfig   `mapstructure:"server"`
	Cloud    CloudConfig    `mapstructure:"cloud"`
	Database DatabaseConfig `mapstructure:"database"`
	Notify   NotifyConfig   `mapstructure:"notify"`
}

// AgentConfig configures the job agent core
type AgentConfig struct {
	BaseDir             string `mapstructure:"base_dir"`              // Working root: "" = ~/.warden
	QueueSize           int    `mapstructure:"queue_size"`            // Submit queue capacity (default: 64)
	PollIntervalSeconds int    `mapstructure:"poll_interval_seconds"` // Default scalar-poll interval per job (default: 3600)
	StopTimeoutSeconds  int    `mapstructure:"stop_timeout_seconds"`  // Max wait for the worker to drain on shutdown (default: 30)
	ConditionsPath      string `mapstructure:"conditions_path"`       // Declarative conditions file: "" = <base_dir>/conditions.yaml
}

// ServerConfig configures the warden daemon's localhost HTTP surface
type ServerConfig struct {
	Port           *int     `mapstructure:"port"` // Daemon port: nil = default 7779, 0 is invalid (omit for default)
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	LogTheme       string   `mapstructure:"log_theme"` // Color theme: gruvbox, everforest
}

// Server port constants
const (
	DefaultServerPort = 7779 // Localhost daemon port (above privileged range)
)

// CloudConfig configures the cloud notification channel
type CloudConfig struct {
	BaseURL             string  `mapstructure:"base_url"`               // GraphQL endpoint (empty = cloud disabled unless credentials exist)
	PollIntervalSeconds int     `mapstructure:"poll_interval_seconds"`  // Remote task poll cadence (default: 10)
	RefreshAttempts     int     `mapstructure:"refresh_attempts"`       // Token refresh retries on 401 (default: 3)
	RefreshDelaySeconds int     `mapstructure:"refresh_delay_seconds"`  // Linear backoff base between refreshes (default: 1)
	RequestsPerSecond   float64 `mapstructure:"requests_per_second"`    // Outbound request rate cap (default: 5)
	TimeoutSeconds      int     `mapstructure:"timeout_seconds"`        // Per-request timeout (default: 30)
	TokenExpirySkewSecs int     `mapstructure:"token_expiry_skew_secs"` // Refresh this long before JWT exp (default: 60)
}

// DatabaseConfig configures the SQLite audit database
type DatabaseConfig struct {
	Path string `mapstructure:"path"` // "" = <base_dir>/warden.db
}

// NotifyConfig configures notification sinks
type NotifyConfig struct {
	CloudEnabled   bool `mapstructure:"cloud_enabled"`   // Register the cloud notifier when credentials exist (default: true)
	LoggingEnabled bool `mapstructure:"logging_enabled"` // Register the local logging notifier (default: true)
}

// File system constants
const (
	DefaultDirPermissions  = 0755 // Standard directory permissions (rwxr-xr-x)
	DefaultFilePermissions = 0644 // Standard file permissions (rw-r--r--)
)
