package config

import "github.com/teranos/warden/errors"

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	// Server port: 0 is invalid (omit for default), negative is invalid
	if c.Server.Port != nil && *c.Server.Port == 0 {
		return errors.New("server.port cannot be 0 (omit for default port 7779)")
	}
	if c.Server.Port != nil && *c.Server.Port < 0 {
		return errors.Newf("server.port must be positive, got %d", *c.Server.Port)
	}

	// Queue size: 0 = use default, negative = invalid
	if c.Agent.QueueSize < 0 {
		return errors.Newf("agent.queue_size must be >= 0, got %d", c.Agent.QueueSize)
	}

	// Poll intervals: 0 = use default, negative = invalid
	if c.Agent.PollIntervalSeconds < 0 {
		return errors.Newf("agent.poll_interval_seconds must be >= 0, got %d", c.Agent.PollIntervalSeconds)
	}
	if c.Agent.StopTimeoutSeconds < 0 {
		return errors.Newf("agent.stop_timeout_seconds must be >= 0, got %d", c.Agent.StopTimeoutSeconds)
	}
	if c.Cloud.PollIntervalSeconds < 0 {
		return errors.Newf("cloud.poll_interval_seconds must be >= 0, got %d", c.Cloud.PollIntervalSeconds)
	}

	// Refresh attempts: 0 = no retry on 401, negative = invalid
	if c.Cloud.RefreshAttempts < 0 {
		return errors.Newf("cloud.refresh_attempts must be >= 0, got %d", c.Cloud.RefreshAttempts)
	}
	if c.Cloud.RefreshDelaySeconds < 0 {
		return errors.Newf("cloud.refresh_delay_seconds must be >= 0, got %d", c.Cloud.RefreshDelaySeconds)
	}

	// Rate cap: 0 = use default, negative = invalid
	if c.Cloud.RequestsPerSecond < 0 {
		return errors.Newf("cloud.requests_per_second must be >= 0, got %f", c.Cloud.RequestsPerSecond)
	}
	if c.Cloud.TimeoutSeconds < 0 {
		return errors.Newf("cloud.timeout_seconds must be >= 0, got %d", c.Cloud.TimeoutSeconds)
	}

	return nil
}
