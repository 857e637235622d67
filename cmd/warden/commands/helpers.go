package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/teranos/warden/client"
	"github.com/teranos/warden/config"
)

// newClient builds a daemon client honoring --port, then the config file,
// then the built-in default.
func newClient(cmd *cobra.Command) *client.Client {
	port, _ := cmd.Flags().GetInt("port")
	if port == 0 {
		port = config.GetServerPort()
	}
	return client.New(client.Options{Port: port})
}

// resolveJob turns a job query (UUID, number, or name pattern) into a job id.
func resolveJob(ctx context.Context, c *client.Client, query string) (string, error) {
	id, err := c.Find(ctx, query)
	if err != nil {
		return "", fmt.Errorf("failed to resolve job %q: %w", query, err)
	}
	return id, nil
}

// truncate shortens s for table display
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}

// shortID trims a UUID to its first segment for table display
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// formatTime renders a timestamp for table display
func formatTime(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04:05")
}
