package commands

import (
	"fmt"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/warden/errors"
)

// drainWait bounds how long stop waits for the daemon to actually exit.
const drainWait = 30 * time.Second

// StopCmd asks the daemon to shut down
var StopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Ask the warden daemon to shut down",
	Long: `Ask the running daemon to shut down gracefully.

The daemon drains before exiting: the running job is cancelled, poll
loops stop, and connected watchers are closed. The command waits until
the daemon is gone; --no-wait returns as soon as the daemon acknowledges.

Example:
  warden stop`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClient(cmd)
		if err := c.Stop(cmd.Context()); err != nil {
			return fmt.Errorf("failed to stop daemon: %w", err)
		}
		if stopNoWait {
			pterm.Success.Println("Daemon stopping")
			return nil
		}

		spinner, _ := pterm.DefaultSpinner.Start("Waiting for the daemon to drain...")
		deadline := time.Now().Add(drainWait)
		for time.Now().Before(deadline) {
			time.Sleep(500 * time.Millisecond)
			if _, err := c.Status(cmd.Context()); errors.Is(err, errors.ErrAgentNotRunning) {
				spinner.Success("Daemon stopped")
				return nil
			}
		}
		spinner.Warning("Daemon still draining; it will exit on its own")
		return nil
	},
}

var stopNoWait bool

func init() {
	StopCmd.Flags().BoolVar(&stopNoWait, "no-wait", false, "Return once the daemon acknowledges, without waiting for exit")
}
