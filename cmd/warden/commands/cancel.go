package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teranos/warden/sym"
)

// CancelCmd stops a queued or running job
var CancelCmd = &cobra.Command{
	Use:   "cancel <job>",
	Short: sym.Job + " Cancel a job",
	Long: `Cancel a job. Queued jobs leave the queue immediately; a running job
gets SIGTERM and, after the stop timeout, SIGKILL.

The job can be named by id, by number, or by a name pattern:
  warden cancel 3
  warden cancel nightly-*
  warden cancel 8e2f41c0`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClient(cmd)
		id, err := resolveJob(cmd.Context(), c, args[0])
		if err != nil {
			return err
		}
		snap, err := c.Cancel(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("failed to cancel job: %w", err)
		}
		fmt.Printf("%s Job #%d %s: %s\n", sym.Job, snap.Number, snap.Name, snap.Status)
		return nil
	},
}
