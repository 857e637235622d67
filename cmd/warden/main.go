package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/warden/cmd/warden/commands"
	"github.com/teranos/warden/errors"
	"github.com/teranos/warden/logger"
	"github.com/teranos/warden/sym"
)

var rootCmd = &cobra.Command{
	Use:   "warden",
	Short: sym.Job + " Warden - local background job agent",
	Long: sym.Job + ` Warden - run, observe, and get notified about long computations.

The warden daemon queues submitted commands and runs them one at a time,
capturing output under ~/.warden/jobs/. Running processes report scalars
back to the daemon, which tracks their history, evaluates notification
conditions, and streams events to watchers.

Available commands:
  start      - Start the daemon in the foreground
  stop       - Ask the daemon to shut down
  submit     - Queue a command as a new job
  list       - List jobs (live registry or audit trail)
  cancel     - Cancel a job
  output     - Show where a job's output lives, optionally tail it
  updates    - Show a job's tracked scalar history
  report     - Report a scalar value from inside a job
  condition  - Manage notification conditions
  external   - Observe a process the agent does not own
  watch      - Stream job events live
  status     - Show the agent summary
  clear      - Wipe job output directories and the audit trail
  auth       - Store cloud credentials

Examples:
  warden start                          # Start the daemon
  warden submit --name train -- python train.py
  warden list                           # See queued and running jobs
  warden updates train                  # Tracked scalars for the job
  warden condition add train 'loss < 0.5'`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// The start command re-initializes with its own verbosity and
		// format; every other command stays quiet unless -v is given.
		if cmd.Name() == "start" {
			return nil
		}
		verbosity, _ := cmd.Flags().GetCount("verbose")
		return logger.InitializeWithVerbosity(false, verbosity)
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv)")
	rootCmd.PersistentFlags().Int("port", 0, "Daemon port (default: configured server.port)")

	rootCmd.AddCommand(commands.StartCmd)
	rootCmd.AddCommand(commands.StopCmd)
	rootCmd.AddCommand(commands.SubmitCmd)
	rootCmd.AddCommand(commands.ListCmd)
	rootCmd.AddCommand(commands.CancelCmd)
	rootCmd.AddCommand(commands.OutputCmd)
	rootCmd.AddCommand(commands.UpdatesCmd)
	rootCmd.AddCommand(commands.ReportCmd)
	rootCmd.AddCommand(commands.ConditionCmd)
	rootCmd.AddCommand(commands.ExternalCmd)
	rootCmd.AddCommand(commands.WatchCmd)
	rootCmd.AddCommand(commands.StatusCmd)
	rootCmd.AddCommand(commands.VersionCmd)
	rootCmd.AddCommand(commands.ClearCmd)
	rootCmd.AddCommand(commands.SorryCmd)
	rootCmd.AddCommand(commands.AuthCmd)
}

func main() {
	defer logger.Cleanup()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if hints := errors.FlattenHints(err); hints != "" {
			fmt.Fprintf(os.Stderr, "Hint: %s\n", hints)
		}
		os.Exit(1)
	}
}
