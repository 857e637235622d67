package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teranos/warden/server"
	"github.com/teranos/warden/sym"
)

// ExternalCmd groups external-job subcommands
var ExternalCmd = &cobra.Command{
	Use:   "external",
	Short: sym.Watch + " Observe processes the agent does not own",
	Long: `Observe processes the agent does not own. An external job wraps an
already-running pid: the daemon samples it, accepts its scalar reports,
and notifies on its exit, but never starts or stops the process itself.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

// ExternalStartCmd wraps a running pid in an observed job
var ExternalStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start observing a running process",
	Long: `Start observing a running process. Only one external job can be active
at a time.

Examples:
  warden external start --pid 12345
  warden external start --pid 12345 --name notebook --poll 30`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		req := server.ExternalRequest{
			Pid:                 externalPid,
			Name:                externalName,
			PollIntervalSeconds: externalPoll,
		}
		snap, err := newClient(cmd).RegisterExternal(cmd.Context(), req)
		if err != nil {
			return fmt.Errorf("failed to register external job: %w", err)
		}
		fmt.Printf("%s Observing pid %d as job #%d: %s\n", sym.Watch, snap.Pid, snap.Number, snap.Name)
		fmt.Printf("  ID: %s\n", snap.ID)
		return nil
	},
}

// ExternalStopCmd ends an external job's observed run
var ExternalStopCmd = &cobra.Command{
	Use:   "stop <job>",
	Short: "Stop observing an external job",
	Long: `Stop observing an external job. The underlying process keeps running;
only the observation ends.

Examples:
  warden external stop notebook
  warden external stop 4`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClient(cmd)
		id, err := resolveJob(cmd.Context(), c, args[0])
		if err != nil {
			return err
		}
		if err := c.UnregisterExternal(cmd.Context(), id); err != nil {
			return fmt.Errorf("failed to unregister external job: %w", err)
		}
		fmt.Printf("%s Stopped observing %s\n", sym.Watch, args[0])
		return nil
	},
}

var (
	externalPid  int
	externalName string
	externalPoll float64
)

func init() {
	ExternalStartCmd.Flags().IntVar(&externalPid, "pid", 0, "Process id to observe (required)")
	ExternalStartCmd.Flags().StringVar(&externalName, "name", "", "Job name (default: Job #<number>)")
	ExternalStartCmd.Flags().Float64Var(&externalPoll, "poll", 0, "Scalar update interval in seconds; -1 disables (default: configured interval)")
	ExternalStartCmd.MarkFlagRequired("pid")

	ExternalCmd.AddCommand(ExternalStartCmd)
	ExternalCmd.AddCommand(ExternalStopCmd)
}
