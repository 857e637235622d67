package commands

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teranos/warden/agent/scheduler"
	"github.com/teranos/warden/sym"
)

// WatchCmd streams job events from the daemon
var WatchCmd = &cobra.Command{
	Use:   "watch",
	Short: sym.Watch + " Stream job events live",
	Long: `Stream job events from the daemon as they happen: submissions, starts,
finishes, cancellations, and reported scalars. Runs until interrupted
or until the daemon shuts down.

Examples:
  warden watch`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		hello, events, err := newClient(cmd).Watch(ctx)
		if err != nil {
			return fmt.Errorf("failed to open event stream: %w", err)
		}
		fmt.Printf("%s Connected to warden %s (commit %s). Ctrl-C to stop.\n\n", sym.Watch, hello.Version, hello.Commit)

		for ev := range events {
			printEvent(ev)
		}
		fmt.Printf("\n%s Stream closed\n", sym.Watch)
		return nil
	},
}

func printEvent(ev scheduler.Event) {
	stamp := ev.Timestamp.Local().Format("15:04:05")
	switch ev.Type {
	case scheduler.EventScalar:
		fmt.Printf("%s  %-10s #%d %s  %s=%g\n", stamp, ev.Type, ev.Job.Number, ev.Job.Name, ev.Scalar, ev.Value)
	case scheduler.EventFinished:
		fmt.Printf("%s  %-10s #%d %s  status=%s\n", stamp, ev.Type, ev.Job.Number, ev.Job.Name, ev.Job.Status)
	default:
		fmt.Printf("%s  %-10s #%d %s\n", stamp, ev.Type, ev.Job.Number, ev.Job.Name)
	}
}
