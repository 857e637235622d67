package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/teranos/warden/sym"
)

// StatusCmd shows the daemon summary
var StatusCmd = &cobra.Command{
	Use:   "status",
	Short: sym.Job + " Show daemon status",
	Long: `Show the daemon summary: version, uptime, job counts, the running job
if any, watched processes, and registered notifiers.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := newClient(cmd).Status(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to fetch status: %w", err)
		}

		uptime := time.Duration(st.UptimeSeconds * float64(time.Second)).Round(time.Second)
		running := "-"
		if st.RunningJob != nil {
			running = fmt.Sprintf("#%d %s", st.RunningJob.Number, st.RunningJob.Name)
		}
		notifiers := "none"
		if len(st.Notifiers) > 0 {
			notifiers = strings.Join(st.Notifiers, ", ")
		}

		fmt.Printf("%s Warden %s (commit %s)\n", sym.Job, st.Version, st.Commit)
		fmt.Printf("  State:      %s\n", st.State)
		fmt.Printf("  Uptime:     %s\n", uptime)
		fmt.Printf("  Jobs:       %d (%d queued)\n", st.Jobs, st.QueuedJobs)
		fmt.Printf("  Running:    %s\n", running)
		fmt.Printf("  Watched:    %d\n", st.WatchedProcesses)
		fmt.Printf("  Notifiers:  %s\n", notifiers)
		fmt.Printf("  Clients:    %d\n", st.Clients)
		if st.AuditedJobs > 0 || st.AuditedNotifications > 0 {
			fmt.Printf("  Audited:    %d jobs, %d notifications\n", st.AuditedJobs, st.AuditedNotifications)
		}
		return nil
	},
}
