package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/teranos/warden/sym"
)

// ListCmd shows the live job registry or the persisted audit trail
var ListCmd = &cobra.Command{
	Use:   "list",
	Short: sym.Job + " List jobs",
	Long: `List jobs known to the daemon. By default this is the live registry:
every job since the daemon started, in submission order.

With --all the listing comes from the audit database instead, newest
first, including jobs from previous daemon runs and their exit codes.

Examples:
  warden list
  warden list --all
  warden list --all --limit 5`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if listAll {
			return runListAudit(cmd)
		}
		return runListLive(cmd)
	},
}

var (
	listAll   bool
	listLimit int
)

func init() {
	ListCmd.Flags().BoolVar(&listAll, "all", false, "List the audit trail across daemon runs")
	ListCmd.Flags().IntVar(&listLimit, "limit", 0, "Maximum audit rows to return (default: server default)")
}

func runListLive(cmd *cobra.Command) error {
	resp, err := newClient(cmd).Jobs(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list jobs: %w", err)
	}
	if resp.Count == 0 {
		fmt.Printf("%s No jobs. Queue one with 'warden submit -- <command>'.\n", sym.Job)
		return nil
	}

	fmt.Printf("%-7s %-22s %-18s %-20s %s\n", "NUMBER", "NAME", "STATUS", "CREATED", "ID")
	for _, j := range resp.Jobs {
		fmt.Printf("%-7d %-22s %-18s %-20s %s\n",
			j.Number,
			truncate(j.Name, 22),
			string(j.Status),
			formatTime(j.CreatedAt),
			shortID(j.ID))
	}
	fmt.Printf("\nTotal: %d\n", resp.Count)
	return nil
}

func runListAudit(cmd *cobra.Command) error {
	resp, err := newClient(cmd).AuditJobs(cmd.Context(), listLimit)
	if err != nil {
		return fmt.Errorf("failed to list audit trail: %w", err)
	}
	if resp.Count == 0 {
		fmt.Printf("%s Audit trail is empty.\n", sym.DB)
		return nil
	}

	fmt.Printf("%-7s %-22s %-18s %-5s %-20s %s\n", "NUMBER", "NAME", "STATUS", "EXIT", "CREATED", "ID")
	for _, rec := range resp.Jobs {
		exit := "-"
		if rec.ExitCode != nil {
			exit = strconv.Itoa(*rec.ExitCode)
		}
		fmt.Printf("%-7d %-22s %-18s %-5s %-20s %s\n",
			rec.Number,
			truncate(rec.Name, 22),
			string(rec.Status),
			exit,
			formatTime(rec.CreatedAt),
			shortID(rec.ID))
	}
	fmt.Printf("\nTotal: %d\n", resp.Count)
	return nil
}
