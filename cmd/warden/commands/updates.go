package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/teranos/warden/sym"
)

// UpdatesCmd shows a job's tracked scalar history
var UpdatesCmd = &cobra.Command{
	Use:   "updates <job>",
	Short: sym.Track + " Show a job's tracked scalars",
	Long: `Show the scalar values a job has reported, loss curves and the like.
By default only values since the last read are shown; --all-history
prints everything recorded. With --plot the daemon renders a chart and
prints its path.

Examples:
  warden updates 3
  warden updates nightly --all-history
  warden updates 3 --names loss,accuracy --plot`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClient(cmd)
		id, err := resolveJob(cmd.Context(), c, args[0])
		if err != nil {
			return err
		}

		var names []string
		if updatesNames != "" {
			names = strings.Split(updatesNames, ",")
		}
		resp, err := c.Updates(cmd.Context(), id, names, !updatesAllHistory, updatesPlot)
		if err != nil {
			return fmt.Errorf("failed to fetch updates: %w", err)
		}

		if len(resp.Updates) == 0 {
			fmt.Printf("%s No new values. Try --all-history for the full record.\n", sym.Track)
		}

		scalars := make([]string, 0, len(resp.Updates))
		for name := range resp.Updates {
			scalars = append(scalars, name)
		}
		sort.Strings(scalars)

		for _, name := range scalars {
			fmt.Printf("%s %s\n", sym.Track, name)
			for _, entry := range resp.Updates[name] {
				fmt.Printf("  round %-6d %g\n", entry.Round, entry.Value)
			}
		}

		if resp.ImagePath != "" {
			fmt.Printf("\nPlot: %s\n", resp.ImagePath)
		}
		return nil
	},
}

var (
	updatesNames      string
	updatesAllHistory bool
	updatesPlot       bool
)

func init() {
	UpdatesCmd.Flags().StringVar(&updatesNames, "names", "", "Comma-separated scalar names to include (default: all)")
	UpdatesCmd.Flags().BoolVar(&updatesAllHistory, "all-history", false, "Print the full history, not just values since the last read")
	UpdatesCmd.Flags().BoolVar(&updatesPlot, "plot", false, "Render a chart on the daemon and print its path")
}
