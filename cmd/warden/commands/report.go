package commands

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/teranos/warden/sym"
)

// ReportCmd sends one scalar value to the daemon
var ReportCmd = &cobra.Command{
	Use:   "report <name> <value>",
	Short: sym.Track + " Report a scalar value from inside a job",
	Long: `Report a scalar value to the daemon. The value is routed to the owning
job by process id; without --pid the parent process is used, so a job
script can simply run 'warden report loss 0.42' and the value lands on
the job that executed it.

Examples:
  warden report loss 0.42
  warden report accuracy 0.97 --pid 12345`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		value, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("failed to parse value %q: %w", args[1], err)
		}
		pid := reportPid
		if pid == 0 {
			pid = os.Getppid()
		}
		if err := newClient(cmd).Report(cmd.Context(), pid, args[0], value); err != nil {
			return fmt.Errorf("failed to report %s: %w", args[0], err)
		}
		fmt.Printf("%s %s = %g\n", sym.Track, args[0], value)
		return nil
	},
}

var reportPid int

func init() {
	ReportCmd.Flags().IntVar(&reportPid, "pid", 0, "Owning process id (default: this command's parent)")
}
