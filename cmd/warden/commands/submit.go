package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/warden/server"
	"github.com/teranos/warden/sym"
)

// SubmitCmd queues a command as a new job
var SubmitCmd = &cobra.Command{
	Use:   "submit [flags] -- <command> [args...]",
	Short: "Queue a command as a new job",
	Long: `Queue a command as a new job. The daemon runs queued jobs one at a
time in submission order; the command's stdout and stderr are captured
under the job's output directory.

Script arguments ending in .py, .sh, .ipy, or .ipynb are resolved against
the current directory, so 'warden submit -- python train.py' works from
the project root. The job runs in the directory it was submitted from.

Examples:
  warden submit -- python train.py
  warden submit --name nightly -- ./run.sh --epochs 50
  warden submit --poll 60 -- python train.py   # hourly default too chatty
  warden submit --output-path /data/run1 -- make bench`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cwd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to resolve working directory: %w", err)
		}

		req := server.SubmitRequest{
			Args:                args,
			Cwd:                 cwd,
			Name:                submitName,
			Description:         submitDescription,
			PollIntervalSeconds: submitPoll,
			OutputPath:          submitOutputPath,
		}
		snap, err := newClient(cmd).Submit(cmd.Context(), req)
		if err != nil {
			return fmt.Errorf("failed to submit job: %w", err)
		}

		fmt.Printf("%s Job #%d submitted: %s\n", sym.Job, snap.Number, snap.Name)
		fmt.Printf("  ID:      %s\n", snap.ID)
		fmt.Printf("  Command: %s\n", snap.Command)
		fmt.Printf("  Output:  %s\n", snap.OutputPath)
		return nil
	},
}

var (
	submitName        string
	submitDescription string
	submitPoll        float64
	submitOutputPath  string
)

func init() {
	SubmitCmd.Flags().StringVar(&submitName, "name", "", "Job name (default: Job #<number>)")
	SubmitCmd.Flags().StringVar(&submitDescription, "description", "", "Job description (default: the command)")
	SubmitCmd.Flags().Float64Var(&submitPoll, "poll", 0, "Scalar update interval in seconds; -1 disables (default: configured interval)")
	SubmitCmd.Flags().StringVar(&submitOutputPath, "output-path", "", "Existing directory for captured output (default: per-job dir under the base dir)")
}
