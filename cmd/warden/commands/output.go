package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teranos/warden/sym"
)

// OutputCmd shows where a job's captured output lives
var OutputCmd = &cobra.Command{
	Use:   "output <job>",
	Short: sym.Job + " Show a job's output location",
	Long: `Show where a job's captured stdout and stderr live. With --tail the
last N lines of each file are printed as well.

Examples:
  warden output 3
  warden output nightly --tail 20`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := newClient(cmd)
		id, err := resolveJob(cmd.Context(), c, args[0])
		if err != nil {
			return err
		}
		resp, err := c.Output(cmd.Context(), id, outputTail)
		if err != nil {
			return fmt.Errorf("failed to fetch output: %w", err)
		}

		if resp.OutputPath != "" {
			fmt.Printf("Output dir: %s\n", resp.OutputPath)
		}
		if resp.StdoutPath != "" {
			fmt.Printf("Stdout:     %s\n", resp.StdoutPath)
		}
		if resp.StderrPath != "" {
			fmt.Printf("Stderr:     %s\n", resp.StderrPath)
		}

		if len(resp.Stdout) > 0 {
			fmt.Printf("\n--- stdout (last %d lines) ---\n", len(resp.Stdout))
			for _, line := range resp.Stdout {
				fmt.Println(line)
			}
		}
		if len(resp.Stderr) > 0 {
			fmt.Printf("\n--- stderr (last %d lines) ---\n", len(resp.Stderr))
			for _, line := range resp.Stderr {
				fmt.Println(line)
			}
		}
		return nil
	},
}

var outputTail int

func init() {
	OutputCmd.Flags().IntVar(&outputTail, "tail", 0, "Also print the last N lines of stdout and stderr")
}
