package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/warden/config"
	"github.com/teranos/warden/sym"
)

// SorryCmd points at everything needed for a bug report
var SorryCmd = &cobra.Command{
	Use:   "sorry",
	Short: "Something broke? Collect what a bug report needs",
	Long: `Sorry things went wrong. This prints where warden keeps its state so
you can attach the relevant files to a bug report.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		fmt.Println("Sorry warden let you down. Everything it knows lives here:")
		fmt.Printf("  Base dir:    %s\n", config.BaseDir())
		fmt.Printf("  Job output:  %s\n", config.JobsDir())
		fmt.Printf("  Database:    %s\n", cfg.DatabasePath())
		if _, err := os.Stat(config.CredentialsPath()); err == nil {
			fmt.Printf("  Credentials: %s (do NOT attach this one)\n", config.CredentialsPath())
		}
		fmt.Println()
		fmt.Printf("%s Attach the job's stdout/stderr files and the daemon log output\n", sym.Job)
		fmt.Println("to an issue at https://github.com/teranos/warden/issues. Thank you!")
		return nil
	},
}
