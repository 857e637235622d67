package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/teranos/warden/agent/store"
	"github.com/teranos/warden/config"
	"github.com/teranos/warden/db"
	"github.com/teranos/warden/errors"
	"github.com/teranos/warden/logger"
	"github.com/teranos/warden/sym"
)

// ClearCmd wipes captured job output and the audit database
var ClearCmd = &cobra.Command{
	Use:   "clear",
	Short: sym.DB + " Wipe job output and the audit trail",
	Long: `Wipe captured job output directories and the audit database. Works
directly on the base dir, so stop the daemon first; a running daemon
keeps writing and holds the database open.

Examples:
  warden clear`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := newClient(cmd).Status(cmd.Context()); err == nil {
			return errors.WithHint(
				errors.New("daemon is running"),
				"run 'warden stop' first")
		}

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		jobsDir := config.JobsDir()
		if err := os.RemoveAll(jobsDir); err != nil {
			return fmt.Errorf("failed to remove %s: %w", jobsDir, err)
		}
		if err := config.EnsureBaseDir(); err != nil {
			return fmt.Errorf("failed to recreate base dir: %w", err)
		}
		fmt.Printf("%s Removed job output under %s\n", sym.DB, jobsDir)

		dbPath := cfg.DatabasePath()
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			fmt.Printf("%s No audit database at %s\n", sym.DB, dbPath)
			return nil
		}
		database, err := db.OpenWithMigrations(dbPath, logger.Logger)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer database.Close()

		if err := store.New(database, logger.ComponentLogger("store")).Clear(); err != nil {
			return fmt.Errorf("failed to clear audit trail: %w", err)
		}
		fmt.Printf("%s Cleared audit trail in %s\n", sym.DB, dbPath)
		return nil
	},
}
