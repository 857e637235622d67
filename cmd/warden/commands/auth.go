package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teranos/warden/config"
	"github.com/teranos/warden/sym"
)

// AuthCmd saves cloud credentials
var AuthCmd = &cobra.Command{
	Use:   "auth",
	Short: sym.Cloud + " Save cloud credentials",
	Long: `Save cloud credentials for the daemon. A running daemon picks the new
token up without a restart; the credentials file is watched.

Examples:
  warden auth --token <refresh-token>
  warden auth --token <refresh-token> --base-url https://cloud.example.com`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.CredentialsPath()
		creds := &config.Credentials{
			RefreshToken: authToken,
			BaseURL:      authBaseURL,
		}
		if err := config.SaveCredentials(path, creds); err != nil {
			return fmt.Errorf("failed to save credentials: %w", err)
		}
		fmt.Printf("%s Credentials saved to %s\n", sym.Cloud, path)
		fmt.Println("A running daemon reloads the token automatically.")
		return nil
	},
}

var (
	authToken   string
	authBaseURL string
)

func init() {
	AuthCmd.Flags().StringVar(&authToken, "token", "", "Cloud refresh token (required)")
	AuthCmd.Flags().StringVar(&authBaseURL, "base-url", "", "Cloud API base URL (default: configured URL)")
	AuthCmd.MarkFlagRequired("token")
}
