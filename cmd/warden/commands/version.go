package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/teranos/warden/version"
)

// releasesURL serves the latest released version as {"version": "x.y.z"}.
const releasesURL = "https://releases.warden.dev/latest.json"

// VersionCmd represents the version command
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show warden version information",
	Long:  `Display version, build time, commit hash, and platform information for the warden binary.`,
	Run: func(cmd *cobra.Command, args []string) {
		jsonOutput, _ := cmd.Flags().GetBool("json")
		check, _ := cmd.Flags().GetBool("check")

		info := version.Get()

		if jsonOutput {
			output, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Error formatting JSON: %v\n", err)
				return
			}
			fmt.Println(string(output))
		} else {
			fmt.Println(info.String())
			fmt.Printf("Platform: %s\n", info.Platform)
			fmt.Printf("Go: %s\n", info.GoVersion)
		}

		if check {
			checkLatest(cmd.Context(), info)
		}
	},
}

// checkLatest is advisory: any failure prints a note and moves on.
func checkLatest(ctx context.Context, info version.Info) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, releasesURL, nil)
	if err != nil {
		fmt.Printf("Could not check for updates: %v\n", err)
		return
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Println("Could not reach the release server; skipping update check")
		return
	}
	defer resp.Body.Close()

	var latest struct {
		Version string `json:"version"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&latest); err != nil {
		fmt.Printf("Could not check for updates: %v\n", err)
		return
	}

	newer, err := version.UpdateAvailable(info.Version, latest.Version)
	if err != nil {
		fmt.Printf("Could not compare versions: %v\n", err)
		return
	}
	if newer {
		fmt.Printf("Update available: %s\n", latest.Version)
	} else {
		fmt.Println("Up to date")
	}
}

func init() {
	VersionCmd.Flags().BoolP("json", "j", false, "Output version info as JSON")
	VersionCmd.Flags().Bool("check", false, "Check the release server for a newer version")
}
