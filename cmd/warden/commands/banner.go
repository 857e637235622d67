package commands

import (
	"fmt"

	"github.com/teranos/warden/logger"
	"github.com/teranos/warden/version"
)

// printStartupBanner prints the user-friendly startup message
func printStartupBanner(verbosity, port int, baseDir, dbPath string, cloudEnabled bool) {
	// ANSI escape codes
	cyan := "\033[36m"
	green := "\033[32m"
	yellow := "\033[33m"
	blue := "\033[34m"
	bold := "\033[1m"
	reset := "\033[0m"

	versionInfo := version.Get()

	fmt.Printf("\n%s%s", cyan, bold)
	fmt.Printf("   ╔══════════════════════════════════════════╗\n")
	fmt.Printf("   ║                                          ║\n")
	fmt.Printf("   ║   ██     ██  █████  ██████  ██████       ║\n")
	fmt.Printf("   ║   ██     ██ ██   ██ ██   ██ ██   ██      ║\n")
	fmt.Printf("   ║   ██  █  ██ ███████ ██████  ██   ██      ║\n")
	fmt.Printf("   ║   ██ ███ ██ ██   ██ ██   ██ ██   ██      ║\n")
	fmt.Printf("   ║    ███ ███  ██   ██ ██   ██ ██████  EN   ║\n")
	fmt.Printf("   ║                                          ║\n")
	fmt.Printf("   ╚══════════════════════════════════════════╝%s\n\n", reset)

	fmt.Printf("%s%s┌─ Warden Info ────────────────────────────────────┐%s\n", green, bold, reset)
	fmt.Printf("%s│%s Version:   %s (commit %s)\n", green, reset, versionInfo.Version, versionInfo.Short())
	fmt.Printf("%s│%s Address:   http://127.0.0.1:%d\n", green, reset, port)
	fmt.Printf("%s│%s Base dir:  %s\n", green, reset, baseDir)
	fmt.Printf("%s│%s Database:  %s\n", green, reset, dbPath)
	if cloudEnabled {
		fmt.Printf("%s│%s Cloud:     enabled\n", green, reset)
	} else {
		fmt.Printf("%s│%s Cloud:     disabled (no credentials)\n", green, reset)
	}
	fmt.Printf("%s│%s Verbosity: %s\n", green, reset, logger.LevelName(verbosity))
	fmt.Printf("%s└──────────────────────────────────────────────────┘%s\n", green, reset)

	fmt.Printf("\n%s%s✨ Submit jobs with 'warden submit -- <command>'%s\n", yellow, bold, reset)
	fmt.Printf("%s💡 Press Ctrl+C for graceful shutdown%s\n\n", blue, reset)
}
