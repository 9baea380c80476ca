// Wemolink is a command-line tool for Belkin WeMo smart plugs and switches.
//
// It discovers devices on the local network, switches them on and off, reads
// Insight power telemetry, and provisions factory-reset devices onto a home
// WiFi network. Everything runs against the devices directly; no cloud
// account is involved.
//
// Usage:
//
//	wemolink [command] [flags]
//
// Running without arguments launches the interactive wizard.
// See 'wemolink --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/wemolink/internal/logging"
	"github.com/muurk/wemolink/internal/version"
)

func main() {
	if err := logging.InitializeFromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "wemolink",
	Short: "WeMo device discovery and control",
	Long: `A standalone utility for Belkin WeMo smart plugs and switches.

Discovers devices over SSDP, controls their power state, reads Insight
power telemetry, and provisions factory-reset devices onto a WiFi network.

If no command is specified, the interactive wizard will launch automatically.`,
	Version: version.Version,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWizard(cmd, args)
	},
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("wemolink %s (commit: %s)\n", version.Version, version.Commit)
	},
}
