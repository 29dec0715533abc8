// Package cli implements the Pulse command-line interface using Cobra.
// Each subcommand maps to one capability: serving the API, printing a
// snapshot, importing tracker rows, and inspecting configuration.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "pulse",
	Short: "Pulse: outreach challenge metrics",
	Long: `Pulse turns a daily outreach log and a habit tracker into funnel
conversion rates, habit streaks, a goal projection, and achievements.

Records live in a local SQLite database under $PULSE_HOME (default ~/.pulse).`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
