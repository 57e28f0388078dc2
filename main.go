package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"unicode"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// formatVersion adds 'v' prefix if version starts with a digit
func formatVersion(ver string) string {
	if len(ver) > 0 && unicode.IsDigit(rune(ver[0])) {
		return "v" + ver
	}
	return ver
}

// rootCmd opens the dashboard when called without a subcommand.
var rootCmd = &cobra.Command{
	Use:   "stride",
	Short: "Daily step counter",
	Long: `stride counts your steps per calendar day.

- run: the tracking daemon (step source, day rollover, notifications)
- dash: the terminal dashboard (default)
- steps, start, stop: quick control of a running daemon
- export: write the step history as CSV or JSON

The daemon and the dashboard share one SQLite store.`,
	Version: formatVersion(version),
	RunE:    runDash,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Ctrl+C is a normal exit
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", formatUserError(err))
		os.Exit(1)
	}
}

func init() {
	rootCmd.SilenceErrors = true
	rootCmd.SetVersionTemplate(fmt.Sprintf("stride {{.Version}} (%s, %s)\n", commit, date))

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(dashCmd)
	rootCmd.AddCommand(stepsCmd)
	rootCmd.AddCommand(startCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(exportCmd)

	rootCmd.PersistentFlags().String("config", "", "Config file (default <config dir>/stride/config.yaml)")
	rootCmd.PersistentFlags().String("db", "", "SQLite database path (overrides config)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("addr", "", "Daemon control address (overrides config)")

	rootCmd.Flags().BoolP("version", "v", false, "Show version information")
}
