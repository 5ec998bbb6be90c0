package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "flowpulse",
	Short: "In-process event tracing and live metrics dashboard",
	Long: `flowpulse traces events across system stages, samples process metrics in
the background, and streams live snapshots to dashboard viewers over
websockets.`,
}

func main() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(demoCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(exportCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
