package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"flowpulse/internal/export"
	"flowpulse/internal/latency"
)

var reportCmd = &cobra.Command{
	Use:   "report <trace-dump.json>",
	Short: "Print a latency report for a captured trace dump",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		traces, err := export.ReadTraceDump(f)
		if err != nil {
			return fmt.Errorf("parse trace dump: %w", err)
		}
		fmt.Println(latency.GenerateLatencyReport(traces))
		return nil
	},
}
