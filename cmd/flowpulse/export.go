package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"flowpulse/internal/export"
)

var (
	exportFormat string
	exportOut    string
)

var exportCmd = &cobra.Command{
	Use:   "export <trace-dump.json>",
	Short: "Convert a trace dump into a timeline artifact",
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

		var out io.Writer = os.Stdout
		if exportOut != "" {
			outFile, err := os.Create(exportOut)
			if err != nil {
				return err
			}
			defer outFile.Close()
			out = outFile
		}

		switch exportFormat {
		case "chrome":
			return export.WriteChromeTrace(out, traces)
		case "html":
			return export.WriteHTMLTimeline(out, traces)
		default:
			return fmt.Errorf("unknown format %q (want chrome or html)", exportFormat)
		}
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportFormat, "format", "chrome", "output format: chrome or html")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output file (default stdout)")
}
