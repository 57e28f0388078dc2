package main

import (
	"fmt"
	"slices"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sadopc/stride/internal/export"
	"github.com/sadopc/stride/internal/steps"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the step history",
	Long: `Writes the finalized daily totals to a CSV or JSON file.

Examples:
  stride export
  stride export --format json --out steps.json
  stride export --from 2024-01-01 --to 2024-01-31`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

var (
	exportFormat string
	exportOut    string
	exportFrom   string
	exportTo     string
)

func init() {
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "csv", "Output format (csv, json)")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "Output file (default stride-export-<timestamp>.<format>)")
	exportCmd.Flags().StringVar(&exportFrom, "from", "", "First day to include (YYYY-MM-DD)")
	exportCmd.Flags().StringVar(&exportTo, "to", "", "Last day to include (YYYY-MM-DD)")
}

func runExport(cmd *cobra.Command, args []string) error {
	validFormats := []string{"csv", "json"}
	if !slices.Contains(validFormats, exportFormat) {
		return fmt.Errorf("invalid format '%s': must be one of %v", exportFormat, validFormats)
	}
	for _, d := range []string{exportFrom, exportTo} {
		if d == "" {
			continue
		}
		if _, err := time.Parse(steps.DayLayout, d); err != nil {
			return fmt.Errorf("invalid day %q: want YYYY-MM-DD", d)
		}
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	s, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	days, err := s.ListHistory(exportFrom, exportTo)
	if err != nil {
		return err
	}

	path := exportOut
	if path == "" {
		path = export.Filename(exportFormat, time.Now())
	}
	switch exportFormat {
	case "json":
		err = export.ToJSON(days, path)
	default:
		err = export.ToCSV(days, path)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s %d days to %s\n", color.GreenString("exported"), len(days), path)
	return nil
}
