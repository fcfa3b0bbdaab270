package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/doc-collector/internal/export"
)

var exportCmd = &cobra.Command{
	Use:   "export SESSION_ID",
	Short: "Export a session's downloaded documents as CSV or Excel",
	Long: `Export writes one row per downloaded document of a session. Files are named
results_<id>.csv or results_<id>.xlsx and placed in the session directory
unless --stdout is given.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		formats, err := exportFormats(mustString(cmd, "format"))
		if err != nil {
			return err
		}
		if len(formats) == 0 {
			formats = []export.Format{export.FormatCSV}
		}

		a, err := openApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		w := cmd.OutOrStdout()
		if toStdout, _ := cmd.Flags().GetBool("stdout"); toStdout {
			if len(formats) > 1 {
				return fmt.Errorf("--stdout requires a single format")
			}
			_, err := a.collector.Export(cmd.Context(), id, formats[0], w)
			return err
		}

		for _, f := range formats {
			path, n, err := a.collector.ExportFile(cmd.Context(), id, f)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "Exported %d results to %s\n", n, path)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().String("format", "csv", "csv, excel or both")
	exportCmd.Flags().Bool("stdout", false, "write the export to stdout instead of the session directory")

	rootCmd.AddCommand(exportCmd)
}

// exportFormats parses csv, excel, xlsx or both. An empty value yields none.
func exportFormats(s string) ([]export.Format, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "":
		return nil, nil
	case "both":
		return []export.Format{export.FormatCSV, export.FormatExcel}, nil
	}
	f, err := export.ParseFormat(s)
	if err != nil {
		return nil, err
	}
	return []export.Format{f}, nil
}
