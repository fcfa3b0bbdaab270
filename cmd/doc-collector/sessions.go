// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/doc-collector/pkg/types"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List and inspect collection sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		limit, _ := cmd.Flags().GetInt("limit")
		list, err := a.collector.Sessions(cmd.Context(), limit)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSON(w, list)
		}
		if len(list) == 0 {
			fmt.Fprintln(w, "No sessions.")
			return nil
		}
		fmt.Fprintf(w, "%-5s  %-10s  %-19s  %-12s  %s\n", "ID", "Status", "Created", "Languages", "Query")
		fmt.Fprintln(w, strings.Repeat("-", 90))
		for _, s := range list {
			fmt.Fprintf(w, "%-5d  %-10s  %-19s  %-12s  %s\n",
				s.ID, s.Status, s.CreatedAt.Local().Format("2006-01-02 15:04:05"),
				strings.Join(s.Languages, ","), s.OriginalQuery)
		}
		return nil
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show SESSION_ID",
	Short: "Show a session summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		a, err := openApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		summary, err := a.collector.Summary(cmd.Context(), id)
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSON(cmd.OutOrStdout(), summary)
		}
		printSummary(cmd.OutOrStdout(), summary, a.collector.SessionDir(&summary.Session))
		return nil
	},
}

var sessionsResultsCmd = &cobra.Command{
	Use:   "results SESSION_ID",
	Short: "List the results recorded for a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		status := types.DownloadStatus(mustString(cmd, "status"))
		switch status {
		case "", types.DownloadPending, types.DownloadDownloaded, types.DownloadFailed, types.DownloadSkipped:
		default:
			return fmt.Errorf("unknown status %q", status)
		}

		a, err := openApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		records, err := a.collector.Results(cmd.Context(), id, status)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSON(w, records)
		}
		printResults(w, records)
		return nil
	},
}

func init() {
	sessionsCmd.Flags().Int("limit", 20, "maximum number of sessions to list")
	sessionsCmd.PersistentFlags().Bool("json", false, "output as JSON")
	sessionsResultsCmd.Flags().String("status", "", "filter by status: pending, downloaded, failed, skipped")

	sessionsCmd.AddCommand(sessionsShowCmd, sessionsResultsCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func printResults(w io.Writer, records []types.ResultRecord) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No results.")
		return
	}
	fmt.Fprintf(w, "%-5s  %-10s  %-11s  %-4s  %-5s  %-40s  %s\n",
		"ID", "Status", "Engine", "Lang", "Score", "Title", "URL")
	fmt.Fprintln(w, strings.Repeat("-", 120))
	for _, r := range records {
		score := "-"
		if r.RelevanceScore != nil {
			score = fmt.Sprintf("%.2f", *r.RelevanceScore)
		}
		fmt.Fprintf(w, "%-5d  %-10s  %-11s  %-4s  %-5s  %-40s  %s\n",
			r.ID, r.DownloadStatus, r.Engine, r.Language, score, clip(r.Title, 40), r.URL)
	}
	fmt.Fprintf(w, "\n%d results\n", len(records))
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid session id %q", s)
	}
	return id, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func clip(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
