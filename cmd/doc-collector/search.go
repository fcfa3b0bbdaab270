package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/doc-collector/internal/collector"
	"github.com/pdiddy/doc-collector/pkg/types"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Run a collection session",
	Long: `Search runs one collection session: it plans queries for every language and
engine, searches, admits each new URL once, downloads the documents, and, when
--criteria is given, keeps only the documents the model judges relevant.

Documents are stored under <storage-dir>/<date>/<session-id>/.`,
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().StringP("query", "q", "", "search query (required)")
	searchCmd.Flags().String("criteria", "", "free-text relevance criteria; enables filtering")
	searchCmd.Flags().StringSlice("languages", nil, "ISO 639-1 language codes (default: search.languages)")
	searchCmd.Flags().StringSlice("engines", nil, "engines to query (default: all configured)")
	searchCmd.Flags().Int("max-results", 0, "maximum results per engine and query (default: search.max_results)")
	searchCmd.Flags().Int("pages", 0, "result pages per engine and query (default: search.pages)")
	searchCmd.Flags().Bool("optimize", false, "ask the model for optimized query variants")
	searchCmd.Flags().String("export", "", "export results after the run: csv, excel or both")
	searchCmd.Flags().Bool("json", false, "print the session summary as JSON")
	searchCmd.MarkFlagRequired("query")

	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	formats, err := exportFormats(mustString(cmd, "export"))
	if err != nil {
		return err
	}

	a, err := openApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	req := collector.Request{
		Criteria:   mustString(cmd, "criteria"),
		Languages:  a.cfg.Search.Languages,
		MaxResults: a.cfg.Search.MaxResults,
		Pages:      a.cfg.Search.Pages,
		Optimize:   a.cfg.Optimize,
	}
	req.Query, _ = cmd.Flags().GetString("query")
	if cmd.Flags().Changed("languages") {
		req.Languages, _ = cmd.Flags().GetStringSlice("languages")
	}
	if cmd.Flags().Changed("engines") {
		req.Engines, _ = cmd.Flags().GetStringSlice("engines")
	}
	if cmd.Flags().Changed("max-results") {
		req.MaxResults, _ = cmd.Flags().GetInt("max-results")
	}
	if cmd.Flags().Changed("pages") {
		req.Pages, _ = cmd.Flags().GetInt("pages")
	}
	if cmd.Flags().Changed("optimize") {
		req.Optimize, _ = cmd.Flags().GetBool("optimize")
	}

	id, runErr := a.collector.StartSearch(ctx, req)
	if id == 0 {
		return runErr
	}

	summary, err := a.collector.Summary(context.WithoutCancel(ctx), id)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			return err
		}
	} else {
		printSummary(w, summary, a.collector.SessionDir(&summary.Session))
	}
	if runErr != nil {
		return runErr
	}

	for _, f := range formats {
		path, n, err := a.collector.ExportFile(ctx, id, f)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "Exported %d results to %s\n", n, path)
	}
	return nil
}

// printSummary writes a human-readable session summary to w.
func printSummary(w io.Writer, s *types.SessionSummary, dir string) {
	sess := s.Session
	fmt.Fprintf(w, "Session %d: %s\n", sess.ID, sess.Status)
	fmt.Fprintf(w, "  Query:     %s\n", sess.OriginalQuery)
	if sess.Criteria != "" {
		fmt.Fprintf(w, "  Criteria:  %s\n", sess.Criteria)
	}
	fmt.Fprintf(w, "  Languages: %v\n", sess.Languages)
	fmt.Fprintf(w, "  Engines:   %v\n", sess.Engines)
	fmt.Fprintf(w, "  Directory: %s\n", dir)
	if sess.Error != "" {
		fmt.Fprintf(w, "  Error:     %s\n", sess.Error)
	}
	fmt.Fprintf(w, "  Results:   %d\n", s.Total)
	for _, st := range []types.DownloadStatus{
		types.DownloadDownloaded, types.DownloadFailed, types.DownloadSkipped, types.DownloadPending,
	} {
		if n := s.ByStatus[st]; n > 0 {
			fmt.Fprintf(w, "    %-10s %d\n", st, n)
		}
	}
	printCounts(w, "By engine", s.ByEngine)
	printCounts(w, "By language", s.ByLanguage)
}

func printCounts(w io.Writer, title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fmt.Fprintf(w, "  %s:\n", title)
	for _, k := range keys {
		fmt.Fprintf(w, "    %-10s %d\n", k, counts[k])
	}
}

func mustString(cmd *cobra.Command, name string) string {
	s, _ := cmd.Flags().GetString(name)
	return s
}

// serverAddr returns the listen address from flags or configuration.
func serverAddr(cmd *cobra.Command) string {
	if cmd.Flags().Changed("addr") {
		return mustString(cmd, "addr")
	}
	return viper.GetString("server.addr")
}
