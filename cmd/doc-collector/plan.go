package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/doc-collector/internal/export"
	"github.com/pdiddy/doc-collector/internal/search"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Preview a query plan or replay a saved one",
	Long: `Plan prints the queries a session would run for --query without searching.
With --replay it loads a queries.yaml written by an earlier session, runs its
queries against the engines and prints the merged results. Nothing is stored.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer a.Close()

		w := cmd.OutOrStdout()
		asJSON, _ := cmd.Flags().GetBool("json")

		if path := mustString(cmd, "replay"); path != "" {
			plan, err := search.ReadQueryPlan(path)
			if err != nil {
				return err
			}
			out := a.search.SearchQueries(cmd.Context(), plan.Queries, plan.Config.MaxResults, plan.Config.Pages)
			if asJSON {
				return search.FormatJSON(out, w)
			}
			search.FormatTable(out, w)
			return nil
		}

		q := strings.TrimSpace(mustString(cmd, "query"))
		if q == "" {
			return fmt.Errorf("--query or --replay is required")
		}
		languages := a.cfg.Search.Languages
		if cmd.Flags().Changed("languages") {
			languages, _ = cmd.Flags().GetStringSlice("languages")
		}
		engines := a.search.Engines()
		if cmd.Flags().Changed("engines") {
			engines, _ = cmd.Flags().GetStringSlice("engines")
		}
		optimize := a.cfg.Optimize
		if cmd.Flags().Changed("optimize") {
			optimize, _ = cmd.Flags().GetBool("optimize")
		}
		if optimize && !a.llm.Available(cmd.Context()) {
			fmt.Fprintln(cmd.ErrOrStderr(), "warning: model unavailable, showing the base plan")
			optimize = false
		}

		queries := a.planner.Build(cmd.Context(), q, languages, engines, optimize)
		if asJSON {
			return writeJSON(w, queries)
		}
		return export.WriteQueriesCSV(w, queries)
	},
}

func init() {
	planCmd.Flags().StringP("query", "q", "", "search query")
	planCmd.Flags().StringSlice("languages", nil, "ISO 639-1 language codes (default: search.languages)")
	planCmd.Flags().StringSlice("engines", nil, "engines to plan for (default: all configured)")
	planCmd.Flags().Bool("optimize", false, "include model-optimized variants")
	planCmd.Flags().String("replay", "", "queries.yaml file to run again")
	planCmd.Flags().Bool("json", false, "output as JSON")

	rootCmd.AddCommand(planCmd)
}
