package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var dedupCmd = &cobra.Command{
	Use:   "dedup",
	Short: "Inspect and clear the URL deduplication store",
}

var dedupStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count tracked URLs globally or for one session",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.dedup.Ping(cmd.Context()); err != nil {
			return fmt.Errorf("redis %s: %w", a.cfg.Dedup.Addr, err)
		}
		w := cmd.OutOrStdout()
		if cmd.Flags().Changed("session") {
			id, _ := cmd.Flags().GetInt64("session")
			n, err := a.dedup.SessionStats(cmd.Context(), id)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "Session %d: %d URLs tracked\n", id, n)
			return nil
		}
		n, err := a.dedup.DuplicateStats(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%d URLs tracked across all sessions (TTL %s)\n", n, a.dedup.TTL())
		return nil
	},
}

var dedupClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the dedup entries of one session",
	RunE: func(cmd *cobra.Command, args []string) error {
		id, _ := cmd.Flags().GetInt64("session")
		if id <= 0 {
			return fmt.Errorf("--session is required")
		}
		a, err := openApp(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		n, err := a.dedup.CleanupSession(cmd.Context(), id)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d entries for session %d\n", n, id)
		return nil
	},
}

func init() {
	dedupStatsCmd.Flags().Int64("session", 0, "restrict to one session")
	dedupClearCmd.Flags().Int64("session", 0, "session whose entries to remove")

	dedupCmd.AddCommand(dedupStatsCmd, dedupClearCmd)
	rootCmd.AddCommand(dedupCmd)
}
