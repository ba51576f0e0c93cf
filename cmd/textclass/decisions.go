package main

import (
	"fmt"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/themobileprof/textclass/internal/db"
)

func decisionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "decisions",
		Short: "Inspect the decision log",
		Long:  "Inspect classifications recorded when log_decisions is enabled.",
	}
	cmd.AddCommand(decisionsListCmd())
	cmd.AddCommand(decisionsStatsCmd())
	cmd.AddCommand(decisionsPruneCmd())
	return cmd
}

func openStore() (*db.DB, error) {
	store, err := db.New(app.cfg.DBPath, app.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open decision log: %w", err)
	}
	return store, nil
}

func decisionsListCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent decisions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			entries, err := store.RecentDecisions(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, subtle("No decisions logged. Set log_decisions: true to record them."))
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				header("TIME"), header("CATEGORY"), header("CONF"), header("OUTCOME"), header("INPUT"))
			for _, e := range entries {
				fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\t%s\n",
					e.CreatedAt.Local().Format(time.DateTime), e.Category, e.Confidence, e.Outcome, truncate(e.Input, 48))
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries")
	return cmd
}

func decisionsStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Summarise the decision log",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			stats, err := store.DecisionStats(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, title("Decision log"))
			fmt.Fprintf(out, "  total:         %d\n", stats.Total)
			fmt.Fprintf(out, "  fallback rate: %.2f%%\n\n", stats.FallbackRate*100)
			writeCounts(cmd, "By outcome", stats.ByOutcome)
			writeCounts(cmd, "By category", stats.ByCategory)
			return nil
		},
	}
}

func writeCounts(cmd *cobra.Command, heading string, counts map[string]int64) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, header(heading))
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return counts[keys[i]] > counts[keys[j]] })
	for _, k := range keys {
		fmt.Fprintf(out, "  %-18s %d\n", k, counts[k])
	}
	fmt.Fprintln(out)
}

func decisionsPruneCmd() *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old decisions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
			store, err := openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			n, err := store.PruneBefore(cmd.Context(), time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), render(successStyle, fmt.Sprintf("✓ deleted %d decisions", n)))
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "delete entries older than this")
	return cmd
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
