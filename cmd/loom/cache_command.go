package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"loom/internal/jobstore"
)

func newCacheCommand(ctx *commandContext) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Job cache utilities",
	}
	cacheCmd.AddCommand(newCacheStatsCommand(ctx))
	cacheCmd.AddCommand(newCacheClearCommand(ctx))
	return cacheCmd
}

func newCacheStatsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show cached job counts per status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := jobstore.Open(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			stats, err := store.Stats(cmd.Context())
			if err != nil {
				return err
			}

			statuses := make([]string, 0, len(stats))
			for status := range stats {
				statuses = append(statuses, string(status))
			}
			sort.Strings(statuses)

			rows := make([][]string, 0, len(statuses))
			total := 0
			for _, status := range statuses {
				count := stats[jobstore.Status(status)]
				total += count
				rows = append(rows, []string{status, fmt.Sprintf("%d", count)})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Job cache: %s\n", store.Path())
			fmt.Fprintln(out, renderTable(
				[]string{"Status", "Jobs"},
				rows,
				[]columnAlignment{alignLeft, alignRight},
			))
			fmt.Fprintf(out, "%d job(s) total\n", total)
			return nil
		},
	}
}

func newCacheClearCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove all cached jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := jobstore.Open(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Job cache cleared")
			return nil
		},
	}
}
