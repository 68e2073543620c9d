package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"loom/internal/preflight"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Check directories and external tools",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			results := preflight.RunAll(cmd.Context(), cfg)
			statuses := preflight.CheckSystemDeps(cmd.Context(), cfg)
			out := cmd.OutOrStdout()

			rows := make([][]string, 0, len(results))
			for _, result := range results {
				rows = append(rows, []string{result.Name, yesNo(result.Passed), result.Detail})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Check", "Passed", "Detail"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft},
			))

			depRows := make([][]string, 0, len(statuses))
			for _, status := range statuses {
				detail := status.Detail
				if detail == "" {
					detail = status.Description
				}
				depRows = append(depRows, []string{
					status.Name, status.Command, yesNo(status.Available), yesNo(status.Optional), detail,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Tool", "Command", "Available", "Optional", "Detail"},
				depRows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
			))

			if !preflight.AllPassed(results, statuses) {
				return fmt.Errorf("preflight checks failed")
			}
			fmt.Fprintln(out, "All checks passed")
			return nil
		},
	}
}
