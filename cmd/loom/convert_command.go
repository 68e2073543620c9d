package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"loom/internal/dialect"
)

func newConvertCommand(ctx *commandContext) *cobra.Command {
	var (
		inputDialect  string
		outputDialect string
		lossyTiming   bool
	)

	cmd := &cobra.Command{
		Use:         "convert <input> <output>",
		Short:       "Convert a timeline document between dialects",
		Long:        "Convert parses the input document into the shared timeline model and writes it back out in the target dialect. Timing is preserved exactly unless --lossy-timing permits millisecond rounding.",
		Args:        cobra.ExactArgs(2),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			inputPath, outputPath := args[0], args[1]

			fromDialect, err := detectDialect(inputDialect, inputPath)
			if err != nil {
				return err
			}
			toDialect, err := detectDialect(outputDialect, outputPath)
			if err != nil {
				return err
			}
			opts := dialect.Options{LossyTiming: lossyTiming}

			tl, err := loadTimeline(inputPath, fromDialect, opts)
			if err != nil {
				return err
			}
			if err := saveTimeline(tl, outputPath, toDialect, opts); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Converted %s (%s) to %s (%s)\n",
				inputPath, fromDialect, outputPath, toDialect)
			return nil
		},
	}

	cmd.Flags().StringVar(&inputDialect, "input-dialect", "", "Input dialect (inferred from extension when omitted)")
	cmd.Flags().StringVar(&outputDialect, "output-dialect", "", "Output dialect (inferred from extension when omitted)")
	cmd.Flags().BoolVar(&lossyTiming, "lossy-timing", false, "Round times that have no exact clock representation")

	return cmd
}
