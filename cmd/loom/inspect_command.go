package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"loom/internal/dialect"
	"loom/internal/selector"
	"loom/internal/timecode"
	"loom/internal/timeline"
)

func newInspectCommand(ctx *commandContext) *cobra.Command {
	var (
		inputDialect string
		selectExpr   string
	)

	cmd := &cobra.Command{
		Use:         "inspect <input>",
		Short:       "Summarize a timeline document and preview clip selection",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			inputPath := args[0]
			fromDialect, err := detectDialect(inputDialect, inputPath)
			if err != nil {
				return err
			}
			tl, err := loadTimeline(inputPath, fromDialect, dialect.Options{})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Timeline: %s (%s)\n", tl.Name, fromDialect)
			fmt.Fprintf(out, "Frame rate: %s  Resolution: %dx%d  Duration: %s\n",
				tl.FrameRate, tl.Width, tl.Height, timecode.Format(tl.Duration()))

			rows := make([][]string, 0)
			for ti, track := range tl.Tracks {
				for ei, element := range track.Elements {
					clip, ok := element.(*timeline.Clip)
					if !ok {
						continue
					}
					ref := timeline.ClipRef{Track: ti, Element: ei}
					rows = append(rows, []string{
						ref.String(),
						string(track.Kind),
						clip.Name,
						clip.Source.Path,
						timecode.Format(ref.Start(tl)),
						timecode.Format(clip.Duration),
						fmt.Sprintf("%d", len(clip.Effects)),
					})
				}
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Ref", "Kind", "Name", "Source", "Start", "Duration", "Effects"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight},
			))

			if selectExpr != "" {
				criteria, err := selector.ParseExpr(selectExpr)
				if err != nil {
					return err
				}
				refs, err := selector.Match(tl, criteria)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "\nSelection %q matches %d clip(s):", selectExpr, len(refs))
				for _, ref := range refs {
					fmt.Fprintf(out, " %s", ref)
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&inputDialect, "input-dialect", "", "Input dialect (inferred from extension when omitted)")
	cmd.Flags().StringVarP(&selectExpr, "select", "s", "", "Preview a clip selection, e.g. name=hoodie,kind=video")

	return cmd
}
