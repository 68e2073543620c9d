package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"loom/internal/config"
	"loom/internal/dialect"
	"loom/internal/jobstore"
	"loom/internal/logging"
	"loom/internal/pipeline"
	"loom/internal/render"
	"loom/internal/selector"
	"loom/internal/stage"
)

// runExitError carries the partial-failure exit code out of Execute.
type runExitError struct {
	code int
}

func (e *runExitError) Error() string {
	return fmt.Sprintf("run finished with failures (exit code %d)", e.code)
}

func (e *runExitError) ExitCode() int { return e.code }

func newRunCommand(ctx *commandContext) *cobra.Command {
	var (
		inputPath     string
		outputPath    string
		inputDialect  string
		outputDialect string
		selectExpr    string
		stagesFlag    string
		lossyTiming   bool
		resume        bool
		workers       int
		profileInput  bool
		renderFlag    bool
		renderOutput  string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process selected clips and write the updated timeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("initialize logging: %w", err)
			}

			fromDialect, err := detectDialect(inputDialect, inputPath)
			if err != nil {
				return err
			}
			toDialect := strings.TrimSpace(outputDialect)
			if toDialect == "" {
				if toDialect, err = detectDialect("", outputPath); err != nil {
					toDialect = fromDialect
				}
			}
			opts := dialect.Options{LossyTiming: lossyTiming}

			tl, err := loadTimeline(inputPath, fromDialect, opts)
			if err != nil {
				return err
			}

			if workers > 0 {
				cfg.Pipeline.Workers = workers
			}
			if profileInput {
				cfg.SetProjectProfile(tl.Width, tl.Height, tl.FrameRate)
			}

			criteria, err := selector.ParseExpr(selectExpr)
			if err != nil {
				return err
			}
			refs, err := selector.Match(tl, criteria)
			if err != nil {
				return err
			}
			if len(refs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No clips matched the selection; nothing to do.")
				return nil
			}

			chainNames, err := stage.ParseChain(stagesFlag)
			if err != nil {
				return err
			}
			stages, err := stage.Chain(chainNames, cfg, logger)
			if err != nil {
				return err
			}

			lock := jobstore.NewRunLock(cfg)
			if err := lock.Acquire(); err != nil {
				return err
			}
			defer func() { _ = lock.Release() }()

			store, err := jobstore.Open(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			orchestrator, err := pipeline.New(pipeline.Options{
				Config: cfg,
				Logger: logger,
				Store:  store,
				Stages: stages,
				Force:  !resume,
			})
			if err != nil {
				return err
			}

			report, runErr := orchestrator.Run(cmd.Context(), tl, refs)
			fmt.Fprintln(cmd.OutOrStdout(), renderRunReport(cmd.OutOrStdout(), report))
			if runErr != nil {
				return runErr
			}

			if err := saveTimeline(tl, outputPath, toDialect, opts); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s timeline to %s\n", toDialect, outputPath)

			if renderFlag || cfg.Render.Enabled {
				renderPreview(cmd, cfg, logger, outputPath, renderOutput)
			}

			if code := report.ExitCode(); code != 0 {
				return &runExitError{code: code}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&inputPath, "input", "i", "", "Input timeline document")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Output timeline document")
	cmd.Flags().StringVar(&inputDialect, "input-dialect", "", "Input dialect (inferred from extension when omitted)")
	cmd.Flags().StringVar(&outputDialect, "output-dialect", "", "Output dialect (inferred from extension when omitted)")
	cmd.Flags().StringVarP(&selectExpr, "select", "s", "", "Clip selection, e.g. name=hoodie,kind=video")
	cmd.Flags().StringVar(&stagesFlag, "stages", "keying,compositing", "Comma-separated stage chain")
	cmd.Flags().BoolVar(&lossyTiming, "lossy-timing", false, "Round times that have no exact clock representation")
	cmd.Flags().BoolVar(&resume, "resume", true, "Reuse finished artifacts from the job cache")
	cmd.Flags().IntVar(&workers, "workers", 0, "Worker pool size (0 uses the configured value)")
	cmd.Flags().BoolVar(&profileInput, "project-from-input", false, "Take frame rate and resolution from the input document's profile")
	cmd.Flags().BoolVar(&renderFlag, "render", false, "Render a preview with melt after writing the timeline")
	cmd.Flags().StringVar(&renderOutput, "render-output", "", "Preview render destination (defaults to the configured path)")
	_ = cmd.MarkFlagRequired("input")
	_ = cmd.MarkFlagRequired("output")

	return cmd
}

// renderPreview is best effort: the written timeline is the deliverable,
// so render failures only warn.
func renderPreview(cmd *cobra.Command, cfg *config.Config, logger *slog.Logger, documentPath, output string) {
	if output == "" {
		output = cfg.Render.Output
	}
	if output == "" {
		output = documentPath + ".preview.mp4"
	}
	r := render.New(cfg, logger)
	if err := r.Render(cmd.Context(), documentPath, output); err != nil {
		logger.Warn("preview render failed", logging.Error(err))
		fmt.Fprintf(cmd.ErrOrStderr(), "Preview render failed: %v\n", err)
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Rendered preview to %s\n", output)
}
