package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"loom/internal/pipeline"
)

const (
	ansiGreen = "\x1b[32m"
	ansiRed   = "\x1b[31m"
	ansiReset = "\x1b[0m"
)

// renderRunReport formats the per-clip outcomes and run summary.
func renderRunReport(writer io.Writer, report *pipeline.RunReport) string {
	colorize := shouldColorize(writer)
	titler := cases.Title(language.Und)

	rows := make([][]string, 0, len(report.Results))
	for _, result := range report.Results {
		outcome := titler.String(string(result.Outcome))
		if colorize {
			switch result.Outcome {
			case pipeline.OutcomeReplaced, pipeline.OutcomeCached:
				outcome = ansiGreen + outcome + ansiReset
			case pipeline.OutcomeFailed, pipeline.OutcomeSkipped:
				outcome = ansiRed + outcome + ansiReset
			}
		}
		detail := result.OutputPath
		if result.Error != "" {
			detail = result.Error
		}
		rows = append(rows, []string{
			result.Ref.String(),
			result.ClipName,
			outcome,
			formatElapsed(result.Elapsed),
			detail,
		})
	}

	var b strings.Builder
	b.WriteString(renderTable(
		[]string{"Clip", "Name", "Outcome", "Elapsed", "Detail"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
	))

	replaced, cached, failed, skipped := report.Counts()
	b.WriteString(fmt.Sprintf("\nRun %s: %d replaced, %d cached, %d failed, %d skipped\n",
		report.RunID, replaced, cached, failed, skipped))
	return b.String()
}

func formatElapsed(d time.Duration) string {
	if d == 0 {
		return "-"
	}
	return d.Round(10 * time.Millisecond).String()
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
