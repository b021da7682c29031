package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/kernhell/kernhell-go/internal/domain"
)

// RenderOutcome prints a single file result in a friendly, ASCII-only format.
func RenderOutcome(out io.Writer, outcome domain.HealOutcome) {
	switch {
	case outcome.Healed() && outcome.Attempts <= 1:
		fmt.Fprintf(out, "[PASS]   %s\n", outcome.File)
	case outcome.Healed():
		fmt.Fprintf(out, "[HEALED] %s after %d runs (model: %s)\n", outcome.File, outcome.Attempts, outcome.Model)
	default:
		fmt.Fprintf(out, "[FAILED] %s after %d runs", outcome.File, outcome.Attempts)
		if outcome.Reason != "" {
			fmt.Fprintf(out, " - %s", outcome.Reason)
		}
		fmt.Fprintln(out)
		if outcome.Error != "" {
			fmt.Fprintf(out, "  %s\n", firstLines(outcome.Error, 5))
		}
	}
}

// RenderBatch prints every outcome followed by a summary line.
func RenderBatch(out io.Writer, report domain.BatchReport) {
	if len(report.Outcomes) == 0 {
		fmt.Fprintln(out, "No test files found.")
		return
	}
	for _, outcome := range report.Outcomes {
		RenderOutcome(out, outcome)
	}
	fmt.Fprintf(out, "\n%d/%d files passing", len(report.Outcomes)-report.Failures, len(report.Outcomes))
	if report.Failures > 0 {
		fmt.Fprintf(out, ", %d failed", report.Failures)
	}
	fmt.Fprintln(out)
}

func firstLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = append(lines[:n], "...")
	}
	return strings.Join(lines, "\n  ")
}
