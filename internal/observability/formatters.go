// Package observability provides formatted output utilities for verbose CLI mode.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/retailops/storesync/internal/pipeline"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxReasonsToShow is the default number of reasons to display per store
	maxReasonsToShow = 3
)

// Printer handles formatted output for verbose mode
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

// PrintRunSummary outputs a human-readable summary of a completed run.
func (p *Printer) PrintRunSummary(summary *pipeline.RunSummary) {
	if summary == nil {
		return
	}

	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Pipeline: %s\n", summary.Pipeline))
	sb.WriteString(fmt.Sprintf("Window:   %s to %s\n",
		summary.FromDate.Format("2006-01-02"), summary.ToDate.Format("2006-01-02")))
	sb.WriteString(fmt.Sprintf("Run ID:   %s\n", summary.RunID))
	sb.WriteString("\n")

	for _, st := range summary.Stores {
		sb.WriteString(fmt.Sprintf("%-10s %-8s rows=%d staged=%d/%d final=%d/%d\n",
			st.StoreCode, strings.ToUpper(st.Status),
			st.RowsDownloaded,
			st.StagingInserted, st.StagingUpdated,
			st.FinalInserted, st.FinalUpdated))
		if st.WarningCount > 0 || st.DroppedRows > 0 {
			sb.WriteString(fmt.Sprintf("           warnings=%d dropped=%d\n", st.WarningCount, st.DroppedRows))
		}
		count := min(len(st.Reasons), maxReasonsToShow)
		for i := 0; i < count; i++ {
			sb.WriteString(fmt.Sprintf("  • %s\n", st.Reasons[i]))
		}
		if len(st.Reasons) > maxReasonsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(st.Reasons)-maxReasonsToShow))
		}
	}

	if failed := summary.Failed(); failed > 0 {
		sb.WriteString(fmt.Sprintf("\n%d of %d stores failed\n", failed, len(summary.Stores)))
	}

	p.printBox("SYNC RUN SUMMARY", strings.TrimRight(sb.String(), "\n"))
}
