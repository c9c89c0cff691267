package cli

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/Veraticus/contaflow/internal/model"
	"github.com/schollz/progressbar/v3"
)

// RunProgress shows a progress bar over the companies of a run. Done is
// safe to call from any goroutine.
type RunProgress struct {
	writer      io.Writer
	progressBar *progressbar.ProgressBar
	failed      []string
	completed   int
	mu          sync.Mutex
}

// NewRunProgress creates a progress bar for total companies.
func NewRunProgress(writer io.Writer, total int) *RunProgress {
	p := &RunProgress{writer: writer}
	p.progressBar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(writer),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]Reconciling companies...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			if _, err := fmt.Fprintln(writer); err != nil {
				slog.Warn("Failed to write newline after progress bar", "error", err)
			}
		}),
	)
	return p
}

// Done advances the bar for a finished company.
func (p *RunProgress) Done(result model.CompanyResult) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.completed++
	if result.Failure != nil {
		p.failed = append(p.failed, result.Company.ID)
	}
	p.progressBar.Describe(fmt.Sprintf("[cyan][bold]Reconciled %s[reset]", result.Company.ID))
	if err := p.progressBar.Add(1); err != nil {
		slog.Warn("Failed to update progress bar", "error", err)
	}
}

// Completed returns the number of companies reported so far.
func (p *RunProgress) Completed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.completed
}

// Failed returns the IDs of companies that did not complete, in report order.
func (p *RunProgress) Failed() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.failed))
	copy(out, p.failed)
	return out
}

// RenderRunSummary formats the end-of-run summary box.
func RenderRunSummary(summary model.RunSummary) string {
	header := []string{"Company", "Status", "Matched", "Unmatched", "Review", "Excluded", "Rejected"}
	rows := make([][]string, 0, len(summary.Companies))
	for _, c := range summary.Companies {
		rows = append(rows, []string{
			c.Company,
			FormatStatus(c.Status),
			strconv.Itoa(c.Counts.Matched),
			strconv.Itoa(c.Counts.Unmatched),
			strconv.Itoa(c.Counts.ManualReview),
			strconv.Itoa(c.Counts.Excluded),
			strconv.Itoa(c.Rejected),
		})
	}

	t := summary.Totals
	content := RenderTable(header, rows) + "\n\n" +
		fmt.Sprintf("%s Run %s for %s\n", ChartIcon, summary.RunID, summary.Period) +
		fmt.Sprintf("  • Companies: %d complete, %d incomplete\n", t.Complete, t.Incomplete) +
		fmt.Sprintf("  • Records loaded: %d\n", t.Loaded) +
		fmt.Sprintf("  • Matched: %d  Unmatched: %d  Manual review: %d\n", t.Counts.Matched, t.Counts.Unmatched, t.Counts.ManualReview) +
		fmt.Sprintf("  • Out of period: %d  Duplicates: %d  Rejected: %d\n", t.OutOfPeriod, t.Duplicates, t.Rejected) +
		fmt.Sprintf("  • Time taken: %s", summary.Elapsed.Round(time.Millisecond))

	for _, f := range summary.Failures {
		content += "\n" + FormatError(fmt.Sprintf("%s: %s (%s)", f.Company, f.Kind, f.Detail))
	}

	return RenderBox("Reconciliation Complete", content)
}
