package reporting

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/happycreater/binance-historical-data/pkg/types"
)

// fmtRound trims sub-centisecond noise from the elapsed time display
const fmtRound = 10 * time.Millisecond

// ConsoleReporter renders the end-of-run summary and failure details
type ConsoleReporter struct {
	out io.Writer
}

// NewConsoleReporter creates a console reporter writing to out
func NewConsoleReporter(out io.Writer) *ConsoleReporter {
	return &ConsoleReporter{out: out}
}

// RenderSummary prints the outcome counts as a table. NotFound stays a
// separate row from Failed so "upstream has no such data" is never mistaken
// for an error.
func (r *ConsoleReporter) RenderSummary(s Summary) {
	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Fetch Summary")
	t.AppendHeader(table.Row{"Outcome", "Count"})
	t.AppendRows([]table.Row{
		{"Downloaded", s.Downloaded},
		{"Skipped (exists)", s.Skipped},
		{"Not found", s.NotFound},
		{"Failed", s.Failed},
	})
	t.AppendFooter(table.Row{"Total", s.Total})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight, AlignFooter: text.AlignRight},
	})
	t.Render()

	fmt.Fprintf(r.out, "Bytes downloaded: %d\n", s.BytesDownloaded)
	if s.Merges > 0 {
		fmt.Fprintf(r.out, "Datasets merged: %d archives, %d rows appended, %d errors\n",
			s.Merges, s.RowsAppended, s.MergeErrors)
	}
	fmt.Fprintf(r.out, "Elapsed: %s\n", s.Duration.Round(fmtRound))
}

// RenderFailures lists the jobs that ended in Failed, with their errors
func (r *ConsoleReporter) RenderFailures(results []types.DownloadResult) {
	var failed []types.DownloadResult
	for _, result := range results {
		if result.Outcome == types.OutcomeFailed {
			failed = append(failed, result)
		}
	}
	if len(failed) == 0 {
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(r.out)
	t.SetStyle(table.StyleLight)
	t.SetTitle("Failed Jobs")
	t.AppendHeader(table.Row{"Remote Path", "Error"})
	for _, result := range failed {
		errText := ""
		if result.Err != nil {
			errText = result.Err.Error()
		}
		t.AppendRow(table.Row{result.Job.RemotePath, errText})
	}
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, WidthMax: 80},
	})
	t.Render()
}
