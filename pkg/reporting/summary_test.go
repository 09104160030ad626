package reporting

import (
	"bytes"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/happycreater/binance-historical-data/pkg/types"
)

func sampleResults() []types.DownloadResult {
	return []types.DownloadResult{
		{Job: types.Job{RemotePath: "a.zip", Symbol: "BTCUSDT", Date: "2021-01-01", Interval: "1h"}, Outcome: types.OutcomeDownloaded, BytesWritten: 1000, Verified: true, Duration: 120 * time.Millisecond},
		{Job: types.Job{RemotePath: "b.zip", Symbol: "BTCUSDT", Date: "2021-01-02", Interval: "1h"}, Outcome: types.OutcomeSkipped, Verified: true},
		{Job: types.Job{RemotePath: "c.zip", Symbol: "ETHUSDT", Date: "2021-01-01", Interval: "1h"}, Outcome: types.OutcomeNotFound},
		{Job: types.Job{RemotePath: "d.zip", Symbol: "ETHUSDT", Date: "2021-01-02", Interval: "1h"}, Outcome: types.OutcomeFailed, Err: errors.New("checksum mismatch")},
	}
}

// TestSummarize_Counts tests outcome tallying and byte accounting
func TestSummarize_Counts(t *testing.T) {
	merges := []types.MergeResult{
		{RowsAppended: 24},
		{Err: errors.New("bad archive")},
	}
	s := Summarize(sampleResults(), merges, 3*time.Second)

	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 1, s.Downloaded)
	assert.Equal(t, 1, s.Skipped)
	assert.Equal(t, 1, s.NotFound)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, int64(1000), s.BytesDownloaded)
	assert.Equal(t, 2, s.Merges)
	assert.Equal(t, 1, s.MergeErrors)
	assert.Equal(t, 24, s.RowsAppended)
	assert.Equal(t, 3*time.Second, s.Duration)
}

// TestExitCode_Mapping tests the exit status rules
func TestExitCode_Mapping(t *testing.T) {
	assert.Equal(t, 0, Summary{Total: 2, Downloaded: 2}.ExitCode())
	assert.Equal(t, 0, Summary{Total: 2, Skipped: 2}.ExitCode())
	assert.Equal(t, 0, Summary{Total: 3, Downloaded: 1, Skipped: 1, NotFound: 1}.ExitCode())
	// failures always fail the run
	assert.Equal(t, 1, Summary{Total: 2, Downloaded: 1, Failed: 1}.ExitCode())
	assert.Equal(t, 1, Summary{Total: 1, Downloaded: 1, Merges: 1, MergeErrors: 1}.ExitCode())
	// a run that produced nothing is a failure too
	assert.Equal(t, 1, Summary{Total: 1, NotFound: 1}.ExitCode())
	assert.Equal(t, 1, Summary{}.ExitCode())
}

// TestRenderSummary_Table tests that the summary table mentions every outcome
func TestRenderSummary_Table(t *testing.T) {
	var buf bytes.Buffer
	reporter := NewConsoleReporter(&buf)
	reporter.RenderSummary(Summarize(sampleResults(), nil, time.Second))

	out := buf.String()
	assert.Contains(t, out, "Downloaded")
	assert.Contains(t, out, "Skipped")
	assert.Contains(t, out, "Not found")
	assert.Contains(t, out, "Failed")
}

// TestRenderFailures_OnlyFailedJobs tests the failure detail table
func TestRenderFailures_OnlyFailedJobs(t *testing.T) {
	var buf bytes.Buffer
	reporter := NewConsoleReporter(&buf)
	reporter.RenderFailures(sampleResults())

	out := buf.String()
	assert.Contains(t, out, "d.zip")
	assert.Contains(t, out, "checksum mismatch")
	assert.NotContains(t, out, "a.zip")
}

// TestRenderFailures_NothingFailed tests that a clean run prints no failure table
func TestRenderFailures_NothingFailed(t *testing.T) {
	var buf bytes.Buffer
	reporter := NewConsoleReporter(&buf)
	reporter.RenderFailures(sampleResults()[:3])
	assert.Empty(t, buf.String())
}

// TestWriteResultsCSV_RoundTrip tests the CSV report layout
func TestWriteResultsCSV_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.csv")
	require.NoError(t, WriteResults(sampleResults(), Summarize(sampleResults(), nil, time.Second), path))

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()
	records, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)

	require.Len(t, records, 5)
	assert.Equal(t, "Remote_Path", records[0][0])
	assert.Equal(t, "a.zip", records[1][0])
	assert.Equal(t, "downloaded", records[1][4])
	assert.Equal(t, "checksum mismatch", records[4][8])
}

// TestWriteResults_ExcelDispatch tests that an .xlsx path produces a workbook
func TestWriteResults_ExcelDispatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.xlsx")
	require.NoError(t, WriteResults(sampleResults(), Summarize(sampleResults(), nil, time.Second), path))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0))
}
