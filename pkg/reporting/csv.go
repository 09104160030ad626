package reporting

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/happycreater/binance-historical-data/pkg/types"
)

// WriteResults writes per-job results to path, choosing the format by
// extension: .xlsx goes to the Excel writer, anything else is CSV.
func WriteResults(results []types.DownloadResult, summary Summary, path string) error {
	if strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		return WriteResultsXLSX(results, summary, path)
	}
	return WriteResultsCSV(results, path)
}

// WriteResultsCSV writes one row per job to a CSV file
func WriteResultsCSV(results []types.DownloadResult, path string) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{
		"Remote_Path",
		"Symbol",
		"Date",
		"Interval",
		"Outcome",
		"Bytes",
		"Verified",
		"Duration_Ms",
		"Error",
	}); err != nil {
		return err
	}

	for _, result := range results {
		errText := ""
		if result.Err != nil {
			errText = result.Err.Error()
		}
		record := []string{
			result.Job.RemotePath,
			result.Job.Symbol,
			result.Job.Date,
			result.Job.Interval,
			string(result.Outcome),
			strconv.FormatInt(result.BytesWritten, 10),
			strconv.FormatBool(result.Verified),
			strconv.FormatInt(result.Duration.Milliseconds(), 10),
			errText,
		}
		if err := w.Write(record); err != nil {
			return err
		}
	}
	return w.Error()
}
