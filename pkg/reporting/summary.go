package reporting

import (
	"time"

	"github.com/happycreater/binance-historical-data/pkg/types"
)

// Summary aggregates a run's outcomes for the end-of-run report
type Summary struct {
	Total           int
	Downloaded      int
	Skipped         int
	NotFound        int
	Failed          int
	BytesDownloaded int64
	Merges          int
	MergeErrors     int
	RowsAppended    int
	Duration        time.Duration
}

// Summarize folds download and merge results into a Summary
func Summarize(results []types.DownloadResult, merges []types.MergeResult, duration time.Duration) Summary {
	s := Summary{Total: len(results), Duration: duration}
	for _, result := range results {
		switch result.Outcome {
		case types.OutcomeDownloaded:
			s.Downloaded++
			s.BytesDownloaded += result.BytesWritten
		case types.OutcomeSkipped:
			s.Skipped++
		case types.OutcomeNotFound:
			s.NotFound++
		case types.OutcomeFailed:
			s.Failed++
		}
	}
	for _, merge := range merges {
		s.Merges++
		if merge.Err != nil {
			s.MergeErrors++
		}
		s.RowsAppended += merge.RowsAppended
	}
	return s
}

// ExitCode maps the summary to the process exit status: non-zero when
// anything failed or when the run accomplished nothing at all.
func (s Summary) ExitCode() int {
	if s.Failed > 0 || s.MergeErrors > 0 {
		return 1
	}
	if s.Downloaded == 0 && s.Skipped == 0 {
		return 1
	}
	return 0
}
