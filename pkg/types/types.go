package types

import "time"

// Job represents a single remote archive to fetch. Its identity is the
// remote path; date/symbol/interval uniquely determine both paths, so two
// distinct jobs never share a local target.
type Job struct {
	RemotePath string // relative path under the data.binance.vision root
	LocalPath  string // mirrored absolute path under the output root
	Symbol     string
	Date       string
	Interval   string // empty for data types without interval segments
}

// Outcome classifies how a job finished.
type Outcome string

const (
	OutcomeDownloaded Outcome = "downloaded"
	OutcomeSkipped    Outcome = "skipped"
	OutcomeNotFound   Outcome = "not_found"
	OutcomeFailed     Outcome = "failed"
)

// DownloadResult is produced exactly once per job.
type DownloadResult struct {
	Job          Job
	Outcome      Outcome
	BytesWritten int64
	Verified     bool
	Duration     time.Duration
	Err          error
}

// RemoteEntry is one child of a listed remote prefix.
type RemoteEntry struct {
	Name  string
	IsDir bool
}

// DatasetKey identifies one merged per-symbol dataset.
type DatasetKey struct {
	Pattern string // path template with the SYMBOL placeholder, e.g. data/spot/daily/klines/SYMBOL/1m/
	Symbol  string
}

// KlineRow is one decoded row of an archive's CSV member, keyed by its
// open-time column.
type KlineRow struct {
	OpenTime int64
	Fields   []string
}

// MergeResult reports the outcome of folding one archive into a dataset.
type MergeResult struct {
	Key          DatasetKey
	ArchivePath  string
	RowsDecoded  int
	RowsAppended int
	Err          error
}
