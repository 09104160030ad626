package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Download pipeline metrics
	jobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "binance_fetch_jobs_total",
			Help: "Total number of download jobs by outcome",
		},
		[]string{"outcome"},
	)

	bytesDownloaded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "binance_fetch_bytes_downloaded_total",
			Help: "Total bytes written for verified downloads",
		},
	)

	// Index cache metrics
	indexLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "binance_fetch_index_lookups_total",
			Help: "Index cache lookups by result",
		},
		[]string{"result"},
	)

	// Assembler metrics
	mergesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "binance_fetch_merges_total",
			Help: "Dataset merges by result",
		},
		[]string{"result"},
	)

	rowsAppended = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "binance_fetch_rows_appended_total",
			Help: "Rows appended to datasets after deduplication",
		},
	)
)

func init() {
	prometheus.MustRegister(jobsTotal)
	prometheus.MustRegister(bytesDownloaded)
	prometheus.MustRegister(indexLookups)
	prometheus.MustRegister(mergesTotal)
	prometheus.MustRegister(rowsAppended)
}

// RecordJob records a finished job
func RecordJob(outcome string, bytes int64) {
	jobsTotal.WithLabelValues(outcome).Inc()
	if bytes > 0 {
		bytesDownloaded.Add(float64(bytes))
	}
}

// RecordIndexLookup records an index cache hit or miss
func RecordIndexLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	indexLookups.WithLabelValues(result).Inc()
}

// RecordMerge records a dataset merge
func RecordMerge(err error, rows int) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	mergesTotal.WithLabelValues(result).Inc()
	if rows > 0 {
		rowsAppended.Add(float64(rows))
	}
}

// StartMetricsServer exposes /metrics on addr. The listener error is
// returned through errCh so the caller can log it without blocking.
func StartMetricsServer(addr string) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		errCh <- http.ListenAndServe(addr, mux)
	}()
	return errCh
}
