package orchestrator

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/happycreater/binance-historical-data/internal/assemble"
	"github.com/happycreater/binance-historical-data/internal/discover"
	"github.com/happycreater/binance-historical-data/internal/errors"
	"github.com/happycreater/binance-historical-data/internal/fetch"
	"github.com/happycreater/binance-historical-data/internal/index"
	"github.com/happycreater/binance-historical-data/internal/vision"
	"github.com/happycreater/binance-historical-data/pkg/types"
)

// testLog discards pipeline log lines
type testLog struct{}

func (testLog) Info(format string, args ...interface{})    {}
func (testLog) Warning(format string, args ...interface{}) {}
func (testLog) Error(format string, args ...interface{})   {}

// dataTree simulates the remote file tree: a landing page, an S3-style
// listing endpoint derived from the archive keys, and the archives
// themselves. Checksum sidecars answer 404.
type dataTree struct {
	archives map[string][]byte
}

func (d *dataTree) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	mux.HandleFunc("/bucket", func(w http.ResponseWriter, r *http.Request) {
		d.renderListing(w, r.URL.Query().Get("prefix"))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			fmt.Fprintf(w, "<html><script>var BUCKET_URL = '%s/bucket';</script></html>", server.URL)
			return
		}
		path := strings.TrimPrefix(r.URL.Path, "/")
		if body, ok := d.archives[path]; ok {
			w.Header().Set("Content-Type", "application/octet-stream")
			w.Write(body)
			return
		}
		http.NotFound(w, r)
	})
	return server
}

// renderListing answers one unpaginated ListObjects response for a prefix
func (d *dataTree) renderListing(w http.ResponseWriter, pfx string) {
	dirs := make(map[string]struct{})
	var files []string
	for key := range d.archives {
		if !strings.HasPrefix(key, pfx) {
			continue
		}
		rest := strings.TrimPrefix(key, pfx)
		if idx := strings.Index(rest, "/"); idx >= 0 {
			dirs[rest[:idx]] = struct{}{}
		} else {
			files = append(files, key)
		}
	}
	sort.Strings(files)

	var buf bytes.Buffer
	buf.WriteString("<ListBucketResult><IsTruncated>false</IsTruncated>")
	for dir := range dirs {
		fmt.Fprintf(&buf, "<CommonPrefixes><Prefix>%s%s/</Prefix></CommonPrefixes>", pfx, dir)
	}
	for _, file := range files {
		fmt.Fprintf(&buf, "<Contents><Key>%s</Key></Contents>", file)
	}
	buf.WriteString("</ListBucketResult>")

	w.Header().Set("Content-Type", "application/xml")
	w.Write(buf.Bytes())
}

// klineArchive builds a zip holding hourly kline rows starting at openTime
func klineArchive(t *testing.T, openTime int64, hours int) []byte {
	t.Helper()
	var raw bytes.Buffer
	cw := csv.NewWriter(&raw)
	for i := 0; i < hours; i++ {
		open := openTime + int64(i)*3600000
		require.NoError(t, cw.Write([]string{
			fmt.Sprint(open), "30000", "31000", "29500", "30500", "12.3",
			fmt.Sprint(open + 3599999), "370000", "100", "6.1", "185000", "0",
		}))
	}
	cw.Flush()

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	member, err := zw.Create("klines.csv")
	require.NoError(t, err)
	_, err = member.Write(raw.Bytes())
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

// newPipeline wires a complete orchestrator against the fixture tree
func newPipeline(t *testing.T, tree *dataTree, outputRoot, datasetRoot string) *Orchestrator {
	t.Helper()
	server := tree.server(t)

	cache := index.NewFileStore(outputRoot)
	listing := vision.NewListingClientWithBaseURL(server.Client(), server.URL)
	symbolAPI := vision.NewSymbolAPIClientWithEndpoints(server.Client(), map[string]string{})
	discoverer := discover.NewDiscoverer(cache, listing, symbolAPI)
	downloader := fetch.NewDownloaderWithBaseURL(server.Client(), server.URL, nil)
	assembler := assemble.NewAssembler(datasetRoot)

	return New(cache, listing, discoverer, downloader, assembler, testLog{})
}

const (
	keyDay1 = "data/spot/daily/klines/BTCUSDT/1h/BTCUSDT-1h-2021-01-01.zip"
	keyDay2 = "data/spot/daily/klines/BTCUSDT/1h/BTCUSDT-1h-2021-01-02.zip"
)

func spotRequest(outputRoot string) Request {
	return Request{
		Product:        "spot",
		DataType:       "klines",
		Dates:          []string{"2021-01-01", "2021-01-02"},
		Symbols:        []string{"*USDT"},
		Intervals:      []string{"1h"},
		OutputRoot:     outputRoot,
		Parallel:       2,
		UseRemoteIndex: true,
		Assemble:       true,
	}
}

// TestRun_EndToEnd tests the full pipeline: wildcard discovery, index-filtered
// resolution, download, verification and dataset assembly.
func TestRun_EndToEnd(t *testing.T) {
	tree := &dataTree{archives: map[string][]byte{
		keyDay1: klineArchive(t, 1609459200000, 3),
		keyDay2: klineArchive(t, 1609545600000, 3),
	}}
	outputRoot := t.TempDir()
	datasetRoot := t.TempDir()
	orch := newPipeline(t, tree, outputRoot, datasetRoot)

	results, merges, err := orch.Run(context.Background(), spotRequest(outputRoot))
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, result := range results {
		assert.Equal(t, types.OutcomeDownloaded, result.Outcome)
		assert.True(t, result.Verified)
		assert.FileExists(t, result.Job.LocalPath)
	}

	require.Len(t, merges, 2)
	appended := 0
	for _, merge := range merges {
		require.NoError(t, merge.Err)
		appended += merge.RowsAppended
	}
	assert.Equal(t, 6, appended)

	datasetPath := filepath.Join(datasetRoot,
		filepath.FromSlash("data/spot/daily/klines/SYMBOL/1h"), "symbol=BTCUSDT", assemble.DatasetFileName)
	file, err := os.Open(datasetPath)
	require.NoError(t, err)
	defer file.Close()
	records, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 7)
	// rows are date-ascending regardless of completion order
	for i := 2; i < len(records); i++ {
		assert.Less(t, records[i-1][0], records[i][0])
	}
}

// TestRun_RerunSkipsEverything tests that a second identical run downloads nothing
func TestRun_RerunSkipsEverything(t *testing.T) {
	tree := &dataTree{archives: map[string][]byte{
		keyDay1: klineArchive(t, 1609459200000, 2),
		keyDay2: klineArchive(t, 1609545600000, 2),
	}}
	outputRoot := t.TempDir()
	orch := newPipeline(t, tree, outputRoot, t.TempDir())

	_, _, err := orch.Run(context.Background(), spotRequest(outputRoot))
	require.NoError(t, err)

	results, merges, err := orch.Run(context.Background(), spotRequest(outputRoot))
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, result := range results {
		assert.Equal(t, types.OutcomeSkipped, result.Outcome)
	}
	assert.Empty(t, merges)
}

// TestRun_IndexFiltersMissingDates tests that the remote index prevents probing absent archives
func TestRun_IndexFiltersMissingDates(t *testing.T) {
	tree := &dataTree{archives: map[string][]byte{
		keyDay1: klineArchive(t, 1609459200000, 2),
	}}
	outputRoot := t.TempDir()
	orch := newPipeline(t, tree, outputRoot, t.TempDir())

	req := spotRequest(outputRoot)
	req.Dates = []string{"2021-01-01", "2021-01-05"}
	results, _, err := orch.Run(context.Background(), req)
	require.NoError(t, err)

	// only the one published archive becomes a job
	require.Len(t, results, 1)
	assert.Equal(t, types.OutcomeDownloaded, results[0].Outcome)
	assert.Equal(t, "2021-01-01", results[0].Job.Date)
}

// TestRun_InputErrorAbortsBeforeIO tests that validation failures abort the run
func TestRun_InputErrorAbortsBeforeIO(t *testing.T) {
	outputRoot := t.TempDir()
	orch := newPipeline(t, &dataTree{archives: map[string][]byte{}}, outputRoot, t.TempDir())

	req := spotRequest(outputRoot)
	req.Dates = []string{"01-01-2021"}
	_, _, err := orch.Run(context.Background(), req)
	require.Error(t, err)
	assert.True(t, errors.IsInputError(err))

	req = spotRequest(outputRoot)
	req.Intervals = nil
	_, _, err = orch.Run(context.Background(), req)
	require.Error(t, err)
	assert.True(t, errors.IsInputError(err))
}

// TestRun_LiteralSymbolsWithoutListing tests the probing path with the index disabled
func TestRun_LiteralSymbolsWithoutListing(t *testing.T) {
	tree := &dataTree{archives: map[string][]byte{
		keyDay1: klineArchive(t, 1609459200000, 2),
	}}
	outputRoot := t.TempDir()
	orch := newPipeline(t, tree, outputRoot, t.TempDir())

	req := spotRequest(outputRoot)
	req.Symbols = []string{"BTCUSDT"}
	req.Dates = []string{"2021-01-01", "2021-01-02"}
	req.UseRemoteIndex = false
	results, _, err := orch.Run(context.Background(), req)
	require.NoError(t, err)

	// without the index every date is probed; the absent one is NotFound
	require.Len(t, results, 2)
	byDate := map[string]types.Outcome{}
	for _, result := range results {
		byDate[result.Job.Date] = result.Outcome
	}
	assert.Equal(t, types.OutcomeDownloaded, byDate["2021-01-01"])
	assert.Equal(t, types.OutcomeNotFound, byDate["2021-01-02"])
}
