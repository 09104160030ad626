package orchestrator

import (
	"context"
	"sync"

	"github.com/happycreater/binance-historical-data/internal/assemble"
	"github.com/happycreater/binance-historical-data/internal/discover"
	"github.com/happycreater/binance-historical-data/internal/fetch"
	"github.com/happycreater/binance-historical-data/internal/index"
	"github.com/happycreater/binance-historical-data/internal/monitoring"
	"github.com/happycreater/binance-historical-data/internal/vision"
	"github.com/happycreater/binance-historical-data/pkg/types"
)

// Request describes one fetch run after flag parsing
type Request struct {
	Product        string
	DataType       string
	Dates          []string
	Symbols        []string
	Intervals      []string
	OutputRoot     string
	Parallel       int
	UseRemoteIndex bool
	RefreshIndex   bool
	Assemble       bool
}

// RunLog is the logging surface the orchestrator reports through
type RunLog interface {
	Info(format string, args ...interface{})
	Warning(format string, args ...interface{})
	Error(format string, args ...interface{})
}

// Orchestrator wires discovery, resolution, scheduling, download and
// assembly into the fetch pipeline.
type Orchestrator struct {
	cache      index.Store
	listing    *vision.ListingClient
	discoverer *discover.Discoverer
	downloader *fetch.Downloader
	assembler  *assemble.Assembler
	log        RunLog
}

// New creates an orchestrator from its collaborators. assembler may be nil
// when the merge stage is disabled.
func New(cache index.Store, listing *vision.ListingClient, discoverer *discover.Discoverer,
	downloader *fetch.Downloader, assembler *assemble.Assembler, log RunLog) *Orchestrator {
	return &Orchestrator{
		cache:      cache,
		listing:    listing,
		discoverer: discoverer,
		downloader: downloader,
		assembler:  assembler,
		log:        log,
	}
}

// Run executes the full pipeline for one request. Input validation happens
// before any I/O; every per-job error stays confined to its result.
func (o *Orchestrator) Run(ctx context.Context, req Request) ([]types.DownloadResult, []types.MergeResult, error) {
	byDay, start, end, err := vision.ValidateDates(req.Dates)
	if err != nil {
		return nil, nil, err
	}
	if err := vision.ValidateParams(req.Product, req.DataType, byDay, req.Intervals); err != nil {
		return nil, nil, err
	}
	dates, err := vision.GenerateDates(byDay, start, end)
	if err != nil {
		return nil, nil, err
	}

	symbols, err := o.discoverer.Resolve(ctx, req.Product, req.DataType, byDay, req.Symbols)
	if err != nil {
		return nil, nil, err
	}
	o.log.Info("resolved %d symbols for %s/%s", len(symbols), req.Product, req.DataType)

	available := o.availableKeys(ctx, req, byDay, symbols)

	resolver := &vision.Resolver{
		Product:    req.Product,
		DataType:   req.DataType,
		ByDay:      byDay,
		OutputRoot: req.OutputRoot,
	}
	jobs := resolver.Jobs(dates, symbols, req.Intervals, available)
	o.log.Info("total number of files to load: %d", len(jobs))

	scheduler := fetch.NewScheduler(req.Parallel)
	resultCh := scheduler.Run(ctx, jobs, o.downloader)

	var (
		results []types.DownloadResult
		merges  []types.MergeResult
		mergeMu sync.Mutex
		mergeWg sync.WaitGroup
	)
	for result := range resultCh {
		results = append(results, result)
		if o.assembler != nil && req.Assemble &&
			result.Outcome == types.OutcomeDownloaded && result.Verified {
			o.dispatchMerge(&mergeWg, &mergeMu, &merges, req, byDay, result)
		}
	}
	mergeWg.Wait()

	return results, merges, nil
}

// dispatchMerge hands an accepted archive to the assembler. Merges for
// distinct dataset keys run concurrently; the assembler serializes within
// a key and its dedup-and-sort pass makes completion order irrelevant.
func (o *Orchestrator) dispatchMerge(wg *sync.WaitGroup, mu *sync.Mutex, merges *[]types.MergeResult,
	req Request, byDay bool, result types.DownloadResult) {
	key := types.DatasetKey{
		Pattern: vision.Pattern(req.Product, req.DataType, result.Job.Interval, byDay),
		Symbol:  result.Job.Symbol,
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		merge := o.assembler.Merge(key, result.Job.LocalPath)
		if merge.Err != nil {
			o.log.Error("merge failed for %s: %v", result.Job.LocalPath, merge.Err)
		}
		mu.Lock()
		*merges = append(*merges, merge)
		mu.Unlock()
	}()
}

// availableKeys builds the set of remote keys known to exist, consulting
// the index cache first and the listing service on misses. Any listing
// failure degrades the whole run to URL probing (nil set) rather than
// failing it.
func (o *Orchestrator) availableKeys(ctx context.Context, req Request, byDay bool, symbols []string) map[string]struct{} {
	if !req.UseRemoteIndex {
		return nil
	}

	intervals := req.Intervals
	if !vision.HasInterval(req.DataType) {
		intervals = []string{""}
	}

	available := make(map[string]struct{})
	for _, symbol := range symbols {
		for _, interval := range intervals {
			prefix := vision.BuildPrefix(req.Product, req.DataType, symbol, interval, byDay)

			var keys []string
			hit := false
			if req.RefreshIndex {
				if err := o.cache.Invalidate(prefix); err != nil {
					o.log.Warning("failed to invalidate index for %s: %v", prefix, err)
				}
			} else {
				keys, hit = o.cache.Lookup(prefix)
			}
			monitoring.RecordIndexLookup(hit)
			if !hit {
				remote, err := o.listing.ListKeys(ctx, prefix)
				if err != nil {
					o.log.Warning("remote index unavailable for %s, falling back to URL probing: %v", prefix, err)
					return nil
				}
				keys = remote
				if err := o.cache.Store(prefix, keys); err != nil {
					o.log.Warning("failed to persist index for %s: %v", prefix, err)
				}
			}
			for _, key := range keys {
				available[key] = struct{}{}
			}
		}
	}
	return available
}
