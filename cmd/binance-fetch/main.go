package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/happycreater/binance-historical-data/internal/assemble"
	"github.com/happycreater/binance-historical-data/internal/config"
	"github.com/happycreater/binance-historical-data/internal/discover"
	fetcherrors "github.com/happycreater/binance-historical-data/internal/errors"
	"github.com/happycreater/binance-historical-data/internal/fetch"
	"github.com/happycreater/binance-historical-data/internal/index"
	"github.com/happycreater/binance-historical-data/internal/logger"
	"github.com/happycreater/binance-historical-data/internal/monitoring"
	"github.com/happycreater/binance-historical-data/internal/orchestrator"
	"github.com/happycreater/binance-historical-data/internal/vision"
	"github.com/happycreater/binance-historical-data/pkg/reporting"
)

func main() {
	os.Exit(run())
}

func run() int {
	var (
		date         = flag.String("date", "", "Date or date range, comma separated (YYYY-MM-DD for daily, YYYY-MM for monthly)")
		product      = flag.String("product", "", "Product type: spot, usd-m, coin-m, option")
		dataType     = flag.String("data-type", "", "Data type (e.g. klines, aggTrades, trades, fundingRate)")
		symbols      = flag.String("symbols", "", "Comma-separated symbols; wildcards like '*USDT' supported; omit for all symbols")
		intervals    = flag.String("intervals", "", "Comma-separated intervals (required for kline data types)")
		output       = flag.String("output", "", "Root path for downloads; the remote path is mirrored under it")
		parallel     = flag.Int("parallel", 0, "Number of concurrent downloads (1 = sequential)")
		configPath   = flag.String("config", "", "YAML config file path")
		envFile      = flag.String("env", ".env", "Environment file path")
		noRemoteIdx  = flag.Bool("no-remote-index", false, "Disable remote index listing (falls back to URL probing)")
		refreshIndex = flag.Bool("refresh-index", false, "Ignore cached index listings and re-fetch them")
		doAssemble   = flag.Bool("assemble", false, "Merge downloaded archives into per-symbol datasets")
		datasetRoot  = flag.String("dataset-root", "", "Root path for merged datasets")
		report       = flag.String("report", "", "Write per-job results to this path (.csv or .xlsx)")
		apiProxy     = flag.String("api-proxy", "", "Proxy URL for Binance API requests (symbol discovery)")
		dataProxy    = flag.String("data-proxy", "", "Proxy URL for data.binance.vision requests")
		metricsAddr  = flag.String("metrics-addr", "", "Expose Prometheus metrics on this address (e.g. :9090)")
		noEmojis     = flag.Bool("no-emojis", false, "Disable emoji output")
		silent       = flag.Bool("silent", false, "Minimal console output")
	)
	flag.StringVar(date, "d", "", "Shorthand for -date")
	flag.StringVar(product, "p", "", "Shorthand for -product")
	flag.StringVar(dataType, "t", "", "Shorthand for -data-type")
	flag.StringVar(symbols, "s", "", "Shorthand for -symbols")
	flag.StringVar(intervals, "i", "", "Shorthand for -intervals")
	flag.StringVar(output, "o", "", "Shorthand for -output")
	flag.IntVar(parallel, "P", 0, "Shorthand for -parallel")
	flag.Parse()

	console := NewConsoleLogger()
	console.ShowEmojis = !*noEmojis
	console.SilentMode = *silent

	cfg, err := config.Load(*configPath)
	if err != nil {
		console.Error("%v", err)
		return 2
	}
	cfg.ApplyEnv(*envFile)
	if *output != "" {
		cfg.OutputRoot = *output
	}
	if *datasetRoot != "" {
		cfg.DatasetRoot = *datasetRoot
	}
	if *parallel > 0 {
		cfg.Parallel = *parallel
	}
	if *apiProxy != "" {
		cfg.APIProxy = *apiProxy
	}
	if *dataProxy != "" {
		cfg.DataProxy = *dataProxy
	}
	if *noRemoteIdx {
		cfg.NoRemoteIndex = true
	}
	if *doAssemble {
		cfg.Assemble = true
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}

	validator := NewFlagValidator()
	validator.ValidateRequired("-date", *date)
	validator.ValidateRequired("-product", *product)
	validator.ValidateRequired("-data-type", *dataType)
	if *product != "" {
		validator.ValidateChoice("-product", *product, vision.Products)
	}
	validator.ValidateInt("-parallel", cfg.Parallel, 1, 64)
	if validator.HasErrors() {
		validator.PrintErrors()
		flag.Usage()
		return 2
	}

	outputRoot, err := filepath.Abs(cfg.OutputRoot)
	if err != nil {
		console.Error("invalid output path: %v", err)
		return 2
	}

	runLog, err := logger.NewRunLogger(outputRoot)
	if err != nil {
		console.Error("failed to open run log: %v", err)
		return 1
	}
	defer runLog.Close()

	log := &teeLog{file: runLog, console: console}

	if cfg.MetricsAddr != "" {
		errCh := monitoring.StartMetricsServer(cfg.MetricsAddr)
		go func() {
			if err := <-errCh; err != nil {
				log.Warning("metrics server stopped: %v", err)
			}
		}()
	}

	apiClient, err := config.NewHTTPClient(cfg.APIProxy, 30*time.Second)
	if err != nil {
		console.Error("%v", err)
		return 2
	}
	dataClient, err := config.NewHTTPClient(cfg.DataProxy, 10*time.Minute)
	if err != nil {
		console.Error("%v", err)
		return 2
	}
	listingClient, err := config.NewHTTPClient(cfg.DataProxy, 60*time.Second)
	if err != nil {
		console.Error("%v", err)
		return 2
	}

	cache := index.NewFileStore(outputRoot)
	listing := vision.NewListingClient(listingClient)
	symbolAPI := vision.NewSymbolAPIClient(apiClient)

	var opts []discover.Option
	if cfg.NoRemoteIndex {
		opts = append(opts, discover.WithoutRemoteIndex())
	}
	if *refreshIndex {
		opts = append(opts, discover.WithRefresh())
	}
	discoverer := discover.NewDiscoverer(cache, listing, symbolAPI, opts...)

	downloader := fetch.NewDownloader(dataClient, runLog)

	var assembler *assemble.Assembler
	if cfg.Assemble {
		assembler = assemble.NewAssembler(cfg.DatasetRoot)
	}

	orch := orchestrator.New(cache, listing, discoverer, downloader, assembler, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	console.Header("binance historical data fetch")
	console.Info("saving to %s", outputRoot)
	log.Info("fetching %s %s data, dates=%s symbols=%s intervals=%s parallel=%d",
		*product, *dataType, *date, *symbols, *intervals, cfg.Parallel)

	start := time.Now()
	results, merges, err := orch.Run(ctx, orchestrator.Request{
		Product:        *product,
		DataType:       *dataType,
		Dates:          splitList(*date),
		Symbols:        splitList(*symbols),
		Intervals:      splitList(*intervals),
		OutputRoot:     outputRoot,
		Parallel:       cfg.Parallel,
		UseRemoteIndex: !cfg.NoRemoteIndex,
		RefreshIndex:   *refreshIndex,
		Assemble:       cfg.Assemble,
	})
	if err != nil {
		console.Error("%v", err)
		runLog.Error("%v", err)
		if fetcherrors.IsInputError(err) {
			return 2
		}
		return 1
	}

	summary := reporting.Summarize(results, merges, time.Since(start))
	runLog.Info("downloaded: %d/%d; not found: %d/%d; skipped: %d/%d; failed: %d/%d",
		summary.Downloaded, summary.Total, summary.NotFound, summary.Total,
		summary.Skipped, summary.Total, summary.Failed, summary.Total)

	if !*silent {
		reporter := reporting.NewConsoleReporter(os.Stdout)
		reporter.RenderSummary(summary)
		reporter.RenderFailures(results)
	}

	if *report != "" {
		if err := reporting.WriteResults(results, summary, *report); err != nil {
			console.Error("failed to write report: %v", err)
			return 1
		}
		console.Success("report written to %s", *report)
	}

	if code := summary.ExitCode(); code != 0 {
		return code
	}
	console.Success("done in %s", time.Since(start).Round(time.Millisecond))
	return 0
}
