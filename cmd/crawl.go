package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/JakeFAU/pagecrawl/internal/clock/system"
	"github.com/JakeFAU/pagecrawl/internal/config"
	"github.com/JakeFAU/pagecrawl/internal/crawler"
	"github.com/JakeFAU/pagecrawl/internal/extract"
	collyfetcher "github.com/JakeFAU/pagecrawl/internal/fetcher/colly"
	"github.com/JakeFAU/pagecrawl/internal/id/uuid"
	"github.com/JakeFAU/pagecrawl/internal/logging"
	"github.com/JakeFAU/pagecrawl/internal/metrics"
	"github.com/JakeFAU/pagecrawl/internal/output"
	"github.com/JakeFAU/pagecrawl/internal/pipeline"
	"github.com/JakeFAU/pagecrawl/internal/report"
	"github.com/JakeFAU/pagecrawl/internal/report/postgres"
	"github.com/JakeFAU/pagecrawl/internal/report/pubsub"
	"github.com/JakeFAU/pagecrawl/internal/storage/gcs"
	"github.com/JakeFAU/pagecrawl/internal/storage/local"
	"github.com/JakeFAU/pagecrawl/internal/storage/memory"
)

// crawlFlags maps CLI flags onto config keys.
var crawlFlags = []struct {
	flag string
	key  string
}{
	{"url", "crawl.url"},
	{"filename", "crawl.filename"},
	{"num-pages", "crawl.num_pages"},
	{"format", "crawl.format"},
	{"queue", "crawl.queue"},
	{"debug", "crawl.debug"},
	{"num-put-workers", "workers.put"},
	{"num-save-workers", "workers.save"},
	{"num-parse-workers", "workers.parse"},
	{"queue-capacity", "queue.capacity"},
	{"generate-delay", "throttle.generate_delay"},
	{"fetch-delay", "throttle.fetch_delay"},
	{"max-attempts", "retry.max_attempts"},
	{"cache-dir", "paths.cache_dir"},
	{"output-dir", "paths.output_dir"},
	{"metrics-addr", "metrics.addr"},
}

// newCrawlCmd creates the 'crawl' subcommand.
func newCrawlCmd(v *viper.Viper, opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Crawl pages 1..N of a listing",
		Long: `Fetches {url}?page=1 through {url}?page=N, caches each body as
{cache_dir}/{filename}{n}.html, extracts records and writes them to
{output_dir}/{filename}.{format}. With --queue the stages run as concurrent
worker pools; otherwise pages are processed strictly in order.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawl(cmd.Context(), v, opts)
		},
	}

	f := cmd.Flags()
	registerCrawlFlags(f)
	f.SetNormalizeFunc(underscoreToDash)

	for _, b := range crawlFlags {
		if err := v.BindPFlag(b.key, f.Lookup(b.flag)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", b.flag, err))
		}
	}
	return cmd
}

// registerCrawlFlags declares the crawl flags and their defaults on f.
func registerCrawlFlags(f *pflag.FlagSet) {
	f.String("url", "", "listing URL; ?page=n is appended")
	f.String("filename", "", "base name for cached pages and output files")
	f.Int("num-pages", 5, "number of pages to crawl")
	f.String("format", "json", "output format: json, csv or xlsx")
	f.Bool("queue", false, "run the concurrent queue pipeline")
	f.Bool("debug", false, "development logging and stricter validation")
	f.Int("num-put-workers", 1, "URL generator workers")
	f.Int("num-save-workers", 1, "fetch and cache workers")
	f.Int("num-parse-workers", 1, "extract and write workers")
	f.Int("queue-capacity", 64, "capacity of each work queue")
	f.Duration("generate-delay", 500*time.Millisecond, "interval between generated page requests")
	f.Duration("fetch-delay", 500*time.Millisecond, "pause before each fetch attempt")
	f.Int("max-attempts", 5, "fetch attempts per page; 0 retries forever")
	f.String("cache-dir", "html_data", "directory for cached pages")
	f.String("output-dir", "output", "directory for output files and meta.csv")
	f.String("metrics-addr", "", "serve /metrics and /healthz on this address during the run")
}

// underscoreToDash accepts --num_pages style spellings for every flag.
func underscoreToDash(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

func runCrawl(ctx context.Context, v *viper.Viper, opts *rootOptions) error {
	if err := config.LoadDotEnv(opts.envFile); err != nil {
		return err
	}
	cfg, err := config.Load(v, opts.configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Crawl.Debug)
	if err != nil {
		return err
	}
	defer logging.Sync(logger) //nolint:errcheck // best-effort flush

	stopMetrics := startMetricsServer(cfg.Metrics.Addr, logger)
	defer stopMetrics()

	cache, closeCache, err := buildPageCache(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init page cache: %w", err)
	}
	defer closeCache()

	writer, err := output.New(cfg.OutputFormat(), output.Config{
		Dir:      cfg.Paths.OutputDir,
		Filename: cfg.Crawl.Filename,
		Columns:  cfg.Output.Columns,
	})
	if err != nil {
		return fmt.Errorf("init writer: %w", err)
	}

	coord, err := pipeline.New(pipelineConfig(cfg), pipeline.Deps{
		Fetcher: collyfetcher.New(collyfetcher.Config{
			UserAgent:     cfg.HTTP.UserAgent,
			RespectRobots: cfg.HTTP.RespectRobots,
			Timeout:       cfg.HTTP.Timeout,
			MaxBodyBytes:  cfg.HTTP.MaxBodyBytes,
		}),
		Cache: cache,
		Extractor: extract.New(extract.Config{
			PrimarySelector:   cfg.Extract.PrimarySelector,
			SecondarySelector: cfg.Extract.SecondarySelector,
		}),
		Writer: writer,
		Logger: logger,
	})
	if err != nil {
		_ = writer.Close()
		return fmt.Errorf("init pipeline: %w", err)
	}

	clock := system.New()
	start := clock.Now()
	var records int64
	if cfg.Crawl.Queue {
		records, err = coord.Run(ctx)
	} else {
		records, err = coord.RunSequential(ctx)
	}
	if closeErr := writer.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	end := clock.Now()
	if err != nil {
		logger.Error("Crawl failed", zap.Error(err), zap.Int64("records_written", records))
		return fmt.Errorf("crawl: %w", err)
	}

	sinks, closeSinks := buildSinks(ctx, cfg, logger)
	defer closeSinks()
	reporter := report.New(cfg.Paths.OutputDir, uuid.New(), logger, sinks...)
	summary := reporter.Summarize(start, end, cfg.Crawl.NumPages, records)
	if err := reporter.Write(ctx, summary); err != nil {
		logger.Warn("Run summary incomplete", zap.Error(err))
	}

	logger.Info("Crawl command finished",
		zap.String("run_id", summary.RunID),
		zap.Int64("records_written", records),
		zap.Duration("duration", summary.Duration()),
	)
	return nil
}

func pipelineConfig(cfg config.Config) pipeline.Config {
	return pipeline.Config{
		BaseURL:         cfg.Crawl.URL,
		NumPages:        cfg.Crawl.NumPages,
		GenerateWorkers: cfg.Workers.Put,
		FetchWorkers:    cfg.Workers.Save,
		ExtractWorkers:  cfg.Workers.Parse,
		QueueCapacity:   cfg.Queue.Capacity,
		GenerateDelay:   cfg.Throttle.GenerateDelay,
		FetchDelay:      cfg.Throttle.FetchDelay,
		Retry:           cfg.RetryPolicy(),
	}
}

func buildPageCache(ctx context.Context, cfg config.Config) (crawler.PageCache, func(), error) {
	switch cfg.Cache.Backend {
	case config.CacheGCS:
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("create gcs client: %w", err)
		}
		cache, err := gcs.New(client, gcs.Config{
			Bucket:   cfg.Cache.GCSBucket,
			Prefix:   cfg.Cache.GCSPrefix,
			Filename: cfg.Crawl.Filename,
		})
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return cache, func() { _ = client.Close() }, nil
	case config.CacheMemory:
		return memory.NewPageCache(), func() {}, nil
	default:
		cache, err := local.New(local.Config{BaseDir: cfg.Paths.CacheDir, Filename: cfg.Crawl.Filename})
		if err != nil {
			return nil, nil, err
		}
		return cache, func() {}, nil
	}
}

// buildSinks connects the optional run summary sinks. A sink that cannot be
// set up is skipped with a warning.
func buildSinks(ctx context.Context, cfg config.Config, logger *zap.Logger) ([]report.Sink, func()) {
	var (
		sinks   []report.Sink
		closers []func()
	)
	if cfg.Report.PostgresDSN != "" {
		store, err := postgres.NewRunStore(ctx, postgres.Config{
			DSN:   cfg.Report.PostgresDSN,
			Table: cfg.Report.PostgresTable,
		})
		if err != nil {
			logger.Warn("Postgres run store disabled", zap.Error(err))
		} else {
			sinks = append(sinks, store)
			closers = append(closers, store.Close)
		}
	}
	if cfg.Report.PubSubProject != "" {
		notifier, closeFn, err := pubsub.Connect(ctx, cfg.Report.PubSubProject, cfg.Report.PubSubTopic)
		if err != nil {
			logger.Warn("Pub/Sub notifier disabled", zap.Error(err))
		} else {
			sinks = append(sinks, notifier)
			closers = append(closers, func() {
				if err := closeFn(); err != nil {
					logger.Warn("Failed to close pubsub client", zap.Error(err))
				}
			})
		}
	}
	return sinks, func() {
		for _, c := range closers {
			c()
		}
	}
}

// startMetricsServer serves metrics.Router on addr until the returned stop
// function is called. An empty addr disables it.
func startMetricsServer(addr string, logger *zap.Logger) func() {
	if addr == "" {
		return func() {}
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           metrics.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("Metrics server stopped", zap.Error(err))
		}
	}()
	logger.Info("Serving metrics", zap.String("addr", addr))
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("Metrics server shutdown failed", zap.Error(err))
		}
	}
}
