// Package config loads and validates crawl configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/JakeFAU/pagecrawl/internal/crawler"
	"github.com/JakeFAU/pagecrawl/internal/output"
)

// EnvPrefix is prepended to every environment override, e.g. PAGECRAWL_CRAWL_URL.
const EnvPrefix = "PAGECRAWL"

// MaxDebugPages caps num_pages when debug checks are on.
const MaxDebugPages = 1000

// Config captures every crawl knob loaded via Viper.
type Config struct {
	Crawl    CrawlConfig    `mapstructure:"crawl"`
	Workers  WorkersConfig  `mapstructure:"workers"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Throttle ThrottleConfig `mapstructure:"throttle"`
	Retry    RetryConfig    `mapstructure:"retry"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Paths    PathsConfig    `mapstructure:"paths"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Extract  ExtractConfig  `mapstructure:"extract"`
	Output   OutputConfig   `mapstructure:"output"`
	Report   ReportConfig   `mapstructure:"report"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// CrawlConfig selects what to crawl and how.
type CrawlConfig struct {
	URL      string `mapstructure:"url"`
	Filename string `mapstructure:"filename"`
	NumPages int    `mapstructure:"num_pages"`
	Format   string `mapstructure:"format"`
	Queue    bool   `mapstructure:"queue"`
	Debug    bool   `mapstructure:"debug"`
}

// WorkersConfig sizes the three pools.
type WorkersConfig struct {
	Put   int `mapstructure:"put"`
	Save  int `mapstructure:"save"`
	Parse int `mapstructure:"parse"`
}

// QueueConfig bounds both work queues.
type QueueConfig struct {
	Capacity int `mapstructure:"capacity"`
}

// ThrottleConfig paces URL generation and fetches.
type ThrottleConfig struct {
	GenerateDelay time.Duration `mapstructure:"generate_delay"`
	FetchDelay    time.Duration `mapstructure:"fetch_delay"`
}

// RetryConfig controls fetch retries. MaxAttempts 0 retries forever.
type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
}

// HTTPConfig configures the fetcher.
type HTTPConfig struct {
	Timeout       time.Duration `mapstructure:"timeout"`
	UserAgent     string        `mapstructure:"user_agent"`
	RespectRobots bool          `mapstructure:"respect_robots"`
	MaxBodyBytes  int           `mapstructure:"max_body_bytes"`
}

// PathsConfig sets local directories.
type PathsConfig struct {
	CacheDir  string `mapstructure:"cache_dir"`
	OutputDir string `mapstructure:"output_dir"`
}

// CacheConfig picks the page cache backend.
type CacheConfig struct {
	Backend   string `mapstructure:"backend"`
	GCSBucket string `mapstructure:"gcs_bucket"`
	GCSPrefix string `mapstructure:"gcs_prefix"`
}

// ExtractConfig overrides the record selectors.
type ExtractConfig struct {
	PrimarySelector   string `mapstructure:"primary_selector"`
	SecondarySelector string `mapstructure:"secondary_selector"`
}

// OutputConfig tunes the writers.
type OutputConfig struct {
	Columns []string `mapstructure:"columns"`
}

// ReportConfig enables optional run summary sinks.
type ReportConfig struct {
	PostgresDSN   string `mapstructure:"postgres_dsn"`
	PostgresTable string `mapstructure:"postgres_table"`
	PubSubProject string `mapstructure:"pubsub_project"`
	PubSubTopic   string `mapstructure:"pubsub_topic"`
}

// MetricsConfig enables the metrics endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Cache backends.
const (
	CacheLocal  = "local"
	CacheGCS    = "gcs"
	CacheMemory = "memory"
)

// LoadDotEnv loads variables from the given .env files into the process
// environment. Missing files are skipped; existing variables win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, path := range paths {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", path, err)
		}
	}
	return nil
}

// Load builds a Config from v, which may already carry bound flags, plus the
// environment and an optional config file.
func Load(v *viper.Viper, path string) (Config, error) {
	if v == nil {
		v = viper.New()
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("crawl.url", "")
	v.SetDefault("crawl.filename", "")
	v.SetDefault("crawl.num_pages", 5)
	v.SetDefault("crawl.format", "json")
	v.SetDefault("crawl.queue", false)
	v.SetDefault("crawl.debug", false)
	v.SetDefault("workers.put", 1)
	v.SetDefault("workers.save", 1)
	v.SetDefault("workers.parse", 1)
	v.SetDefault("queue.capacity", 64)
	v.SetDefault("throttle.generate_delay", 500*time.Millisecond)
	v.SetDefault("throttle.fetch_delay", 500*time.Millisecond)
	retry := crawler.NewExponentialRetryPolicy()
	v.SetDefault("retry.max_attempts", retry.MaxAttempts)
	v.SetDefault("retry.initial_interval", retry.InitialInterval)
	v.SetDefault("retry.max_interval", retry.MaxInterval)
	v.SetDefault("http.timeout", 15*time.Second)
	v.SetDefault("http.user_agent", "pagecrawl/1.0")
	v.SetDefault("http.respect_robots", false)
	v.SetDefault("http.max_body_bytes", 10<<20)
	v.SetDefault("paths.cache_dir", "html_data")
	v.SetDefault("paths.output_dir", "output")
	v.SetDefault("cache.backend", CacheLocal)
	v.SetDefault("cache.gcs_bucket", "")
	v.SetDefault("cache.gcs_prefix", "")
	v.SetDefault("extract.primary_selector", "")
	v.SetDefault("extract.secondary_selector", "")
	v.SetDefault("output.columns", output.DefaultColumns)
	v.SetDefault("report.postgres_dsn", "")
	v.SetDefault("report.postgres_table", "crawl_runs")
	v.SetDefault("report.pubsub_project", "")
	v.SetDefault("report.pubsub_topic", "")
	v.SetDefault("metrics.addr", "")
}

// Validate enforces required values and sane limits. Debug mode adds
// stricter checks on the URL, page count and filename.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Crawl.URL) == "" {
		return &crawler.ConfigError{Field: "crawl.url", Reason: "is required"}
	}
	if strings.TrimSpace(c.Crawl.Filename) == "" {
		return &crawler.ConfigError{Field: "crawl.filename", Reason: "is required"}
	}
	if _, err := output.ParseFormat(c.Crawl.Format); err != nil {
		return err
	}
	if c.Crawl.NumPages < 0 {
		return &crawler.ConfigError{Field: "crawl.num_pages", Reason: "must be >= 0"}
	}
	sizes := []struct {
		field string
		n     int
	}{
		{"workers.put", c.Workers.Put},
		{"workers.save", c.Workers.Save},
		{"workers.parse", c.Workers.Parse},
		{"queue.capacity", c.Queue.Capacity},
	}
	for _, size := range sizes {
		if size.n < 1 {
			return &crawler.ConfigError{Field: size.field, Reason: "must be > 0"}
		}
	}
	if c.Throttle.GenerateDelay < 0 || c.Throttle.FetchDelay < 0 {
		return &crawler.ConfigError{Field: "throttle", Reason: "delays must not be negative"}
	}
	if c.Retry.MaxAttempts < 0 {
		return &crawler.ConfigError{Field: "retry.max_attempts", Reason: "must be >= 0"}
	}
	if c.HTTP.Timeout <= 0 {
		return &crawler.ConfigError{Field: "http.timeout", Reason: "must be > 0"}
	}
	if strings.TrimSpace(c.Paths.CacheDir) == "" || strings.TrimSpace(c.Paths.OutputDir) == "" {
		return &crawler.ConfigError{Field: "paths", Reason: "cache_dir and output_dir are required"}
	}
	switch c.Cache.Backend {
	case CacheLocal, CacheMemory:
	case CacheGCS:
		if c.Cache.GCSBucket == "" {
			return &crawler.ConfigError{Field: "cache.gcs_bucket", Reason: "must be set when cache.backend is gcs"}
		}
	default:
		return &crawler.ConfigError{Field: "cache.backend", Reason: fmt.Sprintf("unknown backend %q", c.Cache.Backend)}
	}
	if len(c.Output.Columns) != 2 {
		return &crawler.ConfigError{Field: "output.columns", Reason: "must name exactly two columns"}
	}
	if (c.Report.PubSubProject == "") != (c.Report.PubSubTopic == "") {
		return &crawler.ConfigError{Field: "report.pubsub_topic", Reason: "project and topic must be set together"}
	}
	if c.Crawl.Debug {
		return c.validateStrict()
	}
	return nil
}

func (c Config) validateStrict() error {
	if err := crawler.ValidateBaseURL(c.Crawl.URL); err != nil {
		return &crawler.ConfigError{Field: "crawl.url", Reason: err.Error()}
	}
	if c.Crawl.NumPages > MaxDebugPages {
		return &crawler.ConfigError{Field: "crawl.num_pages", Reason: fmt.Sprintf("must be <= %d", MaxDebugPages)}
	}
	if strings.ContainsAny(c.Crawl.Filename, `/\`) {
		return &crawler.ConfigError{Field: "crawl.filename", Reason: "must not contain path separators"}
	}
	return nil
}

// OutputFormat returns the parsed output format.
func (c Config) OutputFormat() output.Format {
	f, err := output.ParseFormat(c.Crawl.Format)
	if err != nil {
		return output.FormatJSON
	}
	return f
}

// RetryPolicy converts the retry section into a crawler.RetryPolicy.
func (c Config) RetryPolicy() crawler.RetryPolicy {
	return crawler.RetryPolicy{
		MaxAttempts:     c.Retry.MaxAttempts,
		InitialInterval: c.Retry.InitialInterval,
		MaxInterval:     c.Retry.MaxInterval,
	}
}
