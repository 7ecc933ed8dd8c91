// Package config loads and validates scraper configuration via Viper.
package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Enumeration strategies understood by the crawl enumerator.
const (
	StrategyFixed      = "fixed"
	StrategyDiscovered = "discovered"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:[_-][a-z0-9]+)*$`)

// Config captures all scraper configuration knobs loaded via Viper.
// It is built once at startup and handed to every component by pointer;
// nothing mutates it after Validate succeeds.
type Config struct {
	Site     SiteConfig     `mapstructure:"site"`
	Crawl    CrawlConfig    `mapstructure:"crawl"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Download DownloadConfig `mapstructure:"download"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// SiteConfig describes the source website and the commission being scraped.
type SiteConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	PageID         string `mapstructure:"page_id"`
	CommissionID   int    `mapstructure:"commission_id"`
	CommissionSlug string `mapstructure:"commission_slug"`
	DownloadLabel  string `mapstructure:"download_label"`
	YearSelector   string `mapstructure:"year_selector"`
}

// CrawlConfig governs which keys are enumerated and how listing errors are handled.
type CrawlConfig struct {
	Strategy          string   `mapstructure:"strategy"`
	Legislatures      []int    `mapstructure:"legislatures"`
	StartYear         int      `mapstructure:"start_year"`
	EndYear           int      `mapstructure:"end_year"`
	AbortOnFetchError bool     `mapstructure:"abort_on_fetch_error"`
	DocumentTypes     []string `mapstructure:"document_types"`
	DelayMs           int      `mapstructure:"delay_ms"`
}

// HTTPConfig configures the shared HTTP session.
type HTTPConfig struct {
	TimeoutSeconds         int    `mapstructure:"timeout_seconds"`
	DownloadTimeoutSeconds int    `mapstructure:"download_timeout_seconds"`
	UserAgent              string `mapstructure:"user_agent"`
}

// DownloadConfig controls the download pool.
type DownloadConfig struct {
	OutputDir    string  `mapstructure:"output_dir"`
	Concurrency  int     `mapstructure:"concurrency"`
	MaxRetries   int     `mapstructure:"max_retries"`
	RetryDelayMs int     `mapstructure:"retry_delay_ms"`
	ChunkSize    int     `mapstructure:"chunk_size"`
	RatePerSec   float64 `mapstructure:"rate_per_second"`
}

// LoggingConfig toggles zap development features and the error log sink.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Debug       bool   `mapstructure:"debug"`
	ErrorLog    string `mapstructure:"error_log"`
}

// MetricsConfig controls the optional Prometheus endpoint.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("SCRAPER")
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

	return cfg, nil
}

// Default returns the configuration produced by the built-in defaults alone.
func Default() Config {
	cfg, err := Load("")
	if err != nil {
		// defaults always unmarshal cleanly
		panic(err)
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("site.base_url", "https://www.camera.it")
	v.SetDefault("site.page_id", "210")
	v.SetDefault("site.commission_id", 21)
	v.SetDefault("site.commission_slug", "vigilanza_radiotelevisiva")
	v.SetDefault("site.download_label", "scarica pdf")
	v.SetDefault("site.year_selector", "ul.anni > li")
	v.SetDefault("crawl.strategy", StrategyFixed)
	v.SetDefault("crawl.legislatures", []int{19})
	v.SetDefault("crawl.start_year", 2020)
	v.SetDefault("crawl.end_year", time.Now().Year())
	v.SetDefault("crawl.abort_on_fetch_error", true)
	v.SetDefault("crawl.document_types", []string{})
	v.SetDefault("crawl.delay_ms", 0)
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.download_timeout_seconds", 60)
	v.SetDefault("http.user_agent", "camera-pdf-scraper/1.0 (+https://github.com/dj-urg/camera-pdf-scraper)")
	v.SetDefault("download.output_dir", "pdfs")
	v.SetDefault("download.concurrency", 6)
	v.SetDefault("download.max_retries", 2)
	v.SetDefault("download.retry_delay_ms", 2000)
	v.SetDefault("download.chunk_size", 8192)
	v.SetDefault("download.rate_per_second", 0)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.debug", false)
	v.SetDefault("logging.error_log", "errors.log")
	v.SetDefault("metrics.addr", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if !strings.HasPrefix(c.Site.BaseURL, "http://") && !strings.HasPrefix(c.Site.BaseURL, "https://") {
		return fmt.Errorf("site.base_url must be an http(s) URL")
	}
	if strings.TrimSpace(c.Site.PageID) == "" {
		return fmt.Errorf("site.page_id must be set")
	}
	if c.Site.CommissionID <= 0 {
		return fmt.Errorf("site.commission_id must be > 0")
	}
	if !slugPattern.MatchString(c.Site.CommissionSlug) {
		return fmt.Errorf("site.commission_slug %q must be a lowercase filesystem-safe slug", c.Site.CommissionSlug)
	}
	if strings.TrimSpace(c.Site.DownloadLabel) == "" {
		return fmt.Errorf("site.download_label must be set")
	}
	switch c.Crawl.Strategy {
	case StrategyFixed:
		if c.Crawl.StartYear <= 0 || c.Crawl.EndYear <= 0 {
			return fmt.Errorf("crawl.start_year and crawl.end_year are required for the fixed strategy")
		}
	case StrategyDiscovered:
		if strings.TrimSpace(c.Site.YearSelector) == "" {
			return fmt.Errorf("site.year_selector must be set for the discovered strategy")
		}
	default:
		return fmt.Errorf("crawl.strategy must be %q or %q, got %q", StrategyFixed, StrategyDiscovered, c.Crawl.Strategy)
	}
	if c.Crawl.StartYear > 0 && c.Crawl.EndYear > 0 && c.Crawl.StartYear > c.Crawl.EndYear {
		return fmt.Errorf("crawl.start_year (%d) must be <= crawl.end_year (%d)", c.Crawl.StartYear, c.Crawl.EndYear)
	}
	if len(c.Crawl.Legislatures) == 0 {
		return fmt.Errorf("crawl.legislatures must include at least one legislature")
	}
	for _, leg := range c.Crawl.Legislatures {
		if leg <= 0 {
			return fmt.Errorf("crawl.legislatures entries must be > 0, got %d", leg)
		}
	}
	if c.Crawl.DelayMs < 0 {
		return fmt.Errorf("crawl.delay_ms must be >= 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.DownloadTimeoutSeconds <= 0 {
		return fmt.Errorf("http.download_timeout_seconds must be > 0")
	}
	if c.Download.OutputDir == "" {
		return fmt.Errorf("download.output_dir must be set")
	}
	if c.Download.Concurrency <= 0 {
		return fmt.Errorf("download.concurrency must be > 0")
	}
	if c.Download.MaxRetries < 0 {
		return fmt.Errorf("download.max_retries must be >= 0")
	}
	if c.Download.RetryDelayMs < 0 {
		return fmt.Errorf("download.retry_delay_ms must be >= 0")
	}
	if c.Download.ChunkSize <= 0 {
		return fmt.Errorf("download.chunk_size must be > 0")
	}
	if c.Download.RatePerSec < 0 {
		return fmt.Errorf("download.rate_per_second must be >= 0")
	}
	return nil
}

// RequestTimeout is the per-request timeout for listing pages.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// DownloadTimeout bounds how long a PDF download may wait for headers or go
// without receiving body data. It does not cap the total transfer time.
func (c Config) DownloadTimeout() time.Duration {
	return time.Duration(c.HTTP.DownloadTimeoutSeconds) * time.Second
}

// RetryDelay is the fixed pause between download attempts.
func (c Config) RetryDelay() time.Duration {
	return time.Duration(c.Download.RetryDelayMs) * time.Millisecond
}

// CrawlDelay is the pause between consecutive listing requests.
func (c Config) CrawlDelay() time.Duration {
	return time.Duration(c.Crawl.DelayMs) * time.Millisecond
}

// ParseLegislatures parses a comma separated legislature list such as "19,18".
func ParseLegislatures(raw string) ([]int, error) {
	var out []int
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		leg, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid legislature %q: %w", part, err)
		}
		out = append(out, leg)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no legislatures in %q", raw)
	}
	return out, nil
}
