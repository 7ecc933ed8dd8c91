package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/dj-urg/camera-pdf-scraper/internal/config"
	"github.com/dj-urg/camera-pdf-scraper/internal/crawler"
	"github.com/dj-urg/camera-pdf-scraper/internal/downloader"
	collyfetcher "github.com/dj-urg/camera-pdf-scraper/internal/fetcher/colly"
	"github.com/dj-urg/camera-pdf-scraper/internal/policy/ratelimit"
)

// newScrapeCmd creates and configures the 'scrape' subcommand.
func newScrapeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Downloads every PDF listed for the configured legislatures and years",
		Long: `Enumerates legislature/month listing pages, extracts their PDF links
and downloads the ones not already present in the output directory.
Per-file download failures are logged and do not change the exit status;
an unexpected listing failure aborts the run unless --skip-fetch-errors is set.`,
		Example: `  camera-pdf-scraper scrape --legislatures 19,18 --start 2020 --end 2024 --out pdfs
  camera-pdf-scraper scrape --strategy discovered --legislatures 19`,
		Annotations: map[string]string{annotationNeedsApp: "true"},
		RunE:        runScrapeCommand,
	}

	f := cmd.Flags()
	f.Int("start", 0, "first year to crawl (inclusive)")
	f.Int("end", 0, "last year to crawl (inclusive)")
	f.String("out", "", "output directory for downloaded PDFs")
	f.String("legislatures", "", "comma separated legislature numbers, e.g. 19,18")
	f.String("strategy", "", "key enumeration strategy: fixed or discovered")
	f.Int("concurrency", 0, "parallel downloads per listing")
	f.StringSlice("types", nil, "document types to keep: stenographic, bulletin, other")
	f.Bool("skip-fetch-errors", false, "skip months whose listing fails instead of aborting")
	f.String("metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	return cmd
}

// applyScrapeFlags copies explicitly set scrape flags over the loaded config.
// Flags the command does not define are ignored.
func applyScrapeFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	changed := func(name string) bool { return flagChanged(f, name) }

	if changed("start") {
		v, err := f.GetInt("start")
		if err != nil {
			return fmt.Errorf("read --start: %w", err)
		}
		cfg.Crawl.StartYear = v
	}
	if changed("end") {
		v, err := f.GetInt("end")
		if err != nil {
			return fmt.Errorf("read --end: %w", err)
		}
		cfg.Crawl.EndYear = v
	}
	if changed("out") {
		v, err := f.GetString("out")
		if err != nil {
			return fmt.Errorf("read --out: %w", err)
		}
		cfg.Download.OutputDir = v
	}
	if changed("legislatures") {
		raw, err := f.GetString("legislatures")
		if err != nil {
			return fmt.Errorf("read --legislatures: %w", err)
		}
		legs, err := config.ParseLegislatures(raw)
		if err != nil {
			return fmt.Errorf("--legislatures: %w", err)
		}
		cfg.Crawl.Legislatures = legs
	}
	if changed("strategy") {
		v, err := f.GetString("strategy")
		if err != nil {
			return fmt.Errorf("read --strategy: %w", err)
		}
		cfg.Crawl.Strategy = v
	}
	if changed("concurrency") {
		v, err := f.GetInt("concurrency")
		if err != nil {
			return fmt.Errorf("read --concurrency: %w", err)
		}
		cfg.Download.Concurrency = v
	}
	if changed("types") {
		v, err := f.GetStringSlice("types")
		if err != nil {
			return fmt.Errorf("read --types: %w", err)
		}
		cfg.Crawl.DocumentTypes = v
	}
	if changed("skip-fetch-errors") {
		v, err := f.GetBool("skip-fetch-errors")
		if err != nil {
			return fmt.Errorf("read --skip-fetch-errors: %w", err)
		}
		cfg.Crawl.AbortOnFetchError = !v
	}
	if changed("metrics-addr") {
		v, err := f.GetString("metrics-addr")
		if err != nil {
			return fmt.Errorf("read --metrics-addr: %w", err)
		}
		cfg.Metrics.Addr = v
	}
	return nil
}

func flagChanged(f *pflag.FlagSet, name string) bool {
	fl := f.Lookup(name)
	return fl != nil && fl.Changed
}

func runScrapeCommand(cmd *cobra.Command, _ []string) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	logger := appInstance.GetLogger()

	engine, err := buildEngine(appInstance)
	if err != nil {
		return err
	}

	summary, err := engine.Run(cmd.Context())
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("Scrape interrupted", zap.Int("downloaded", summary.Downloaded))
			return nil
		}
		return fmt.Errorf("run scraper: %w", err)
	}

	cmd.Printf("months=%d no_data=%d links=%d skipped=%d downloaded=%d failed=%d\n",
		summary.Keys, summary.NoData, summary.Links, summary.Skipped, summary.Downloaded, summary.Failed)
	return nil
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// buildEngine wires fetcher, enumerator and download manager around the
// app's shared session and output store.
func buildEngine(a App) (*crawler.Engine, error) {
	cfg := a.GetConfig()
	logger := a.GetLogger()
	sess := a.GetSession()

	fetcher := collyfetcher.New(collyfetcher.ConfigFrom(cfg), sess.Transport(), logger.Named("fetcher"))
	enumerator := crawler.NewEnumerator(cfg, fetcher, logger.Named("enumerator"))

	var limiter downloader.Limiter
	if cfg.Download.RatePerSec > 0 {
		limiter = ratelimit.New(ratelimit.Config{RPS: cfg.Download.RatePerSec, Burst: 1})
	}
	manager, err := downloader.New(
		downloader.OptionsFrom(cfg),
		a.GetStore(),
		sess.Client(),
		limiter,
		logger.Named("downloader"),
	)
	if err != nil {
		return nil, fmt.Errorf("init downloader: %w", err)
	}

	return crawler.NewEngine(cfg, enumerator, fetcher, manager, logger.Named("engine")), nil
}
