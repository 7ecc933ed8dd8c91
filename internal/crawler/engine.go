package crawler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/dj-urg/camera-pdf-scraper/internal/config"
)

// Engine drives the crawl: enumerate keys, fetch each listing, extract PDF
// links and hand them to the downloader. Keys are processed sequentially;
// only downloads run in parallel.
type Engine struct {
	keys         KeySource
	fetcher      ListingFetcher
	extractor    *LinkExtractor
	downloader   Downloader
	abortOnError bool
	delay        time.Duration
	logger       *zap.Logger
	sleep        func(context.Context, time.Duration) error
}

// NewEngine wires the pipeline components together.
func NewEngine(
	cfg *config.Config,
	keys KeySource,
	fetcher ListingFetcher,
	downloader Downloader,
	logger *zap.Logger,
) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		keys:         keys,
		fetcher:      fetcher,
		extractor:    NewLinkExtractor(cfg.Site.DownloadLabel),
		downloader:   downloader,
		abortOnError: cfg.Crawl.AbortOnFetchError,
		delay:        cfg.CrawlDelay(),
		logger:       logger,
		sleep:        sleepCtx,
	}
}

// Run processes every enumerated key. It returns an error only when
// enumeration fails, the context is canceled, or a listing fetch fails
// unexpectedly while abort-on-error is enabled. Individual download failures
// are counted in the summary, never returned.
func (e *Engine) Run(ctx context.Context) (RunSummary, error) {
	var summary RunSummary

	keys, err := e.keys.Keys(ctx)
	if err != nil {
		return summary, fmt.Errorf("enumerate keys: %w", err)
	}
	summary.Keys = len(keys)
	e.logger.Info("Starting crawl", zap.Int("keys", len(keys)))

	for i, key := range keys {
		if err := ctx.Err(); err != nil {
			return summary, fmt.Errorf("crawl interrupted: %w", err)
		}
		if i > 0 && e.delay > 0 {
			if err := e.sleep(ctx, e.delay); err != nil {
				return summary, fmt.Errorf("crawl interrupted: %w", err)
			}
		}
		log := e.logger.With(
			zap.Stringer("key", key),
			zap.Int("progress", i+1),
			zap.Int("total", len(keys)),
		)
		if err := e.processKey(ctx, key, log, &summary); err != nil {
			return summary, err
		}
	}

	e.logger.Info("Crawl finished",
		zap.Int("keys", summary.Keys),
		zap.Int("no_data", summary.NoData),
		zap.Int("links", summary.Links),
		zap.Int("skipped", summary.Skipped),
		zap.Int("downloaded", summary.Downloaded),
		zap.Int("failed", summary.Failed),
		zap.Int("fetch_errors", summary.FetchErrs),
	)
	return summary, nil
}

func (e *Engine) processKey(ctx context.Context, key CrawlKey, log *zap.Logger, summary *RunSummary) error {
	page, err := e.fetcher.FetchListing(ctx, key)
	switch {
	case errors.Is(err, ErrNoData):
		summary.NoData++
		log.Debug("No listing for month, skipping")
		return nil
	case err != nil && IsFetchError(err) && !e.abortOnError:
		summary.FetchErrs++
		log.Error("Listing fetch failed, skipping month", zap.Error(err))
		return nil
	case err != nil:
		summary.FetchErrs++
		log.Error("Listing fetch failed, aborting run", zap.Error(err))
		return fmt.Errorf("fetch listing %s: %w", key, err)
	}
	log.Info("Fetched listing")

	links, err := e.extractor.Extract(page.HTML, page.BaseURL)
	if err != nil {
		summary.ExtractErrs++
		log.Error("Failed to extract links from listing", zap.Error(err))
		return nil
	}
	summary.Links += len(links)
	if len(links) == 0 {
		log.Debug("Listing has no PDF links")
		return nil
	}

	tasks := e.downloader.Plan(key.Legislature, links)
	summary.Planned += len(tasks)
	summary.Skipped += len(links) - len(tasks)
	if len(tasks) == 0 {
		return nil
	}

	for _, res := range e.downloader.Run(ctx, tasks) {
		if res.Success {
			summary.Downloaded++
			log.Info("Downloaded PDF",
				zap.String("url", res.URL),
				zap.String("path", res.Path),
				zap.Int("attempts", res.Attempts),
				zap.Int64("bytes", res.Bytes),
			)
			continue
		}
		summary.Failed++
		log.Error("Failed to download PDF",
			zap.String("url", res.URL),
			zap.String("path", res.Path),
			zap.Int("attempts", res.Attempts),
			zap.Error(res.Err),
		)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
