// Package collyfetcher implements crawler.ListingFetcher using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/dj-urg/camera-pdf-scraper/internal/config"
	"github.com/dj-urg/camera-pdf-scraper/internal/crawler"
	"github.com/dj-urg/camera-pdf-scraper/internal/metrics"
)

const defaultTimeout = 30 * time.Second

// Config controls URL construction and collector behavior.
type Config struct {
	BaseURL      string
	PageID       string
	CommissionID int
	UserAgent    string
	Timeout      time.Duration
}

// ConfigFrom extracts the fetcher settings from the application config.
func ConfigFrom(cfg *config.Config) Config {
	return Config{
		BaseURL:      cfg.Site.BaseURL,
		PageID:       cfg.Site.PageID,
		CommissionID: cfg.Site.CommissionID,
		UserAgent:    cfg.HTTP.UserAgent,
		Timeout:      cfg.RequestTimeout(),
	}
}

// Fetcher implements crawler.ListingFetcher using the Colly collector.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
	logger        *zap.Logger
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// fetchOutcome is filled in by the collector callbacks.
type fetchOutcome struct {
	status   int
	body     []byte
	finalURL string
	err      error
}

// New builds a Fetcher on top of transport. A nil transport falls back to
// http.DefaultTransport.
func New(cfg Config, transport http.RoundTripper, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	c := colly.NewCollector(colly.Async(false))
	c.AllowURLRevisit = true
	c.IgnoreRobotsTxt = true
	if transport == nil {
		transport = http.DefaultTransport
	}
	c.WithTransport(transport)
	c.SetRequestTimeout(cfg.Timeout)

	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
		logger:        logger,
	}
}

// ListingURL builds the monthly listing URL for key.
func ListingURL(cfg Config, key crawler.CrawlKey) string {
	q := url.Values{}
	q.Set("commissione", fmt.Sprint(cfg.CommissionID))
	q.Set("annomese", key.YearMonth())
	q.Set("view", "f")
	return fmt.Sprintf("%s?%s", IndexURL(cfg, key.Legislature), q.Encode())
}

// IndexURL builds the availability index URL for a legislature.
func IndexURL(cfg Config, legislature int) string {
	base := strings.TrimRight(cfg.BaseURL, "/")
	return fmt.Sprintf("%s/leg%d/%s", base, legislature, strings.Trim(cfg.PageID, "/"))
}

// FetchListing retrieves the listing page for key.
func (f *Fetcher) FetchListing(ctx context.Context, key crawler.CrawlKey) (crawler.ListingPage, error) {
	target := ListingURL(f.cfg, key)
	f.logger.Debug("Fetching listing", zap.Stringer("key", key), zap.String("url", target))
	body, finalURL, err := f.fetch(ctx, target)
	metrics.ObserveListing(listingOutcome(err))
	if err != nil {
		return crawler.ListingPage{Key: key}, err
	}
	return crawler.ListingPage{Key: key, HTML: body, BaseURL: finalURL}, nil
}

// FetchIndex retrieves the availability index page for a legislature.
func (f *Fetcher) FetchIndex(ctx context.Context, legislature int) (crawler.ListingPage, error) {
	target := IndexURL(f.cfg, legislature)
	f.logger.Debug("Fetching availability index", zap.Int("legislature", legislature), zap.String("url", target))
	body, finalURL, err := f.fetch(ctx, target)
	key := crawler.CrawlKey{Legislature: legislature}
	if err != nil {
		return crawler.ListingPage{Key: key}, err
	}
	return crawler.ListingPage{Key: key, HTML: body, BaseURL: finalURL}, nil
}

func (f *Fetcher) fetch(ctx context.Context, target string) ([]byte, string, error) {
	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}

	out := &fetchOutcome{}
	f.configureCollectorHooks(collector, out)

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(target)
	}()

	select {
	case <-ctx.Done():
		return nil, "", fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case visitErr := <-done:
		return classify(target, out, visitErr)
	}
}

func (f *Fetcher) configureCollectorHooks(hooks collectorHooks, out *fetchOutcome) {
	hooks.OnResponse(func(r *colly.Response) {
		out.status = r.StatusCode
		out.body = append([]byte(nil), r.Body...)
		if r.Request != nil && r.Request.URL != nil {
			out.finalURL = r.Request.URL.String()
		}
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil {
			out.status = r.StatusCode
		}
		out.err = err
	})
}

// classify maps a collector outcome onto the fetch contract:
// 200 is data, 404 is ErrNoData, everything else is a *FetchError.
func classify(target string, out *fetchOutcome, visitErr error) ([]byte, string, error) {
	if out.status == http.StatusNotFound {
		return nil, "", crawler.ErrNoData
	}
	err := out.err
	if err == nil {
		err = visitErr
	}
	if err != nil {
		return nil, "", &crawler.FetchError{URL: target, StatusCode: out.status, Err: err}
	}
	if out.status != http.StatusOK {
		return nil, "", &crawler.FetchError{
			URL:        target,
			StatusCode: out.status,
			Err:        errors.New(http.StatusText(out.status)),
		}
	}
	finalURL := out.finalURL
	if finalURL == "" {
		finalURL = target
	}
	return out.body, finalURL, nil
}

func listingOutcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, crawler.ErrNoData):
		return metrics.OutcomeNoData
	default:
		return metrics.OutcomeError
	}
}
