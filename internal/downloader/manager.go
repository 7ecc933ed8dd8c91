// Package downloader plans and executes PDF downloads for one listing batch.
package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dj-urg/camera-pdf-scraper/internal/config"
	"github.com/dj-urg/camera-pdf-scraper/internal/crawler"
	"github.com/dj-urg/camera-pdf-scraper/internal/metrics"
	"github.com/dj-urg/camera-pdf-scraper/internal/storage/local"
)

const (
	defaultConcurrency = 6
	defaultChunkSize   = 8192
)

// Skip reasons reported to metrics.
const (
	skipExists    = "exists"
	skipFiltered  = "filtered"
	skipDuplicate = "duplicate"
)

// Store persists downloaded PDFs below the output root.
type Store interface {
	Exists(rel string) bool
	Resolve(rel string) (string, error)
	PutObject(ctx context.Context, rel string, data io.Reader, chunkSize int) (int64, error)
}

// Limiter throttles outgoing requests per host.
type Limiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Options tunes the Manager.
type Options struct {
	CommissionSlug string
	DocumentTypes  []string
	Concurrency    int
	MaxRetries     int
	RetryDelay     time.Duration
	ChunkSize      int
	UserAgent      string
	// IdleTimeout fails an attempt once no response data has arrived for
	// this long. Zero disables it.
	IdleTimeout time.Duration
}

// OptionsFrom extracts the download settings from the application config.
func OptionsFrom(cfg *config.Config) Options {
	return Options{
		CommissionSlug: cfg.Site.CommissionSlug,
		DocumentTypes:  cfg.Crawl.DocumentTypes,
		Concurrency:    cfg.Download.Concurrency,
		MaxRetries:     cfg.Download.MaxRetries,
		RetryDelay:     cfg.RetryDelay(),
		ChunkSize:      cfg.Download.ChunkSize,
		UserAgent:      cfg.HTTP.UserAgent,
		IdleTimeout:    cfg.DownloadTimeout(),
	}
}

// Manager implements crawler.Downloader.
type Manager struct {
	opts    Options
	store   Store
	client  *http.Client
	namer   *crawler.Namer
	filter  crawler.TypeFilter
	limiter Limiter
	logger  *zap.Logger
}

// New builds a Manager. client must not be nil; limiter may be nil.
func New(opts Options, store Store, client *http.Client, limiter Limiter, logger *zap.Logger) (*Manager, error) {
	if store == nil {
		return nil, errors.New("downloader requires a store")
	}
	if client == nil {
		return nil, errors.New("downloader requires an http client")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	filter, err := crawler.NewTypeFilter(opts.DocumentTypes)
	if err != nil {
		return nil, fmt.Errorf("document type filter: %w", err)
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = defaultConcurrency
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = defaultChunkSize
	}
	return &Manager{
		opts:    opts,
		store:   store,
		client:  client,
		namer:   crawler.NewNamer(opts.CommissionSlug, nil, logger),
		filter:  filter,
		limiter: limiter,
		logger:  logger,
	}, nil
}

// Plan turns extracted links into download tasks. Links whose destination
// already exists, whose type is filtered out, or that repeat an earlier link
// of the same batch are dropped here and never reach Run.
func (m *Manager) Plan(legislature int, links []crawler.PDFLink) []crawler.DownloadTask {
	tasks := make([]crawler.DownloadTask, 0, len(links))
	seen := make(map[string]struct{}, len(links))
	for _, link := range links {
		docType := crawler.Classify(link.URL)
		if !m.filter.Allows(docType) {
			metrics.ObserveSkipped(skipFiltered)
			m.logger.Debug("Document type filtered out",
				zap.String("url", link.URL),
				zap.String("doc_type", string(docType)),
			)
			continue
		}

		filename := m.namer.Filename(link.URL, legislature)
		rel := crawler.DestinationRelPath(legislature, docType, filename)
		if _, dup := seen[rel]; dup {
			metrics.ObserveSkipped(skipDuplicate)
			continue
		}
		seen[rel] = struct{}{}

		if m.store.Exists(rel) {
			metrics.ObserveSkipped(skipExists)
			m.logger.Info("PDF already downloaded, skipping",
				zap.String("url", link.URL),
				zap.String("path", rel),
			)
			continue
		}
		path, err := m.store.Resolve(rel)
		if err != nil {
			m.logger.Error("Invalid destination path", zap.String("url", link.URL), zap.Error(err))
			continue
		}
		tasks = append(tasks, crawler.DownloadTask{
			URL:          link.URL,
			Legislature:  legislature,
			DocumentType: docType,
			Filename:     filename,
			RelPath:      rel,
			Path:         path,
		})
	}
	return tasks
}

// Run downloads tasks with bounded parallelism and returns one result per
// task, in task order. A failing task never cancels its siblings.
func (m *Manager) Run(ctx context.Context, tasks []crawler.DownloadTask) []crawler.DownloadResult {
	results := make([]crawler.DownloadResult, len(tasks))
	var g errgroup.Group
	g.SetLimit(m.opts.Concurrency)
	for i, task := range tasks {
		g.Go(func() error {
			results[i] = m.download(ctx, task)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (m *Manager) download(ctx context.Context, task crawler.DownloadTask) crawler.DownloadResult {
	metrics.IncActiveDownloads()
	defer metrics.DecActiveDownloads()

	res := crawler.DownloadResult{URL: task.URL, Path: task.Path}
	op := func() error {
		res.Attempts++
		metrics.ObserveAttempt()
		if m.limiter != nil {
			if err := m.limiter.Wait(ctx, task.URL); err != nil {
				return backoff.Permanent(err)
			}
		}
		n, err := m.fetchOnce(ctx, task)
		if errors.Is(err, local.ErrCreateDir) {
			return backoff.Permanent(err)
		}
		res.Bytes = n
		return err
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(m.opts.RetryDelay), uint64(m.opts.MaxRetries)),
		ctx,
	)
	notify := func(err error, wait time.Duration) {
		m.logger.Warn("Download attempt failed, retrying",
			zap.String("url", task.URL),
			zap.Int("attempt", res.Attempts),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		res.Err = err
		res.Bytes = 0
	} else {
		res.Success = true
	}
	metrics.ObserveDownload(string(task.DocumentType), res.Success, res.Bytes)
	return res
}

func (m *Manager) fetchOnce(ctx context.Context, task crawler.DownloadTask) (int64, error) {
	ctx, stall := newStallWatch(ctx, m.opts.IdleTimeout)
	defer stall.stop()

	n, err := m.stream(ctx, task, stall)
	if err != nil && stall.fired() {
		return n, fmt.Errorf("get %s: no data received for %s: %w", task.URL, m.opts.IdleTimeout, err)
	}
	return n, err
}

func (m *Manager) stream(ctx context.Context, task crawler.DownloadTask, stall *stallWatch) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, task.URL, nil)
	if err != nil {
		return 0, backoff.Permanent(fmt.Errorf("build request: %w", err))
	}
	if m.opts.UserAgent != "" {
		req.Header.Set("User-Agent", m.opts.UserAgent)
	}
	req.Header.Set("Accept", "application/pdf,*/*")

	resp, err := m.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("get %s: %w", task.URL, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return 0, &crawler.FetchError{
			URL:        task.URL,
			StatusCode: resp.StatusCode,
			Err:        errors.New(http.StatusText(resp.StatusCode)),
		}
	}
	return m.store.PutObject(ctx, task.RelPath, stall.reader(resp.Body), m.opts.ChunkSize)
}
