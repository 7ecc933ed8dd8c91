package crawler

import (
	"context"
)

// ListingFetcher retrieves listing and index pages.
// Implementations return ErrNoData for HTTP 404 and a *FetchError for any
// other non-200 status or transport failure.
type ListingFetcher interface {
	FetchListing(ctx context.Context, key CrawlKey) (ListingPage, error)
	FetchIndex(ctx context.Context, legislature int) (ListingPage, error)
}

// KeySource yields the CrawlKeys to process, in a stable order.
type KeySource interface {
	Keys(ctx context.Context) ([]CrawlKey, error)
}

// Downloader plans and executes PDF downloads for one listing batch.
type Downloader interface {
	Plan(legislature int, links []PDFLink) []DownloadTask
	Run(ctx context.Context, tasks []DownloadTask) []DownloadResult
}

// Hasher computes digests for filename disambiguation.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
