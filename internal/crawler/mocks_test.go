package crawler

import (
	"context"

	"github.com/stretchr/testify/mock"
)

// MockListingFetcher is a mock implementation of the ListingFetcher interface.
type MockListingFetcher struct {
	mock.Mock
}

func (m *MockListingFetcher) FetchListing(ctx context.Context, key CrawlKey) (ListingPage, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(ListingPage), args.Error(1)
}

func (m *MockListingFetcher) FetchIndex(ctx context.Context, legislature int) (ListingPage, error) {
	args := m.Called(ctx, legislature)
	return args.Get(0).(ListingPage), args.Error(1)
}

// MockDownloader is a mock implementation of the Downloader interface.
type MockDownloader struct {
	mock.Mock
}

func (m *MockDownloader) Plan(legislature int, links []PDFLink) []DownloadTask {
	args := m.Called(legislature, links)
	return args.Get(0).([]DownloadTask)
}

func (m *MockDownloader) Run(ctx context.Context, tasks []DownloadTask) []DownloadResult {
	args := m.Called(ctx, tasks)
	return args.Get(0).([]DownloadResult)
}

// staticKeys is a KeySource returning a fixed list.
type staticKeys []CrawlKey

func (s staticKeys) Keys(context.Context) ([]CrawlKey, error) {
	return s, nil
}
