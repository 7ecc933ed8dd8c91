package collyfetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dj-urg/camera-pdf-scraper/internal/config"
	"github.com/dj-urg/camera-pdf-scraper/internal/crawler"
)

func TestListingURL(t *testing.T) {
	t.Parallel()

	cfg := Config{BaseURL: "https://www.camera.it/", PageID: "210", CommissionID: 21}
	key := crawler.CrawlKey{Legislature: 19, Year: 2023, Month: 6}

	assert.Equal(t,
		"https://www.camera.it/leg19/210?annomese=202306&commissione=21&view=f",
		ListingURL(cfg, key),
	)
	assert.Equal(t, "https://www.camera.it/leg18/210", IndexURL(cfg, 18))
}

func TestConfigFrom(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	got := ConfigFrom(&cfg)
	assert.Equal(t, "https://www.camera.it", got.BaseURL)
	assert.Equal(t, "210", got.PageID)
	assert.Equal(t, 21, got.CommissionID)
	assert.Equal(t, 30*time.Second, got.Timeout)
}

func TestFetchListingSuccess(t *testing.T) {
	t.Parallel()

	requests := make(chan *http.Request, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests <- r.Clone(context.Background())
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><body><a href="/doc.pdf">Scarica PDF</a></body></html>`))
	}))
	t.Cleanup(srv.Close)

	f := New(Config{BaseURL: srv.URL, PageID: "210", CommissionID: 21, UserAgent: "test-agent"}, srv.Client().Transport, nil)
	key := crawler.CrawlKey{Legislature: 19, Year: 2023, Month: 6}

	page, err := f.FetchListing(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, key, page.Key)
	assert.Contains(t, string(page.HTML), "Scarica PDF")
	assert.Equal(t, ListingURL(f.cfg, key), page.BaseURL)
	req := <-requests
	assert.Equal(t, "202306", req.URL.Query().Get("annomese"))
	assert.Equal(t, "21", req.URL.Query().Get("commissione"))
	assert.Equal(t, "f", req.URL.Query().Get("view"))
	assert.Equal(t, "test-agent", req.UserAgent())
}

func TestFetchListingStatusMapping(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		status int
		noData bool
	}{
		{name: "not found is no data", status: http.StatusNotFound, noData: true},
		{name: "server error", status: http.StatusInternalServerError},
		{name: "forbidden", status: http.StatusForbidden},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tc.status)
			}))
			t.Cleanup(srv.Close)

			f := New(Config{BaseURL: srv.URL, PageID: "210", CommissionID: 21}, srv.Client().Transport, nil)
			_, err := f.FetchListing(context.Background(), crawler.CrawlKey{Legislature: 19, Year: 2022, Month: 1})
			require.Error(t, err)
			if tc.noData {
				assert.ErrorIs(t, err, crawler.ErrNoData)
				assert.False(t, crawler.IsFetchError(err))
				return
			}
			var fe *crawler.FetchError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, tc.status, fe.StatusCode)
			assert.NotErrorIs(t, err, crawler.ErrNoData)
		})
	}
}

func TestFetchTransportError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	f := New(Config{BaseURL: base, PageID: "210", Timeout: time.Second}, nil, nil)
	_, err := f.FetchIndex(context.Background(), 19)
	require.Error(t, err)
	assert.True(t, crawler.IsFetchError(err))
	assert.NotErrorIs(t, err, crawler.ErrNoData)
}

func TestFetchIndex(t *testing.T) {
	t.Parallel()

	paths := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths <- r.URL.Path
		_, _ = w.Write([]byte(`<ul class="anni"><li data-anno="2023"></li></ul>`))
	}))
	t.Cleanup(srv.Close)

	f := New(Config{BaseURL: srv.URL, PageID: "210"}, srv.Client().Transport, nil)
	page, err := f.FetchIndex(context.Background(), 18)
	require.NoError(t, err)
	assert.Equal(t, "/leg18/210", <-paths)
	assert.Equal(t, 18, page.Key.Legislature)
	assert.Contains(t, string(page.HTML), "anni")
}

func TestFetchRespectsContext(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	f := New(Config{BaseURL: srv.URL, PageID: "210", Timeout: 5 * time.Second}, srv.Client().Transport, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := f.FetchListing(ctx, crawler.CrawlKey{Legislature: 19, Year: 2023, Month: 1})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	f := New(Config{}, nil, nil)
	hooks := &stubHooks{}
	out := &fetchOutcome{}
	f.configureCollectorHooks(hooks, out)
	require.NotNil(t, hooks.onResponse)
	require.NotNil(t, hooks.onError)

	u, _ := url.Parse("https://www.camera.it/leg19/210")
	hooks.onResponse(&colly.Response{
		StatusCode: http.StatusOK,
		Body:       []byte("ok"),
		Request:    &colly.Request{URL: u},
	})
	assert.Equal(t, http.StatusOK, out.status)
	assert.Equal(t, []byte("ok"), out.body)
	assert.Equal(t, u.String(), out.finalURL)

	boom := errors.New("boom")
	hooks.onError(&colly.Response{StatusCode: http.StatusBadGateway}, boom)
	assert.Equal(t, http.StatusBadGateway, out.status)
	assert.Equal(t, boom, out.err)
}

type stubHooks struct {
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) { s.onResponse = cb }
func (s *stubHooks) OnError(cb colly.ErrorCallback)       { s.onError = cb }
