package cmd

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dj-urg/camera-pdf-scraper/internal/config"
)

func TestApplyScrapeFlags(t *testing.T) {
	cmd := newScrapeCmd()
	require.NoError(t, cmd.ParseFlags([]string{
		"--start", "2018",
		"--end", "2019",
		"--out", "/tmp/pdfs",
		"--legislatures", "19, 18",
		"--strategy", "discovered",
		"--types", "bulletin,stenographic",
		"--skip-fetch-errors",
		"--metrics-addr", ":9090",
	}))

	cfg := config.Default()
	require.NoError(t, applyScrapeFlags(cmd, &cfg))
	assert.Equal(t, 2018, cfg.Crawl.StartYear)
	assert.Equal(t, 2019, cfg.Crawl.EndYear)
	assert.Equal(t, "/tmp/pdfs", cfg.Download.OutputDir)
	assert.Equal(t, []int{19, 18}, cfg.Crawl.Legislatures)
	assert.Equal(t, config.StrategyDiscovered, cfg.Crawl.Strategy)
	assert.Equal(t, []string{"bulletin", "stenographic"}, cfg.Crawl.DocumentTypes)
	assert.False(t, cfg.Crawl.AbortOnFetchError)
	assert.Equal(t, ":9090", cfg.Metrics.Addr)
	assert.Equal(t, 6, cfg.Download.Concurrency, "unset flags keep config values")
}

func TestApplyScrapeFlagsRejectsBadLegislatures(t *testing.T) {
	cmd := newScrapeCmd()
	require.NoError(t, cmd.ParseFlags([]string{"--legislatures", "19,xviii"}))

	cfg := config.Default()
	assert.Error(t, applyScrapeFlags(cmd, &cfg))
}

func TestApplyScrapeFlagsIgnoresUndefinedFlags(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, applyScrapeFlags(&cobra.Command{Use: "other"}, &cfg))
	assert.Equal(t, config.Default().Crawl, cfg.Crawl)
}

// fakeCamera serves one listing with one PDF for June 2023 and 404 for every other month.
func fakeCamera(t *testing.T, pdfHits *atomic.Int64) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/leg19/210", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("annomese") != "202306" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`<html><body>
			<a href="/_dati/leg19/lavori/data20230629.pdf">Scarica PDF</a>
		</body></html>`))
	})
	mux.HandleFunc("/_dati/leg19/lavori/data20230629.pdf", func(w http.ResponseWriter, _ *http.Request) {
		pdfHits.Add(1)
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF-1.4 test"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestScrapeCommandEndToEnd(t *testing.T) {
	var pdfHits atomic.Int64
	srv := fakeCamera(t, &pdfHits)
	dir := t.TempDir()
	outDir := filepath.Join(dir, "pdfs")

	t.Setenv("SCRAPER_SITE_BASE_URL", srv.URL)
	t.Setenv("SCRAPER_LOGGING_ERROR_LOG", filepath.Join(dir, "errors.log"))
	t.Setenv("SCRAPER_LOGGING_DEVELOPMENT", "false")

	args := []string{"scrape", "--legislatures", "19", "--start", "2023", "--end", "2023", "--out", outDir}

	out, err := runRoot(t, args...)
	require.NoError(t, err)
	assert.Contains(t, out, "months=12 no_data=11 links=1 skipped=0 downloaded=1 failed=0")
	assert.Equal(t, int64(1), pdfHits.Load())

	matches, err := filepath.Glob(filepath.Join(outDir, "leg19", "other", "2023", "2023-06-29_leg19_vigilanza_radiotelevisiva_*.pdf"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	// A second run finds the file on disk and downloads nothing.
	out, err = runRoot(t, args...)
	require.NoError(t, err)
	assert.Contains(t, out, "skipped=1 downloaded=0")
	assert.Equal(t, int64(1), pdfHits.Load())
}

func TestScrapeCommandInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("SCRAPER_LOGGING_ERROR_LOG", filepath.Join(dir, "errors.log"))

	_, err := runRoot(t, "scrape", "--start", "2024", "--end", "2020", "--out", filepath.Join(dir, "pdfs"))
	assert.Error(t, err)
}

func TestScrapeCommandAbortsOnServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	dir := t.TempDir()

	t.Setenv("SCRAPER_SITE_BASE_URL", srv.URL)
	t.Setenv("SCRAPER_LOGGING_ERROR_LOG", filepath.Join(dir, "errors.log"))
	t.Setenv("SCRAPER_LOGGING_DEVELOPMENT", "false")

	args := []string{"scrape", "--legislatures", "19", "--start", "2023", "--end", "2023", "--out", filepath.Join(dir, "pdfs")}
	_, err := runRoot(t, args...)
	assert.Error(t, err)

	out, err := runRoot(t, append(args, "--skip-fetch-errors")...)
	require.NoError(t, err)
	assert.Contains(t, out, "months=12")
}
