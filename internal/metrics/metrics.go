// Package metrics exposes Prometheus collectors for the scraper.
package metrics

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Listing fetch outcomes.
const (
	OutcomeOK     = "ok"
	OutcomeNoData = "no_data"
	OutcomeError  = "error"
)

// Download statuses.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

var (
	listingsTotal          *prometheus.CounterVec
	downloadsTotal         *prometheus.CounterVec
	downloadBytesTotal     *prometheus.CounterVec
	downloadAttemptsTotal  prometheus.Counter
	skippedTotal           *prometheus.CounterVec
	activeDownloads        prometheus.Gauge
	rateLimitDelaysSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		listingsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_listings_total",
				Help: "Total number of listing pages requested, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		downloadsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_pdf_downloads_total",
				Help: "Total number of PDF downloads, labeled by document type and status.",
			},
			[]string{"doc_type", "status"},
		)

		downloadBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_pdf_bytes_total",
				Help: "Total number of PDF bytes written, labeled by document type.",
			},
			[]string{"doc_type"},
		)

		downloadAttemptsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scraper_pdf_download_attempts_total",
				Help: "Total number of HTTP attempts made to download PDFs, retries included.",
			},
		)

		skippedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_pdf_skipped_total",
				Help: "Total number of PDF links not downloaded, labeled by reason.",
			},
			[]string{"reason"},
		)

		activeDownloads = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "scraper_active_downloads",
				Help: "Number of PDF downloads currently in flight.",
			},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "scraper_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"host"},
		)
	})
}

// SanitizeHost extracts a lowercase hostname from a URL.
// It returns "unknown" if the URL is invalid.
func SanitizeHost(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveListing counts one listing fetch.
func ObserveListing(outcome string) {
	Init()
	listingsTotal.WithLabelValues(outcome).Inc()
}

// ObserveDownload records the final outcome of one PDF download.
func ObserveDownload(docType string, success bool, bytesWritten int64) {
	Init()
	status := StatusFailure
	if success {
		status = StatusSuccess
	}
	downloadsTotal.WithLabelValues(docType, status).Inc()
	if bytesWritten > 0 {
		downloadBytesTotal.WithLabelValues(docType).Add(float64(bytesWritten))
	}
}

// ObserveAttempt counts one HTTP download attempt.
func ObserveAttempt() {
	Init()
	downloadAttemptsTotal.Inc()
}

// ObserveSkipped counts a link that was not scheduled for download.
func ObserveSkipped(reason string) {
	Init()
	skippedTotal.WithLabelValues(reason).Inc()
}

// IncActiveDownloads increments the in-flight downloads gauge.
func IncActiveDownloads() {
	Init()
	activeDownloads.Inc()
}

// DecActiveDownloads decrements the in-flight downloads gauge.
func DecActiveDownloads() {
	Init()
	activeDownloads.Dec()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(host string, duration time.Duration) {
	Init()
	rateLimitDelaysSeconds.WithLabelValues(host).Observe(duration.Seconds())
}
