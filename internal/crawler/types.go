// Package crawler defines core types shared across subsystems.
package crawler

import (
	"fmt"
	"path/filepath"
	"strconv"
)

// CrawlKey identifies one listing page: a legislature and a calendar month.
type CrawlKey struct {
	Legislature int
	Year        int
	Month       int
}

// YearMonth renders the key as the YYYYMM token used by the listing URL.
func (k CrawlKey) YearMonth() string {
	return fmt.Sprintf("%04d%02d", k.Year, k.Month)
}

// String implements fmt.Stringer for log fields.
func (k CrawlKey) String() string {
	return "leg" + strconv.Itoa(k.Legislature) + "/" + k.YearMonth()
}

// ListingPage is the raw HTML retrieved for one CrawlKey.
type ListingPage struct {
	Key     CrawlKey
	HTML    []byte
	BaseURL string
}

// PDFLink is an absolute URL to a downloadable PDF found on a listing page.
type PDFLink struct {
	URL string
}

// UnknownDate is the sentinel used when no date can be recovered from a PDF URL.
const UnknownDate = "sconosciuto"

// InferredName holds the components of a content-derived PDF filename.
type InferredName struct {
	Date           string
	DateKnown      bool
	Legislature    int
	CommissionSlug string
	Hash           string
}

// Filename renders {date}_leg{L}_{slug}_{hash}.pdf.
func (n InferredName) Filename() string {
	name := fmt.Sprintf("%s_leg%d_%s", n.Date, n.Legislature, n.CommissionSlug)
	if n.Hash != "" {
		name += "_" + n.Hash
	}
	return name + ".pdf"
}

// DocumentType is the destination category of a PDF.
type DocumentType string

// Document categories, also used as directory names.
const (
	DocumentStenographic DocumentType = "stenographic"
	DocumentBulletin     DocumentType = "bulletin"
	DocumentOther        DocumentType = "other"
)

// DownloadTask is a PDF scheduled for download to a destination that did not
// exist when the task was planned.
type DownloadTask struct {
	URL          string
	Legislature  int
	DocumentType DocumentType
	Filename     string
	// RelPath is relative to the output root.
	RelPath string
	// Path is the absolute destination.
	Path string
}

// DestinationRelPath builds leg{L}/{type}/{first four chars of filename}/{filename}.
func DestinationRelPath(legislature int, docType DocumentType, filename string) string {
	prefix := filename
	if len(prefix) > 4 {
		prefix = prefix[:4]
	}
	return filepath.Join(fmt.Sprintf("leg%d", legislature), string(docType), prefix, filename)
}

// DownloadResult reports the outcome of one DownloadTask.
type DownloadResult struct {
	URL      string
	Path     string
	Success  bool
	Attempts int
	Bytes    int64
	Err      error
}

// RunSummary aggregates counters for a whole crawl run.
type RunSummary struct {
	Keys        int
	NoData      int
	FetchErrs   int
	ExtractErrs int
	Links       int
	// Skipped counts links not planned: already on disk, filtered by type,
	// or repeated within the same listing.
	Skipped    int
	Planned    int
	Downloaded int
	Failed     int
}
