package crawler

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DefaultDownloadLabel is the anchor text that marks PDF download links.
const DefaultDownloadLabel = "scarica pdf"

// LinkExtractor finds labelled PDF links in listing HTML.
type LinkExtractor struct {
	label string
}

// NewLinkExtractor returns an extractor matching anchors whose visible text
// contains label (compared case-insensitively).
func NewLinkExtractor(label string) *LinkExtractor {
	label = normalizeText(label)
	if label == "" {
		label = DefaultDownloadLabel
	}
	return &LinkExtractor{label: label}
}

// Extract returns the absolute URLs of matching anchors in document order.
// Duplicates are preserved.
func (e *LinkExtractor) Extract(html []byte, baseURL string) ([]PDFLink, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url %q: %w", baseURL, err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse listing html: %w", err)
	}

	var links []PDFLink
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		if !strings.Contains(normalizeText(s.Text()), e.label) {
			return
		}
		href, ok := attr(s, "href")
		if !ok {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		links = append(links, PDFLink{URL: base.ResolveReference(ref).String()})
	})
	return links, nil
}

// ExtractLinks is a convenience wrapper using the default download label.
func ExtractLinks(html []byte, baseURL string) ([]PDFLink, error) {
	return NewLinkExtractor(DefaultDownloadLabel).Extract(html, baseURL)
}

// attr returns the trimmed attribute value and whether it is present and non-empty.
func attr(s *goquery.Selection, name string) (string, bool) {
	v, ok := s.Attr(name)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func normalizeText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}
