package crawler

import (
	"fmt"
	"strings"
)

var (
	stenographicMarkers = []string{"stencomm", "stenografic", ".sten."}
	bulletinMarkers     = []string{"bollettino", ".bol", "/bol"}
)

// Classify labels a PDF URL with its document type. It never fails: anything
// unrecognized, including the empty string, is DocumentOther.
func Classify(rawURL string) DocumentType {
	lower := strings.ToLower(rawURL)
	for _, m := range stenographicMarkers {
		if strings.Contains(lower, m) {
			return DocumentStenographic
		}
	}
	for _, m := range bulletinMarkers {
		if strings.Contains(lower, m) {
			return DocumentBulletin
		}
	}
	return DocumentOther
}

// ParseDocumentType maps a configuration value to a DocumentType.
func ParseDocumentType(raw string) (DocumentType, error) {
	switch DocumentType(strings.ToLower(strings.TrimSpace(raw))) {
	case DocumentStenographic:
		return DocumentStenographic, nil
	case DocumentBulletin:
		return DocumentBulletin, nil
	case DocumentOther:
		return DocumentOther, nil
	default:
		return "", fmt.Errorf("unknown document type %q", raw)
	}
}

// TypeFilter admits document types. The zero value admits everything.
type TypeFilter struct {
	allowed map[DocumentType]struct{}
}

// NewTypeFilter builds a filter from configuration values; an empty list admits all types.
func NewTypeFilter(raw []string) (TypeFilter, error) {
	if len(raw) == 0 {
		return TypeFilter{}, nil
	}
	f := TypeFilter{allowed: make(map[DocumentType]struct{}, len(raw))}
	for _, r := range raw {
		dt, err := ParseDocumentType(r)
		if err != nil {
			return TypeFilter{}, err
		}
		f.allowed[dt] = struct{}{}
	}
	return f, nil
}

// Allows reports whether docType passes the filter.
func (f TypeFilter) Allows(docType DocumentType) bool {
	if f.allowed == nil {
		return true
	}
	_, ok := f.allowed[docType]
	return ok
}
