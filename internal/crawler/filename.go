package crawler

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dj-urg/camera-pdf-scraper/internal/hash/sha256"
)

const hashLength = 8

var dateTokenRE = regexp.MustCompile(`data(\d{8})`)

var (
	yearKeys  = []string{"anno", "year"}
	monthKeys = []string{"mese", "month"}
	dayKeys   = []string{"giorno", "day"}
)

// Namer derives deterministic filenames from PDF URLs.
type Namer struct {
	slug   string
	hasher Hasher
	logger *zap.Logger
}

// NewNamer builds a Namer for the given commission slug. A nil hasher
// defaults to SHA-256 and a nil logger to a no-op logger.
func NewNamer(slug string, hasher Hasher, logger *zap.Logger) *Namer {
	if hasher == nil {
		hasher = sha256.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Namer{slug: slug, hasher: hasher, logger: logger}
}

// Infer derives the filename components for rawURL. It never fails; a URL
// without any date yields the UnknownDate sentinel and a warning.
func (n *Namer) Infer(rawURL string, legislature int) InferredName {
	name := InferredName{
		Legislature:    legislature,
		CommissionSlug: n.slug,
		Hash:           n.shortHash(rawURL),
	}
	segment, query := splitURL(rawURL)

	token, ok := dateToken(segment)
	if !ok {
		token, ok = queryDateToken(query)
	}
	if !ok {
		n.logger.Warn("No date found in PDF URL; using sentinel",
			zap.String("url", rawURL),
			zap.String("sentinel", UnknownDate),
		)
		name.Date = UnknownDate
		return name
	}

	name.Date, name.DateKnown = isoDate(token)
	if !name.DateKnown {
		n.logger.Debug("Date token is not a calendar date; keeping raw token",
			zap.String("url", rawURL),
			zap.String("token", token),
		)
	}
	return name
}

// Filename is shorthand for Infer(...).Filename().
func (n *Namer) Filename(rawURL string, legislature int) string {
	return n.Infer(rawURL, legislature).Filename()
}

// InferFilename derives the filename for rawURL with the default SHA-256 hasher.
func InferFilename(rawURL string, legislature int, slug string) string {
	return NewNamer(slug, nil, nil).Filename(rawURL, legislature)
}

func (n *Namer) shortHash(rawURL string) string {
	sum, err := n.hasher.Hash([]byte(rawURL))
	if err != nil || len(sum) < hashLength {
		n.logger.Error("Failed to hash PDF URL", zap.String("url", rawURL), zap.Error(err))
		return strings.Repeat("0", hashLength)
	}
	return sum[:hashLength]
}

// splitURL returns the final path segment, with any query string appended,
// and the query of rawURL. A final segment that itself looks like a query
// string is returned as the query.
func splitURL(rawURL string) (string, url.Values) {
	u, err := url.Parse(rawURL)
	if err != nil {
		seg := rawURL
		if i := strings.LastIndex(seg, "/"); i >= 0 {
			seg = seg[i+1:]
		}
		return seg, parseLooseQuery(seg)
	}
	segment := path.Base(u.Path)
	if segment == "." || segment == "/" {
		segment = ""
	}
	if u.RawQuery != "" {
		segment += "?" + u.RawQuery
	}
	query := u.Query()
	if len(query) == 0 {
		query = parseLooseQuery(segment)
	}
	return segment, query
}

func parseLooseQuery(segment string) url.Values {
	if i := strings.Index(segment, "?"); i >= 0 {
		segment = segment[i+1:]
	}
	if !strings.Contains(segment, "=") {
		return nil
	}
	q, err := url.ParseQuery(segment)
	if err != nil {
		return nil
	}
	return q
}

func dateToken(segment string) (string, bool) {
	m := dateTokenRE.FindStringSubmatch(segment)
	if m == nil {
		return "", false
	}
	return m[1], true
}

func queryDateToken(q url.Values) (string, bool) {
	if len(q) == 0 {
		return "", false
	}
	year, okY := firstInt(q, yearKeys)
	month, okM := firstInt(q, monthKeys)
	day, okD := firstInt(q, dayKeys)
	if !okY || !okM || !okD || year < 0 || year > 9999 || month < 0 || month > 99 || day < 0 || day > 99 {
		return "", false
	}
	return fmt.Sprintf("%04d%02d%02d", year, month, day), true
}

func firstInt(q url.Values, keys []string) (int, bool) {
	for _, k := range keys {
		if v := strings.TrimSpace(q.Get(k)); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return 0, false
			}
			return n, true
		}
	}
	return 0, false
}

// isoDate converts YYYYMMDD to YYYY-MM-DD, or returns the token verbatim when
// it is not a valid calendar date.
func isoDate(token string) (string, bool) {
	t, err := time.Parse("20060102", token)
	if err != nil {
		return token, false
	}
	return t.Format("2006-01-02"), true
}
