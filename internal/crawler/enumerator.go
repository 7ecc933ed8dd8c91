package crawler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/dj-urg/camera-pdf-scraper/internal/config"
)

var (
	yearTokenRE  = regexp.MustCompile(`(?:^|[^0-9])((?:19|20)[0-9]{2})(?:[^0-9]|$)`)
	monthTokenRE = regexp.MustCompile(`annomese=(\d{4})(\d{2})`)
)

// Enumerator produces the CrawlKeys for a run using either the fixed-range
// or the discovered-availability strategy.
type Enumerator struct {
	strategy     string
	legislatures []int
	startYear    int
	endYear      int
	yearSelector string
	abortOnError bool
	fetcher      ListingFetcher
	logger       *zap.Logger
}

// NewEnumerator builds an Enumerator from cfg. fetcher is only used by the
// discovered strategy and may be nil for the fixed one.
func NewEnumerator(cfg *config.Config, fetcher ListingFetcher, logger *zap.Logger) *Enumerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enumerator{
		strategy:     cfg.Crawl.Strategy,
		legislatures: append([]int(nil), cfg.Crawl.Legislatures...),
		startYear:    cfg.Crawl.StartYear,
		endYear:      cfg.Crawl.EndYear,
		yearSelector: cfg.Site.YearSelector,
		abortOnError: cfg.Crawl.AbortOnFetchError,
		fetcher:      fetcher,
		logger:       logger,
	}
}

// Keys returns the keys to crawl in a stable order.
func (e *Enumerator) Keys(ctx context.Context) ([]CrawlKey, error) {
	switch e.strategy {
	case config.StrategyFixed, "":
		return FixedRange(e.legislatures, e.startYear, e.endYear), nil
	case config.StrategyDiscovered:
		return e.discover(ctx)
	default:
		return nil, fmt.Errorf("unknown enumeration strategy %q", e.strategy)
	}
}

// FixedRange yields every month of every year in [start, end] for each
// legislature, regardless of whether data exists.
func FixedRange(legislatures []int, start, end int) []CrawlKey {
	if end < start {
		return nil
	}
	keys := make([]CrawlKey, 0, len(legislatures)*(end-start+1)*12)
	for _, leg := range legislatures {
		for year := start; year <= end; year++ {
			for month := 1; month <= 12; month++ {
				keys = append(keys, CrawlKey{Legislature: leg, Year: year, Month: month})
			}
		}
	}
	return keys
}

func (e *Enumerator) discover(ctx context.Context) ([]CrawlKey, error) {
	if e.fetcher == nil {
		return nil, errors.New("discovered strategy requires a listing fetcher")
	}
	var keys []CrawlKey
	for _, leg := range e.legislatures {
		page, err := e.fetcher.FetchIndex(ctx, leg)
		switch {
		case errors.Is(err, ErrNoData):
			e.logger.Debug("No availability index for legislature", zap.Int("legislature", leg))
			continue
		case err != nil && IsFetchError(err) && !e.abortOnError:
			e.logger.Error("Skipping legislature after index fetch failure", zap.Int("legislature", leg), zap.Error(err))
			continue
		case err != nil:
			return nil, fmt.Errorf("fetch availability index for legislature %d: %w", leg, err)
		}

		found := ParseAvailability(page.HTML, leg, e.yearSelector)
		e.logger.Debug("Discovered available months",
			zap.Int("legislature", leg),
			zap.Int("months", len(found)),
		)
		for _, k := range found {
			if e.inRange(k.Year) {
				keys = append(keys, k)
			}
		}
	}
	return keys, nil
}

func (e *Enumerator) inRange(year int) bool {
	if e.startYear > 0 && year < e.startYear {
		return false
	}
	if e.endYear > 0 && year > e.endYear {
		return false
	}
	return true
}

// ParseAvailability reads the year/month navigation of an availability index.
// Each node matched by yearSelector must carry a year in its data-anno or id
// attribute or in its leading label; its months are the anchors below it whose
// href embeds annomese=YYYYMM for that year. Nodes that do not fit the pattern
// are skipped.
func ParseAvailability(html []byte, legislature int, yearSelector string) []CrawlKey {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil
	}
	var keys []CrawlKey
	seen := make(map[CrawlKey]struct{})
	doc.Find(yearSelector).Each(func(_ int, node *goquery.Selection) {
		year, ok := nodeYear(node)
		if !ok {
			return
		}
		node.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
			href, ok := attr(a, "href")
			if !ok {
				return
			}
			m := monthTokenRE.FindStringSubmatch(href)
			if m == nil {
				return
			}
			y, _ := strconv.Atoi(m[1])
			month, _ := strconv.Atoi(m[2])
			if y != year || month < 1 || month > 12 {
				return
			}
			k := CrawlKey{Legislature: legislature, Year: year, Month: month}
			if _, dup := seen[k]; dup {
				return
			}
			seen[k] = struct{}{}
			keys = append(keys, k)
		})
	})
	return keys
}

func nodeYear(node *goquery.Selection) (int, bool) {
	candidates := make([]string, 0, 4)
	if v, ok := attr(node, "data-anno"); ok {
		candidates = append(candidates, v)
	}
	if v, ok := attr(node, "id"); ok {
		candidates = append(candidates, v)
	}
	candidates = append(candidates,
		node.Children().First().Text(),
		strings.TrimSpace(node.Contents().First().Text()),
	)
	for _, c := range candidates {
		if m := yearTokenRE.FindStringSubmatch(c); m != nil {
			year, err := strconv.Atoi(m[1])
			if err == nil {
				return year, true
			}
		}
	}
	return 0, false
}
