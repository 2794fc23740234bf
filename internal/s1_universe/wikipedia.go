package s1_universe

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/wonny/trifund/internal/contracts"
	"github.com/wonny/trifund/pkg/httputil"
	"github.com/wonny/trifund/pkg/logger"
)

// DefaultWikipediaURL is the article root of the constituent pages
const DefaultWikipediaURL = "https://en.wikipedia.org/wiki/"

// IndexPage describes where one index's constituent table lives
type IndexPage struct {
	Index         contracts.IndexSource
	Path          string
	TickerColumns []string // first header match wins
	NameColumns   []string
	DefaultSuffix string // appended when a ticker carries no suffix
}

// DefaultIndexPages lists the six constituent pages
func DefaultIndexPages() []IndexPage {
	return []IndexPage{
		{Index: contracts.IndexSP500, Path: "List_of_S%26P_500_companies", TickerColumns: []string{"Symbol"}, NameColumns: []string{"Security"}},
		{Index: contracts.IndexNasdaq100, Path: "Nasdaq-100", TickerColumns: []string{"Ticker", "Symbol"}, NameColumns: []string{"Company", "Security"}},
		{Index: contracts.IndexDJIA, Path: "Dow_Jones_Industrial_Average", TickerColumns: []string{"Symbol"}, NameColumns: []string{"Company"}},
		{Index: contracts.IndexDAX, Path: "DAX", TickerColumns: []string{"Ticker", "Symbol", "Tickersymbol"}, NameColumns: []string{"Company", "Name"}, DefaultSuffix: "DE"},
		{Index: contracts.IndexEuroStoxx50, Path: "Euro_Stoxx_50", TickerColumns: []string{"Ticker", "Symbol"}, NameColumns: []string{"Name", "Company"}},
		{Index: contracts.IndexCAC40, Path: "CAC_40", TickerColumns: []string{"Ticker", "Symbol"}, NameColumns: []string{"Company", "Name"}, DefaultSuffix: "PA"},
	}
}

// WikipediaSource scrapes index constituents from Wikipedia tables
type WikipediaSource struct {
	client  *httputil.Client
	baseURL string
	pages   []IndexPage
	pause   time.Duration
	logger  *logger.Logger
}

// NewWikipediaSource creates a scraper; baseURL "" means DefaultWikipediaURL
func NewWikipediaSource(client *httputil.Client, baseURL string, log *logger.Logger) *WikipediaSource {
	if baseURL == "" {
		baseURL = DefaultWikipediaURL
	}
	return &WikipediaSource{
		client:  client,
		baseURL: baseURL,
		pages:   DefaultIndexPages(),
		pause:   500 * time.Millisecond,
		logger:  log.WithField("module", "wikipedia"),
	}
}

// WithPages overrides the scraped pages
func (w *WikipediaSource) WithPages(pages []IndexPage) *WikipediaSource {
	w.pages = pages
	return w
}

// WithPause sets the delay between page requests
func (w *WikipediaSource) WithPause(d time.Duration) *WikipediaSource {
	w.pause = d
	return w
}

// Name implements Source
func (w *WikipediaSource) Name() string { return "wikipedia" }

// Fetch scrapes every page. A page that fails or has no matching table is
// logged and skipped; Fetch fails only when no page yields a constituent.
func (w *WikipediaSource) Fetch(ctx context.Context) ([]contracts.Instrument, error) {
	var all []contracts.Instrument
	var lastErr error

	for i, page := range w.pages {
		if i > 0 && w.pause > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(w.pause):
			}
		}

		insts, err := w.fetchPage(ctx, page)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			w.logger.WithError(err).WithField("index", page.Index).Warn("Constituent page skipped")
			continue
		}

		w.logger.WithFields(map[string]interface{}{
			"index": page.Index,
			"count": len(insts),
		}).Info("Constituents scraped")
		all = append(all, insts...)
	}

	if len(all) == 0 {
		if lastErr == nil {
			lastErr = fmt.Errorf("no constituent tables found")
		}
		return nil, fmt.Errorf("wikipedia universe empty: %w", lastErr)
	}

	return all, nil
}

func (w *WikipediaSource) fetchPage(ctx context.Context, page IndexPage) ([]contracts.Instrument, error) {
	body, err := w.client.GetBody(ctx, w.baseURL+page.Path)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", page.Path, err)
	}
	return ParseConstituents(body, page)
}

// ParseConstituents extracts the first wikitable carrying a ticker column
func ParseConstituents(html []byte, page IndexPage) ([]contracts.Instrument, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var out []contracts.Instrument
	found := false

	doc.Find("table.wikitable").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		headers := headerCells(table)
		tickerCol := columnIndex(headers, page.TickerColumns)
		if tickerCol < 0 {
			return true
		}
		nameCol := columnIndex(headers, page.NameColumns)
		found = true

		table.Find("tr").Each(func(_ int, row *goquery.Selection) {
			cells := row.Find("td, th")
			if row.Find("td").Length() == 0 || cells.Length() <= tickerCol {
				return
			}

			id := FormatTicker(cells.Eq(tickerCol).Text())
			if id == "" {
				return
			}
			if page.DefaultSuffix != "" && !hasSuffix(id) {
				id = id + "." + page.DefaultSuffix
			}

			inst := contracts.Instrument{ID: id, Index: page.Index}
			if nameCol >= 0 && nameCol < cells.Length() {
				inst.Name = cleanText(cells.Eq(nameCol).Text())
			}
			out = append(out, inst)
		})
		return false
	})

	if !found {
		return nil, fmt.Errorf("no table with column %v for %s", page.TickerColumns, page.Index)
	}

	return contracts.MergeInstruments(out), nil
}

func headerCells(table *goquery.Selection) []string {
	var headers []string
	table.Find("tr").First().Find("th").Each(func(_ int, th *goquery.Selection) {
		headers = append(headers, cleanText(th.Text()))
	})
	return headers
}

func columnIndex(headers, candidates []string) int {
	for _, c := range candidates {
		for i, h := range headers {
			if strings.EqualFold(h, c) {
				return i
			}
		}
	}
	return -1
}

func cleanText(s string) string {
	if i := strings.IndexByte(s, '['); i > 0 {
		s = s[:i]
	}
	return strings.Join(strings.Fields(s), " ")
}
