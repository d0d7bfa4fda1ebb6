// Package universe resolves the list of tickers a batch run covers.
package universe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	apperrors "crosscheck/internal/errors"
	"crosscheck/pkg/utils"
)

// DefaultURL lists the S&P 500 constituents.
const DefaultURL = "https://en.wikipedia.org/wiki/List_of_S%26P_500_companies"

const userAgent = "crosscheck/1.0 (trend validation research)"

// Constituent is one row of the constituents table.
type Constituent struct {
	Ticker string `json:"ticker"`
	Name   string `json:"name,omitempty"`
	CIK    string `json:"cik,omitempty"`
}

// Scraper downloads and parses a constituents table.
type Scraper struct {
	URL    string
	Client *http.Client
	Retry  utils.RetryConfig
}

// NewScraper creates a scraper for url; empty means DefaultURL.
func NewScraper(url string) *Scraper {
	if url == "" {
		url = DefaultURL
	}
	return &Scraper{
		URL:    url,
		Client: &http.Client{Timeout: 30 * time.Second},
		Retry:  utils.DefaultRetryConfig(),
	}
}

// Fetch downloads the page and returns its constituents in table order.
func (s *Scraper) Fetch(ctx context.Context) ([]Constituent, error) {
	doc, err := utils.RetryWithResult(ctx, s.Retry, func() (*goquery.Document, error) {
		return s.download(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w: %v", s.URL, apperrors.ErrSourceUnavailable, err)
	}
	return parseDocument(doc)
}

func (s *Scraper) download(ctx context.Context) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 && resp.StatusCode < 500 {
		return nil, utils.Permanent(fmt.Errorf("unexpected status %d", resp.StatusCode))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return goquery.NewDocumentFromReader(resp.Body)
}

// Parse reads constituents from an HTML page.
func Parse(r io.Reader) ([]Constituent, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parsing html: %w", err)
	}
	return parseDocument(doc)
}

// parseDocument reads the table with id "constituents", or the first wikitable.
// Columns are located by header text, defaulting to symbol in column 0 and CIK in 7.
func parseDocument(doc *goquery.Document) ([]Constituent, error) {
	table := doc.Find("table#constituents").First()
	if table.Length() == 0 {
		table = doc.Find("table.wikitable").First()
	}
	if table.Length() == 0 {
		return nil, apperrors.NewDataError("universe", "", "no constituents table", apperrors.ErrDataNotFound)
	}

	symbolCol, nameCol, cikCol := 0, 1, 7
	table.Find("tr").First().Find("th").Each(func(i int, th *goquery.Selection) {
		switch h := strings.ToLower(strings.TrimSpace(th.Text())); {
		case h == "symbol" || h == "ticker":
			symbolCol = i
		case h == "security" || h == "company":
			nameCol = i
		case h == "cik":
			cikCol = i
		}
	})

	var out []Constituent
	seen := make(map[string]bool)
	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() <= symbolCol {
			return
		}
		ticker := strings.TrimSpace(cells.Eq(symbolCol).Text())
		if ticker == "" || seen[ticker] {
			return
		}
		seen[ticker] = true

		c := Constituent{Ticker: ticker}
		if cells.Length() > nameCol {
			c.Name = strings.TrimSpace(cells.Eq(nameCol).Text())
		}
		if cells.Length() > cikCol {
			c.CIK = strings.TrimSpace(cells.Eq(cikCol).Text())
		}
		out = append(out, c)
	})

	if len(out) == 0 {
		return nil, apperrors.NewDataError("universe", "", "constituents table is empty", apperrors.ErrDataNotFound)
	}
	return out, nil
}

// Tickers returns the ticker column, optionally capped at limit (0 means all).
func Tickers(constituents []Constituent, limit int) []string {
	n := len(constituents)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = constituents[i].Ticker
	}
	return out
}

// ParseList splits a comma or whitespace separated ticker list.
func ParseList(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\n' || r == '\t'
	})
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		out = append(out, strings.ToUpper(f))
	}
	return out
}
