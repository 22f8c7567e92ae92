package collector

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"MarketLens/internal/model"
)

var (
	// ErrDataUnavailable means no source could produce data for the request.
	ErrDataUnavailable = errors.New("data unavailable")
	// ErrTickerNotFound is returned by a source that answered but does not know the ticker.
	ErrTickerNotFound = errors.New("ticker not found")
	// ErrNotSupported is returned by a source that does not offer the requested data.
	ErrNotSupported = errors.New("not supported by source")
)

// Fetcher defines the interface for fetching market data.
type Fetcher interface {
	// FetchSeries returns ascending, deduplicated daily closes in [start, end].
	// A zero start means the full history, a zero end means today.
	FetchSeries(ctx context.Context, ticker string, start, end time.Time) (model.PriceSeries, error)
	FetchListingDate(ctx context.Context, ticker string) (time.Time, error)
	FetchFundamentals(ctx context.Context, ticker string) (model.Fundamentals, error)
	Name() string
}

// NormalizeTicker trims and upper-cases a user supplied symbol.
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

func newHTTPClient(proxyURL string) *http.Client {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &http.Client{
		Timeout:   30 * time.Second,
		Transport: transport,
	}
}

// dayOf truncates t to midnight UTC of its calendar date in t's location.
func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// normalizePoints sorts by date and keeps the last point seen for each date.
func normalizePoints(points []model.PricePoint) []model.PricePoint {
	sort.SliceStable(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })
	out := points[:0]
	for _, p := range points {
		if n := len(out); n > 0 && out[n-1].Date.Equal(p.Date) {
			out[n-1] = p
			continue
		}
		out = append(out, p)
	}
	return out
}
