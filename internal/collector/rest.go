package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"MarketLens/internal/model"
)

// RESTFetcher implements Fetcher against a generic daily-bars REST API.
type RESTFetcher struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
	Limiter *rate.Limiter
}

// NewRESTFetcher creates a new fetcher with optional proxy support.
func NewRESTFetcher(baseURL, apiKey, proxyURL string, rps float64) *RESTFetcher {
	if rps <= 0 {
		rps = 5
	}
	return &RESTFetcher{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client:  newHTTPClient(proxyURL),
		Limiter: rate.NewLimiter(rate.Limit(rps), 1),
	}
}

func (f *RESTFetcher) Name() string { return "rest" }

// restBar is the expected JSON shape of one daily bar.
type restBar struct {
	Timestamp int64   `json:"timestamp"`
	Close     float64 `json:"close"`
}

type restProfile struct {
	ListingDate string  `json:"listing_date"`
	MarketCap   float64 `json:"market_cap"`
	TrailingPE  float64 `json:"trailing_pe"`
}

func (f *RESTFetcher) FetchSeries(ctx context.Context, ticker string, start, end time.Time) (model.PriceSeries, error) {
	q := url.Values{"symbol": {ticker}}
	if !start.IsZero() {
		q.Set("from", start.Format(model.DateLayout))
	}
	if !end.IsZero() {
		q.Set("to", end.Format(model.DateLayout))
	}

	var bars []restBar
	if err := f.get(ctx, "/api/v1/bars/daily?"+q.Encode(), &bars); err != nil {
		return model.PriceSeries{}, fmt.Errorf("fetch bars: %w", err)
	}
	if len(bars) == 0 {
		return model.PriceSeries{}, fmt.Errorf("fetch bars %s: %w", ticker, ErrTickerNotFound)
	}

	points := make([]model.PricePoint, len(bars))
	for i, b := range bars {
		points[i] = model.PricePoint{Date: dayOf(time.Unix(b.Timestamp, 0).UTC()), Close: b.Close}
	}
	series := model.PriceSeries{Ticker: ticker, Points: normalizePoints(points)}
	return series.Between(dayBound(start), dayBound(end)), nil
}

// FetchListingDate uses the profile endpoint and falls back to the first bar.
func (f *RESTFetcher) FetchListingDate(ctx context.Context, ticker string) (time.Time, error) {
	p, err := f.profile(ctx, ticker)
	if err == nil && p.ListingDate != "" {
		if d, perr := time.Parse(model.DateLayout, p.ListingDate); perr == nil {
			return d, nil
		}
	}
	series, serr := f.FetchSeries(ctx, ticker, time.Time{}, time.Time{})
	if serr != nil {
		return time.Time{}, serr
	}
	return series.Points[0].Date, nil
}

func (f *RESTFetcher) FetchFundamentals(ctx context.Context, ticker string) (model.Fundamentals, error) {
	p, err := f.profile(ctx, ticker)
	if err != nil {
		return model.Fundamentals{}, err
	}
	return model.Fundamentals{Ticker: ticker, MarketCap: p.MarketCap, TrailingPE: p.TrailingPE}, nil
}

func (f *RESTFetcher) profile(ctx context.Context, ticker string) (restProfile, error) {
	var p restProfile
	if err := f.get(ctx, "/api/v1/profile?symbol="+url.QueryEscape(ticker), &p); err != nil {
		return p, fmt.Errorf("fetch profile: %w", err)
	}
	return p, nil
}

func (f *RESTFetcher) get(ctx context.Context, path string, dst any) error {
	if f.Limiter != nil {
		if err := f.Limiter.Wait(ctx); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.BaseURL+path, nil)
	if err != nil {
		return err
	}
	if f.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.APIKey)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return ErrTickerNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d, body: %.200s", resp.StatusCode, string(body))
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}
