package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"MarketLens/internal/model"
)

// YahooFetcher implements Fetcher using Yahoo Finance public API.
type YahooFetcher struct {
	BaseURL   string
	Client    *http.Client
	Limiter   *rate.Limiter
	SymbolMap map[string]string // maps internal symbol to Yahoo ticker
}

// NewYahooFetcher creates a new Yahoo Finance fetcher limited to rps requests per second.
func NewYahooFetcher(proxyURL string, rps float64) *YahooFetcher {
	if rps <= 0 {
		rps = 2
	}
	return &YahooFetcher{
		BaseURL: "https://query1.finance.yahoo.com",
		Client:  newHTTPClient(proxyURL),
		Limiter: rate.NewLimiter(rate.Limit(rps), 1),
		SymbolMap: map[string]string{
			"SPX500": "^GSPC",
			"SPX":    "^GSPC",
			"SP500":  "^GSPC",
			"NDX":    "^NDX",
		},
	}
}

func (f *YahooFetcher) Name() string { return "yahoo" }

func (f *YahooFetcher) yahooSymbol(symbol string) string {
	if mapped, ok := f.SymbolMap[symbol]; ok {
		return mapped
	}
	return symbol
}

// yahooChart is the response structure from Yahoo Finance chart API.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				FirstTradeDate *int64 `json:"firstTradeDate"`
				GMTOffset      int    `json:"gmtoffset"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close []*float64 `json:"close"`
				} `json:"quote"`
				AdjClose []struct {
					AdjClose []*float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type yahooQuote struct {
	QuoteResponse struct {
		Result []struct {
			Symbol     string   `json:"symbol"`
			MarketCap  *float64 `json:"marketCap"`
			TrailingPE *float64 `json:"trailingPE"`
		} `json:"result"`
	} `json:"quoteResponse"`
}

func (f *YahooFetcher) get(ctx context.Context, u string, dst any) error {
	if f.Limiter != nil {
		if err := f.Limiter.Wait(ctx); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := f.Client.Do(req)
	if err != nil {
		return fmt.Errorf("yahoo fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("yahoo read body: %w", err)
	}
	if resp.StatusCode == http.StatusNotFound {
		return ErrTickerNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("yahoo: status %d, body: %.200s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("yahoo decode: %w", err)
	}
	return nil
}

func (f *YahooFetcher) fetchChart(ctx context.Context, ticker string, params url.Values) (*yahooChart, error) {
	params.Set("interval", "1d")
	params.Set("events", "div,split")
	u := fmt.Sprintf("%s/v8/finance/chart/%s?%s",
		f.BaseURL, url.PathEscape(f.yahooSymbol(ticker)), params.Encode())

	var chart yahooChart
	if err := f.get(ctx, u, &chart); err != nil {
		return nil, err
	}
	if chart.Chart.Error != nil {
		if chart.Chart.Error.Code == "Not Found" {
			return nil, ErrTickerNotFound
		}
		return nil, fmt.Errorf("yahoo api error: %s", chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 {
		return nil, ErrTickerNotFound
	}
	return &chart, nil
}

// FetchSeries returns adjusted daily closes. Null closes are kept as NaN so the
// caller can decide how to fill them.
func (f *YahooFetcher) FetchSeries(ctx context.Context, ticker string, start, end time.Time) (model.PriceSeries, error) {
	params := url.Values{}
	if start.IsZero() {
		params.Set("range", "max")
	} else {
		if end.IsZero() {
			end = time.Now()
		}
		params.Set("period1", strconv.FormatInt(dayOf(start).Unix(), 10))
		params.Set("period2", strconv.FormatInt(dayOf(end).AddDate(0, 0, 1).Unix(), 10))
	}

	chart, err := f.fetchChart(ctx, ticker, params)
	if err != nil {
		return model.PriceSeries{}, err
	}

	result := chart.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return model.PriceSeries{}, fmt.Errorf("yahoo %s: %w", ticker, ErrTickerNotFound)
	}
	closes := result.Indicators.Quote[0].Close
	if len(result.Indicators.AdjClose) > 0 && len(result.Indicators.AdjClose[0].AdjClose) == len(result.Timestamp) {
		closes = result.Indicators.AdjClose[0].AdjClose
	}
	if len(result.Timestamp) == 0 || len(closes) != len(result.Timestamp) {
		return model.PriceSeries{}, fmt.Errorf("yahoo %s: %w", ticker, ErrTickerNotFound)
	}

	zone := time.FixedZone("exchange", result.Meta.GMTOffset)
	points := make([]model.PricePoint, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		c := math.NaN()
		if closes[i] != nil {
			c = *closes[i]
		}
		points = append(points, model.PricePoint{Date: dayOf(time.Unix(ts, 0).In(zone)), Close: c})
	}

	series := model.PriceSeries{Ticker: ticker, Points: normalizePoints(points)}
	return series.Between(dayBound(start), dayBound(end)), nil
}

// FetchListingDate reads the first trade date from chart metadata and falls
// back to the first bar of the full history.
func (f *YahooFetcher) FetchListingDate(ctx context.Context, ticker string) (time.Time, error) {
	chart, err := f.fetchChart(ctx, ticker, url.Values{"range": {"5d"}})
	if err != nil {
		return time.Time{}, err
	}
	meta := chart.Chart.Result[0].Meta
	if meta.FirstTradeDate != nil {
		zone := time.FixedZone("exchange", meta.GMTOffset)
		return dayOf(time.Unix(*meta.FirstTradeDate, 0).In(zone)), nil
	}

	series, err := f.FetchSeries(ctx, ticker, time.Time{}, time.Time{})
	if err != nil {
		return time.Time{}, err
	}
	if series.Len() == 0 {
		return time.Time{}, ErrTickerNotFound
	}
	return series.Points[0].Date, nil
}

func (f *YahooFetcher) FetchFundamentals(ctx context.Context, ticker string) (model.Fundamentals, error) {
	u := fmt.Sprintf("%s/v7/finance/quote?symbols=%s", f.BaseURL, url.QueryEscape(f.yahooSymbol(ticker)))
	var quote yahooQuote
	if err := f.get(ctx, u, &quote); err != nil {
		return model.Fundamentals{}, err
	}
	if len(quote.QuoteResponse.Result) == 0 {
		return model.Fundamentals{}, ErrTickerNotFound
	}
	r := quote.QuoteResponse.Result[0]
	out := model.Fundamentals{Ticker: ticker}
	if r.MarketCap != nil {
		out.MarketCap = *r.MarketCap
	}
	if r.TrailingPE != nil {
		out.TrailingPE = *r.TrailingPE
	}
	return out, nil
}

// dayBound keeps a zero bound open and truncates a set bound to its calendar day.
func dayBound(t time.Time) time.Time {
	if t.IsZero() {
		return t
	}
	return dayOf(t)
}
