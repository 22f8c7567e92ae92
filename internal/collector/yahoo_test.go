package collector

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chartFixture = `{"chart":{"result":[{
  "meta":{"firstTradeDate":728317800,"gmtoffset":-18000},
  "timestamp":[1704292200,1704205800,1704378600],
  "indicators":{
    "quote":[{"close":[101.5,100.5,102.5]}],
    "adjclose":[{"adjclose":[null,100.0,102.0]}]
  }}],"error":null}}`

func newTestYahoo(t *testing.T, handler http.HandlerFunc) *YahooFetcher {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	f := NewYahooFetcher("", 1000)
	f.BaseURL = srv.URL
	return f
}

func TestYahooFetcher_FetchSeries(t *testing.T) {
	var gotPath, gotQuery string
	f := newTestYahoo(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		w.Write([]byte(chartFixture))
	})

	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC)
	s, err := f.FetchSeries(context.Background(), "SPX", start, end)
	require.NoError(t, err)

	assert.Equal(t, "/v8/finance/chart/^GSPC", gotPath)
	assert.True(t, strings.Contains(gotQuery, "period1=1704067200"))
	assert.True(t, strings.Contains(gotQuery, "interval=1d"))

	require.Equal(t, 3, s.Len())
	assert.Equal(t, []string{"2024-01-02", "2024-01-03", "2024-01-04"}, s.DateStrings())
	assert.Equal(t, 100.0, s.Points[0].Close)
	assert.True(t, math.IsNaN(s.Points[1].Close), "null adjusted close kept as NaN")
	assert.Equal(t, 102.0, s.Points[2].Close)
	assert.NoError(t, s.Validate())
}

func TestYahooFetcher_FullHistoryUsesMaxRange(t *testing.T) {
	var gotQuery string
	f := newTestYahoo(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(chartFixture))
	})
	_, err := f.FetchSeries(context.Background(), "SPY", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.True(t, strings.Contains(gotQuery, "range=max"))
}

func TestYahooFetcher_NotFound(t *testing.T) {
	f := newTestYahoo(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found, symbol may be delisted"}}}`))
	})
	_, err := f.FetchSeries(context.Background(), "NOPE", time.Time{}, time.Time{})
	assert.ErrorIs(t, err, ErrTickerNotFound)
}

func TestYahooFetcher_ServerError(t *testing.T) {
	f := newTestYahoo(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	_, err := f.FetchSeries(context.Background(), "SPY", time.Time{}, time.Time{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrTickerNotFound)
}

func TestYahooFetcher_ListingDate(t *testing.T) {
	f := newTestYahoo(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(chartFixture))
	})
	d, err := f.FetchListingDate(context.Background(), "SPY")
	require.NoError(t, err)
	assert.Equal(t, time.Date(1993, 1, 29, 0, 0, 0, 0, time.UTC), d)
}

func TestYahooFetcher_ListingDateFallsBackToHistory(t *testing.T) {
	f := newTestYahoo(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Replace(chartFixture, `"firstTradeDate":728317800,`, "", 1)))
	})
	d, err := f.FetchListingDate(context.Background(), "SPY")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), d)
}

func TestYahooFetcher_Fundamentals(t *testing.T) {
	f := newTestYahoo(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v7/finance/quote", r.URL.Path)
		assert.Equal(t, "AAPL", r.URL.Query().Get("symbols"))
		w.Write([]byte(`{"quoteResponse":{"result":[{"symbol":"AAPL","marketCap":3.0e12,"trailingPE":30.5}]}}`))
	})
	fund, err := f.FetchFundamentals(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 3.0e12, fund.MarketCap)
	assert.Equal(t, 30.5, fund.TrailingPE)
}
