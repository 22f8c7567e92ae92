package collector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketLens/internal/cache"
	"MarketLens/internal/calculator"
	"MarketLens/internal/model"
)

func fixedSeries(ticker string, closes ...float64) model.PriceSeries {
	s := model.PriceSeries{Ticker: ticker}
	d := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, c := range closes {
		s.Points = append(s.Points, model.PricePoint{Date: d, Close: c})
		d = d.AddDate(0, 0, 1)
	}
	return s
}

func TestChain_FallsBackToSecondary(t *testing.T) {
	primary := &MockFetcher{Err: errors.New("connection refused")}
	secondary := &MockFetcher{Series: map[string]model.PriceSeries{"SPY": fixedSeries("SPY", 1, 2, 3)}}
	chain := NewChain(BreakerSettings{}, zerolog.Nop(), nil, primary, secondary)

	s, err := chain.FetchSeries(context.Background(), "SPY", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, 1, primary.Calls())
	assert.Equal(t, 1, secondary.Calls())
}

func TestChain_ExhaustedIsDataUnavailable(t *testing.T) {
	a := &MockFetcher{Err: errors.New("timeout")}
	b := &MockFetcher{}
	chain := NewChain(BreakerSettings{}, zerolog.Nop(), nil, a, b)

	_, err := chain.FetchSeries(context.Background(), "NOPE", time.Time{}, time.Time{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDataUnavailable)
	assert.ErrorIs(t, err, ErrTickerNotFound)
}

func TestChain_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	flaky := &MockFetcher{Err: errors.New("503")}
	backup := &MockFetcher{Series: map[string]model.PriceSeries{"SPY": fixedSeries("SPY", 1, 2)}}
	chain := NewChain(BreakerSettings{ConsecutiveFailures: 2, OpenTimeout: time.Hour}, zerolog.Nop(), nil, flaky, backup)

	for i := 0; i < 5; i++ {
		_, err := chain.FetchSeries(context.Background(), "SPY", time.Time{}, time.Time{})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, flaky.Calls(), "open breaker short-circuits the flaky source")
	assert.Equal(t, gobreaker.StateOpen, chain.sources[0].breaker.State())
}

func TestChain_UnknownTickerDoesNotTripBreaker(t *testing.T) {
	src := &MockFetcher{}
	chain := NewChain(BreakerSettings{ConsecutiveFailures: 1}, zerolog.Nop(), nil, src)
	for i := 0; i < 3; i++ {
		_, _ = chain.FetchSeries(context.Background(), "NOPE", time.Time{}, time.Time{})
	}
	assert.Equal(t, 3, src.Calls())
	assert.Equal(t, gobreaker.StateClosed, chain.sources[0].breaker.State())
}

func TestChain_CanceledContext(t *testing.T) {
	src := &MockFetcher{Price: 100}
	chain := NewChain(BreakerSettings{}, zerolog.Nop(), nil, src)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := chain.FetchSeries(ctx, "SPY", time.Time{}, time.Time{})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, src.Calls())
}

func TestCollector_SeriesIsCached(t *testing.T) {
	src := &MockFetcher{Series: map[string]model.PriceSeries{"SPY": fixedSeries("SPY", 1, 2, 3)}}
	c := NewCollector(src, cache.NewMemory(), time.Minute, nil, zerolog.Nop())

	for i := 0; i < 3; i++ {
		s, err := c.Series(context.Background(), " spy ", time.Time{}, time.Time{})
		require.NoError(t, err)
		assert.Equal(t, []float64{1, 2, 3}, s.Closes())
	}
	assert.Equal(t, 1, src.Calls())
}

func TestCollector_SeriesWithoutCache(t *testing.T) {
	src := &MockFetcher{Price: 50, Days: 40}
	c := NewCollector(src, nil, 0, nil, zerolog.Nop())

	s, err := c.Series(context.Background(), "ANY", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 40, s.Len())
	assert.NoError(t, s.Validate())

	_, err = c.Series(context.Background(), "ANY", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Equal(t, 2, src.Calls())
}

func TestCollector_EmptyWindowIsUnavailable(t *testing.T) {
	src := &MockFetcher{Series: map[string]model.PriceSeries{"SPY": fixedSeries("SPY", 1, 2, 3)}}
	c := NewCollector(src, nil, 0, nil, zerolog.Nop())

	_, err := c.Series(context.Background(), "SPY", time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC), time.Time{})
	assert.ErrorIs(t, err, ErrDataUnavailable)
}

func TestCollector_Indicators(t *testing.T) {
	c := NewCollector(&MockFetcher{}, nil, 0, nil, zerolog.Nop())

	closes := make([]float64, 300)
	for i := range closes {
		closes[i] = float64(i + 1)
	}
	ind := c.Indicators(closes)
	assert.InDelta(t, 200.5, ind.MA200, 1e-9) // mean of 101..300
	assert.Equal(t, 100.0, ind.RSI14)
	assert.Equal(t, 300.0, ind.High52w)
	assert.Equal(t, 49.0, ind.Low52w)
	assert.Equal(t, 1.0, ind.Position52w)
}

func TestCollector_IndicatorsFallbacks(t *testing.T) {
	c := NewCollector(&MockFetcher{}, nil, 0, nil, zerolog.Nop())

	ind := c.Indicators([]float64{10, 11, 12})
	assert.Equal(t, 12.0, ind.MA200, "short history falls back to current price")
	assert.Equal(t, calculator.NeutralRSI, ind.RSI14)
	assert.Equal(t, 12.0, ind.High52w)
	assert.Equal(t, 10.0, ind.Low52w)

	empty := c.Indicators(nil)
	assert.Equal(t, calculator.NeutralRSI, empty.RSI14)
	assert.Equal(t, 0.5, empty.Position52w)
}
