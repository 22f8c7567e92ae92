// Package collector fetches price histories and fundamentals from market data
// sources and computes the indicator snapshot attached to analyses.
package collector

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"MarketLens/internal/cache"
	"MarketLens/internal/calculator"
	"MarketLens/internal/metrics"
	"MarketLens/internal/model"
)

// Collector orchestrates data fetching, series caching and indicator computation.
type Collector struct {
	Fetcher Fetcher
	cache   cache.Cache
	ttl     time.Duration
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewCollector creates a new Collector. A nil cache disables series caching.
func NewCollector(fetcher Fetcher, c cache.Cache, ttl time.Duration, m *metrics.Metrics, logger zerolog.Logger) *Collector {
	return &Collector{
		Fetcher: fetcher,
		cache:   c,
		ttl:     ttl,
		metrics: m,
		logger:  logger.With().Str("component", "collector").Logger(),
	}
}

func seriesKey(ticker string, start, end time.Time) string {
	bound := func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.Format(model.DateLayout)
	}
	return fmt.Sprintf("series:%s:%s:%s", ticker, bound(start), bound(end))
}

// Series returns the daily closes of ticker in [start, end], served from the
// cache when possible.
func (c *Collector) Series(ctx context.Context, ticker string, start, end time.Time) (model.PriceSeries, error) {
	ticker = NormalizeTicker(ticker)
	key := seriesKey(ticker, start, end)

	if c.cache != nil {
		var cached model.PriceSeries
		ok, err := cache.GetJSON(ctx, c.cache, key, &cached)
		if err != nil {
			c.logger.Warn().Err(err).Str("key", key).Msg("series cache read failed")
		} else if ok {
			return cached, nil
		}
	}

	series, err := c.Fetcher.FetchSeries(ctx, ticker, start, end)
	if err != nil {
		c.metrics.FetchResult(c.Fetcher.Name(), "error")
		return model.PriceSeries{}, fmt.Errorf("fetch series %s: %w", ticker, err)
	}
	c.metrics.FetchResult(c.Fetcher.Name(), "ok")
	if series.Len() == 0 {
		return model.PriceSeries{}, fmt.Errorf("fetch series %s: %w", ticker, ErrDataUnavailable)
	}

	if c.cache != nil {
		if err := cache.SetJSON(ctx, c.cache, key, series, c.ttl); err != nil {
			c.logger.Warn().Err(err).Str("key", key).Msg("series cache write failed")
		}
	}
	return series, nil
}

// ListingDate returns the first trading date of ticker.
func (c *Collector) ListingDate(ctx context.Context, ticker string) (time.Time, error) {
	ticker = NormalizeTicker(ticker)
	d, err := c.Fetcher.FetchListingDate(ctx, ticker)
	if err != nil {
		return time.Time{}, fmt.Errorf("fetch listing date %s: %w", ticker, err)
	}
	return d, nil
}

// Fundamentals returns market cap and trailing PE of ticker.
func (c *Collector) Fundamentals(ctx context.Context, ticker string) (model.Fundamentals, error) {
	ticker = NormalizeTicker(ticker)
	f, err := c.Fetcher.FetchFundamentals(ctx, ticker)
	if err != nil {
		c.metrics.FetchResult(c.Fetcher.Name(), "error")
		return model.Fundamentals{}, fmt.Errorf("fetch fundamentals %s: %w", ticker, err)
	}
	c.metrics.FetchResult(c.Fetcher.Name(), "ok")
	return f, nil
}

// Indicators computes the indicator snapshot from daily closes. Each failed
// calculation is logged and replaced by a neutral value.
func (c *Collector) Indicators(closes []float64) model.IndicatorSnapshot {
	var ind model.IndicatorSnapshot
	if len(closes) == 0 {
		c.logger.Warn().Msg("no closes for indicators")
		ind.RSI14 = calculator.NeutralRSI
		ind.Position52w = 0.5
		return ind
	}
	currentPrice := closes[len(closes)-1]

	// MA200
	if ma, err := calculator.MA200(closes); err != nil {
		c.logger.Warn().Err(err).Msg("MA200 calculation failed, using current price")
		ind.MA200 = currentPrice
	} else {
		ind.MA200 = ma
	}

	// Daily RSI
	if rsi, err := calculator.RSI(closes, 14); err != nil {
		c.logger.Warn().Err(err).Msg("RSI calculation failed, defaulting to 50")
		ind.RSI14 = calculator.NeutralRSI
	} else {
		ind.RSI14 = rsi
	}

	// 52-week range
	if h, l, err := calculator.TrailingRange(closes, calculator.TradingDaysPerYear); err != nil {
		c.logger.Warn().Err(err).Msg("52-week range calculation failed")
		ind.High52w = currentPrice
		ind.Low52w = currentPrice
	} else {
		ind.High52w = h
		ind.Low52w = l
	}

	// 52-week position
	if pos, err := calculator.RangePosition(currentPrice, ind.High52w, ind.Low52w); err != nil {
		c.logger.Warn().Err(err).Msg("52-week position calculation failed")
		ind.Position52w = 0.5
	} else {
		ind.Position52w = pos
	}

	return ind
}
