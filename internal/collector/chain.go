package collector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"MarketLens/internal/metrics"
	"MarketLens/internal/model"
)

// BreakerSettings tunes the per-source circuit breakers.
type BreakerSettings struct {
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
}

type guardedSource struct {
	fetcher Fetcher
	breaker *gobreaker.CircuitBreaker
}

// Chain tries its sources in order, each behind its own circuit breaker.
// A source that does not know a ticker does not count against its breaker.
type Chain struct {
	sources []guardedSource
	logger  zerolog.Logger
}

// NewChain wraps fetchers in breakers; the first fetcher is the primary source.
func NewChain(settings BreakerSettings, logger zerolog.Logger, m *metrics.Metrics, fetchers ...Fetcher) *Chain {
	if settings.ConsecutiveFailures == 0 {
		settings.ConsecutiveFailures = 3
	}
	if settings.OpenTimeout <= 0 {
		settings.OpenTimeout = 60 * time.Second
	}
	logger = logger.With().Str("component", "collector").Logger()

	c := &Chain{logger: logger}
	for _, f := range fetchers {
		name := f.Name()
		st := gobreaker.Settings{
			Name:    name,
			Timeout: settings.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= settings.ConsecutiveFailures
			},
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, ErrTickerNotFound) ||
					errors.Is(err, context.Canceled) || errors.Is(err, ErrNotSupported)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn().Str("source", name).Str("from", from.String()).Str("to", to.String()).
					Msg("circuit breaker state change")
				m.SetBreakerState(name, float64(to))
			},
		}
		m.SetBreakerState(name, float64(gobreaker.StateClosed))
		c.sources = append(c.sources, guardedSource{fetcher: f, breaker: gobreaker.NewCircuitBreaker(st)})
	}
	return c
}

func (c *Chain) Name() string { return "chain" }

// run calls fn against each source until one succeeds. Exhaustion returns
// ErrDataUnavailable joined with every source error.
func run[T any](ctx context.Context, c *Chain, op, ticker string, fn func(Fetcher) (T, error)) (T, error) {
	var zero T
	var errs []error
	for _, src := range c.sources {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		res, err := src.breaker.Execute(func() (any, error) { return fn(src.fetcher) })
		if err == nil {
			return res.(T), nil
		}
		c.logger.Warn().Err(err).Str("source", src.fetcher.Name()).Str("op", op).Str("ticker", ticker).
			Msg("source failed, trying next")
		errs = append(errs, fmt.Errorf("%s: %w", src.fetcher.Name(), err))
	}
	if len(errs) == 0 {
		return zero, fmt.Errorf("%s %s: no sources configured: %w", op, ticker, ErrDataUnavailable)
	}
	return zero, fmt.Errorf("%s %s: %w: %w", op, ticker, ErrDataUnavailable, errors.Join(errs...))
}

func (c *Chain) FetchSeries(ctx context.Context, ticker string, start, end time.Time) (model.PriceSeries, error) {
	return run(ctx, c, "series", ticker, func(f Fetcher) (model.PriceSeries, error) {
		s, err := f.FetchSeries(ctx, ticker, start, end)
		if err == nil && s.Len() == 0 {
			err = ErrTickerNotFound
		}
		return s, err
	})
}

func (c *Chain) FetchListingDate(ctx context.Context, ticker string) (time.Time, error) {
	return run(ctx, c, "listing date", ticker, func(f Fetcher) (time.Time, error) {
		return f.FetchListingDate(ctx, ticker)
	})
}

func (c *Chain) FetchFundamentals(ctx context.Context, ticker string) (model.Fundamentals, error) {
	return run(ctx, c, "fundamentals", ticker, func(f Fetcher) (model.Fundamentals, error) {
		return f.FetchFundamentals(ctx, ticker)
	})
}
