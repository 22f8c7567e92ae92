// Package analysis composes the calculators into the deep-analysis response
// and the basket-level market endpoints.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"MarketLens/internal/cache"
	"MarketLens/internal/calculator"
	"MarketLens/internal/collector"
	"MarketLens/internal/metrics"
	"MarketLens/internal/model"
	"MarketLens/internal/recorder"
	"MarketLens/internal/strategy"
)

var (
	// ErrNotFound means the ticker's price history could not be obtained.
	ErrNotFound = errors.New("not found")
	// ErrInsufficientHistory means the raw series is below the request minimum.
	ErrInsufficientHistory = errors.New("insufficient history")
	// ErrInvalidRequest means request parameters are malformed.
	ErrInvalidRequest = errors.New("invalid request")
)

// DefaultStart is the analysis start used when none is given.
var DefaultStart = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

// Options tunes the deep-analysis engine. Zero fields take defaults.
type Options struct {
	MinPoints      int
	Paths          int
	Samples        int
	Bins           int
	HistoryLen     int
	ActualPastDays int
	MaxLookback    int // largest accepted lookback, trading days
	MaxHorizon     int // largest accepted horizon, trading days
	CacheTTL       time.Duration
}

// DefaultMaxWindow caps lookback and horizon at ten trading years.
const DefaultMaxWindow = 10 * calculator.TradingDaysPerYear

func (o Options) withDefaults() Options {
	if o.MinPoints <= 0 {
		o.MinPoints = 30
	}
	if o.Paths <= 0 {
		o.Paths = 1000
	}
	if o.Samples <= 0 {
		o.Samples = 30
	}
	if o.Bins <= 0 {
		o.Bins = 60
	}
	if o.HistoryLen <= 0 {
		o.HistoryLen = 100
	}
	if o.ActualPastDays <= 0 {
		o.ActualPastDays = 120
	}
	if o.MaxLookback <= 0 {
		o.MaxLookback = DefaultMaxWindow
	}
	if o.MaxHorizon <= 0 {
		o.MaxHorizon = DefaultMaxWindow
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = 15 * time.Minute
	}
	return o
}

// DeepRequest parameterizes one deep analysis.
type DeepRequest struct {
	Ticker   string
	Start    time.Time // zero means DefaultStart
	End      time.Time // zero means today
	Lookback int       // rolling-return window, trading days
	Horizon  int       // forecast and strategy window, trading days
	Seed     *uint64   // fixes the simulation; seeded responses are not cached
}

// Analyzer runs deep analyses.
type Analyzer struct {
	collector *collector.Collector
	cache     cache.Cache
	recorder  recorder.Recorder
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	opts      Options
	now       func() time.Time
}

// NewAnalyzer wires an Analyzer. A nil cache disables response caching.
func NewAnalyzer(col *collector.Collector, c cache.Cache, rec recorder.Recorder, m *metrics.Metrics, logger zerolog.Logger, opts Options) *Analyzer {
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	return &Analyzer{
		collector: col,
		cache:     c,
		recorder:  rec,
		metrics:   m,
		logger:    logger.With().Str("component", "analysis").Logger(),
		opts:      opts.withDefaults(),
		now:       time.Now,
	}
}

// Result carries one component's output or the error that replaced it.
type Result[T any] struct {
	Value T
	Err   error
}

// runComponent calls fn, turning a panic into an error.
func runComponent[T any](name string, fn func() (T, error)) (res Result[T]) {
	defer func() {
		if r := recover(); r != nil {
			res = Result[T]{Err: fmt.Errorf("%s panicked: %v", name, r)}
		}
	}()
	v, err := fn()
	return Result[T]{Value: v, Err: err}
}

func (a *Analyzer) normalize(req DeepRequest) (DeepRequest, error) {
	req.Ticker = collector.NormalizeTicker(req.Ticker)
	if req.Ticker == "" {
		return req, fmt.Errorf("%w: ticker is required", ErrInvalidRequest)
	}
	if req.Lookback < 0 || req.Horizon < 0 {
		return req, fmt.Errorf("%w: lookback and horizon must be positive", ErrInvalidRequest)
	}
	if req.Lookback > a.opts.MaxLookback {
		return req, fmt.Errorf("%w: lookback %d exceeds maximum %d", ErrInvalidRequest, req.Lookback, a.opts.MaxLookback)
	}
	if req.Horizon > a.opts.MaxHorizon {
		return req, fmt.Errorf("%w: horizon %d exceeds maximum %d", ErrInvalidRequest, req.Horizon, a.opts.MaxHorizon)
	}
	if req.Lookback == 0 {
		req.Lookback = calculator.TradingDaysPerYear
	}
	if req.Horizon == 0 {
		req.Horizon = calculator.TradingDaysPerYear
	}
	if req.Start.IsZero() {
		req.Start = DefaultStart
	}
	if req.End.IsZero() {
		req.End = a.now().UTC()
	}
	y, m, d := req.End.Date()
	req.End = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	if req.Start.After(req.End) {
		return req, fmt.Errorf("%w: start %s after end %s", ErrInvalidRequest,
			req.Start.Format(model.DateLayout), req.End.Format(model.DateLayout))
	}
	return req, nil
}

func deepKey(req DeepRequest) string {
	return fmt.Sprintf("deep:%s:%s:%s:%d:%d", req.Ticker,
		req.Start.Format(model.DateLayout), req.End.Format(model.DateLayout), req.Lookback, req.Horizon)
}

// DeepAnalysis fetches the ticker's history and runs every component on it.
// A component that fails degrades to its empty shape and adds a warning; only
// a missing or too-short series fails the request.
func (a *Analyzer) DeepAnalysis(ctx context.Context, req DeepRequest) (*model.DeepAnalysisResponse, error) {
	req, err := a.normalize(req)
	if err != nil {
		return nil, err
	}
	logger := a.logger.With().Str("ticker", req.Ticker).Logger()

	key := deepKey(req)
	if a.cache != nil && req.Seed == nil {
		var cached model.DeepAnalysisResponse
		ok, err := cache.GetJSON(ctx, a.cache, key, &cached)
		if err != nil {
			logger.Warn().Err(err).Msg("response cache read failed")
		} else if ok {
			return &cached, nil
		}
	}

	started := time.Now()
	series, err := a.collector.Series(ctx, req.Ticker, req.Start, req.End)
	if err != nil {
		if errors.Is(err, collector.ErrDataUnavailable) || errors.Is(err, collector.ErrTickerNotFound) {
			return nil, fmt.Errorf("%w: %s: %w", ErrNotFound, req.Ticker, err)
		}
		return nil, err
	}
	if series.Len() < a.opts.MinPoints {
		return nil, fmt.Errorf("%w: %s has %d points, need %d", ErrInsufficientHistory,
			req.Ticker, series.Len(), a.opts.MinPoints)
	}

	prepared := PrepareSeries(series)
	resp := a.compose(ctx, req, prepared, logger)
	Sanitize(resp)

	a.metrics.ObserveAnalysis(time.Since(started))
	a.record(req, resp, logger)

	if a.cache != nil && req.Seed == nil {
		if err := cache.SetJSON(ctx, a.cache, key, resp, a.opts.CacheTTL); err != nil {
			logger.Warn().Err(err).Msg("response cache write failed")
		}
	}
	return resp, nil
}

func (a *Analyzer) compose(ctx context.Context, req DeepRequest, series model.PriceSeries, logger zerolog.Logger) *model.DeepAnalysisResponse {
	closes := series.Closes()
	simOpts := calculator.SimulationOptions{
		ForecastDays: req.Horizon,
		Paths:        a.opts.Paths,
		Samples:      a.opts.Samples,
		Anchor:       calculator.AnchorLastPrice,
	}
	if req.Seed != nil {
		simOpts.Rand = calculator.NewSeededRand(*req.Seed)
	}

	var (
		trend      Result[*model.TrendResult]
		rolling    Result[*model.RollingReturnStats]
		simulation Result[*model.SimulationResult]
		perf       Result[*model.StrategyPerformance]
		indicators Result[model.IndicatorSnapshot]
		firstDate  time.Time
	)

	var g errgroup.Group
	g.Go(func() error {
		trend = runComponent("trend", func() (*model.TrendResult, error) {
			return calculator.FitTrend(series)
		})
		return nil
	})
	g.Go(func() error {
		rolling = runComponent("rolling returns", func() (*model.RollingReturnStats, error) {
			return calculator.AnalyzeRollingReturns(series, calculator.RollingOptions{
				Lookback:   req.Lookback,
				Bins:       a.opts.Bins,
				HistoryLen: a.opts.HistoryLen,
			})
		})
		return nil
	})
	g.Go(func() error {
		simulation = runComponent("simulation", func() (*model.SimulationResult, error) {
			return calculator.SimulateGBM(series, simOpts)
		})
		return nil
	})
	g.Go(func() error {
		perf = runComponent("strategy", func() (*model.StrategyPerformance, error) {
			return strategy.Compare(series, req.Horizon)
		})
		return nil
	})
	g.Go(func() error {
		indicators = runComponent("indicators", func() (model.IndicatorSnapshot, error) {
			return a.collector.Indicators(closes), nil
		})
		return nil
	})
	g.Go(func() error {
		d, err := a.collector.ListingDate(ctx, req.Ticker)
		if err != nil || d.IsZero() {
			logger.Debug().Err(err).Msg("listing date unavailable, using first point")
			d = series.Points[0].Date
		}
		firstDate = d
		return nil
	})
	_ = g.Wait()

	resp := &model.DeepAnalysisResponse{
		Ticker:       req.Ticker,
		FirstDate:    firstDate.Format(model.DateLayout),
		CurrentPrice: series.Last().Close,
		InvestedDays: series.Len(),
		Warnings:     []string{},
	}

	fail := func(component string, err error) {
		logger.Warn().Err(err).Str("part", component).Msg("component degraded")
		a.metrics.ComponentFailed(component)
		resp.Warnings = append(resp.Warnings, fmt.Sprintf("%s: %v", component, err))
	}

	resp.Trend = emptyTrend(series)
	if trend.Err != nil {
		fail("trend", trend.Err)
	} else {
		t := trend.Value
		resp.Trend.Middle, resp.Trend.Upper, resp.Trend.Lower = t.Middle, t.Upper, t.Lower
		resp.Trend.Slope, resp.Trend.Intercept, resp.Trend.ResidualStd = t.Slope, t.Intercept, t.ResidualStd
	}

	resp.Quant = emptyQuant()
	if rolling.Err != nil {
		fail("quant", rolling.Err)
	} else {
		r := rolling.Value
		resp.Quant = model.QuantBlock{
			Mean:     r.Mean,
			Std:      r.Std,
			CurrentZ: r.CurrentZ,
			ZHistory: r.ZHistory,
			ZDates:   r.ZDates,
			Bins:     r.Bins,
			Counts:   r.Counts,
		}
		resp.AvgLookbackReturn = r.Mean
		resp.CurrentLookbackReturn = r.Current
	}

	resp.Simulation = emptySimulation()
	resp.Simulation.ActualPast = series.Tail(a.opts.ActualPastDays).Closes()
	if simulation.Err != nil {
		fail("simulation", simulation.Err)
	} else {
		s := simulation.Value
		resp.Simulation.P50, resp.Simulation.Upper, resp.Simulation.Lower = s.P50, s.Upper, s.Lower
		resp.Simulation.Samples = s.Samples
	}
	if perf.Err != nil {
		fail("strategy", perf.Err)
	} else {
		p := perf.Value
		resp.Simulation.LumpSumPerf, resp.Simulation.DCAPerf, resp.Simulation.SavingsPerf = p.LumpSum, p.DCA, p.Savings
	}

	if indicators.Err != nil {
		fail("indicators", indicators.Err)
		resp.Indicators = model.IndicatorSnapshot{RSI14: calculator.NeutralRSI, Position52w: 0.5}
	} else {
		resp.Indicators = indicators.Value
	}
	return resp
}

func (a *Analyzer) record(req DeepRequest, resp *model.DeepAnalysisResponse, logger zerolog.Logger) {
	run := &recorder.AnalysisRun{
		Ticker:                req.Ticker,
		Timestamp:             a.now().UTC(),
		CurrentPrice:          resp.CurrentPrice,
		CurrentZ:              resp.Quant.CurrentZ,
		CurrentLookbackReturn: resp.CurrentLookbackReturn,
		Lookback:              req.Lookback,
		Horizon:               req.Horizon,
		Warnings:              len(resp.Warnings),
	}
	if n := len(resp.Simulation.P50); n > 0 {
		run.ForecastP05 = resp.Simulation.Lower[n-1]
		run.ForecastP50 = resp.Simulation.P50[n-1]
		run.ForecastP95 = resp.Simulation.Upper[n-1]
	}
	if err := a.recorder.RecordAnalysis(run); err != nil {
		logger.Warn().Err(err).Msg("record analysis run failed")
	}
}

// History lists recorded runs for ticker, newest first.
func (a *Analyzer) History(ticker string, limit int) ([]recorder.AnalysisRun, error) {
	ticker = collector.NormalizeTicker(ticker)
	if ticker == "" {
		return nil, fmt.Errorf("%w: ticker is required", ErrInvalidRequest)
	}
	return a.recorder.RecentRuns(ticker, limit)
}
