package analysis

import (
	"context"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketLens/internal/cache"
	"MarketLens/internal/calculator"
	"MarketLens/internal/collector"
	"MarketLens/internal/metrics"
	"MarketLens/internal/model"
	"MarketLens/internal/recorder"
)

// wavySeries builds n weekday closes from 2020-01-01 with drift and a slow wave.
func wavySeries(ticker string, n int) model.PriceSeries {
	s := model.PriceSeries{Ticker: ticker}
	d := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	for len(s.Points) < n {
		if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
			i := float64(len(s.Points))
			s.Points = append(s.Points, model.PricePoint{Date: d, Close: 100 * math.Exp(0.0005*i+0.02*math.Sin(i/7))})
		}
		d = d.AddDate(0, 0, 1)
	}
	return s
}

type memRecorder struct {
	recorder.NoopRecorder
	mu   sync.Mutex
	runs []recorder.AnalysisRun
}

func (r *memRecorder) RecordAnalysis(run *recorder.AnalysisRun) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = append(r.runs, *run)
	return nil
}

func newTestAnalyzer(fetcher collector.Fetcher, c cache.Cache, rec recorder.Recorder, m *metrics.Metrics, opts Options) *Analyzer {
	col := collector.NewCollector(fetcher, nil, 0, m, zerolog.Nop())
	return NewAnalyzer(col, c, rec, m, zerolog.Nop(), opts)
}

func seed(v uint64) *uint64 { return &v }

func allFinite(vs []float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

func TestDeepAnalysis_FullResponse(t *testing.T) {
	s := wavySeries("SPY", 600)
	fetcher := &collector.MockFetcher{Series: map[string]model.PriceSeries{"SPY": s}}
	rec := &memRecorder{}
	a := newTestAnalyzer(fetcher, nil, rec, nil, Options{Paths: 200})

	resp, err := a.DeepAnalysis(context.Background(), DeepRequest{Ticker: "spy", Horizon: 100, Seed: seed(7)})
	require.NoError(t, err)

	assert.Equal(t, "SPY", resp.Ticker)
	assert.Equal(t, "2020-01-01", resp.FirstDate)
	assert.Equal(t, 600, resp.InvestedDays)
	assert.Equal(t, s.Last().Close, resp.CurrentPrice)
	assert.Empty(t, resp.Warnings)

	assert.Len(t, resp.Trend.Dates, 600)
	assert.Len(t, resp.Trend.Middle, 600)
	for i := range resp.Trend.Middle {
		assert.True(t, resp.Trend.Lower[i] <= resp.Trend.Middle[i] && resp.Trend.Middle[i] <= resp.Trend.Upper[i])
	}

	assert.Len(t, resp.Quant.ZHistory, 100)
	assert.Len(t, resp.Quant.ZDates, 100)
	assert.Equal(t, s.Last().Date.Format(model.DateLayout), resp.Quant.ZDates[99])
	total := 0
	for _, c := range resp.Quant.Counts {
		total += c
	}
	assert.Equal(t, 600-252, total)
	assert.Equal(t, resp.Quant.Mean, resp.AvgLookbackReturn)

	sim := resp.Simulation
	assert.Len(t, sim.P50, 101)
	assert.Len(t, sim.Samples, 30)
	assert.Equal(t, resp.CurrentPrice, sim.P50[0])
	assert.Len(t, sim.ActualPast, 120)
	assert.Len(t, sim.LumpSumPerf, 101)
	assert.Equal(t, 100.0, sim.DCAPerf[0])
	assert.Equal(t, 100.0, sim.SavingsPerf[100])

	assert.NotZero(t, resp.Indicators.MA200)

	require.Len(t, rec.runs, 1)
	assert.Equal(t, "SPY", rec.runs[0].Ticker)
	assert.Equal(t, sim.P50[100], rec.runs[0].ForecastP50)
	assert.Equal(t, 252, rec.runs[0].Lookback)
}

func TestDeepAnalysis_SeededIsReproducible(t *testing.T) {
	fetcher := &collector.MockFetcher{Series: map[string]model.PriceSeries{"SPY": wavySeries("SPY", 400)}}
	a := newTestAnalyzer(fetcher, nil, nil, nil, Options{Paths: 100})

	req := DeepRequest{Ticker: "SPY", Horizon: 50, Seed: seed(42)}
	first, err := a.DeepAnalysis(context.Background(), req)
	require.NoError(t, err)
	second, err := a.DeepAnalysis(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.Simulation, second.Simulation)
	assert.Equal(t, first.Trend, second.Trend)
	assert.Equal(t, first.Quant, second.Quant)
}

func TestDeepAnalysis_ShortSeriesDegradesRollingReturns(t *testing.T) {
	fetcher := &collector.MockFetcher{Series: map[string]model.PriceSeries{"TINY": wavySeries("TINY", 5)}}
	m := metrics.New()
	a := newTestAnalyzer(fetcher, nil, nil, m, Options{MinPoints: 5, Paths: 50})

	resp, err := a.DeepAnalysis(context.Background(), DeepRequest{Ticker: "TINY", Lookback: 252, Horizon: 20, Seed: seed(1)})
	require.NoError(t, err)

	assert.Empty(t, resp.Quant.ZHistory)
	assert.Empty(t, resp.Quant.Counts)
	assert.Zero(t, resp.Quant.Mean)
	assert.Zero(t, resp.CurrentLookbackReturn)
	require.Len(t, resp.Warnings, 1)
	assert.True(t, strings.HasPrefix(resp.Warnings[0], "quant:"))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ComponentFailures.WithLabelValues("quant")))

	assert.Len(t, resp.Trend.Middle, 5)
	assert.Len(t, resp.Simulation.P50, 21)
	assert.Len(t, resp.Simulation.LumpSumPerf, 5)
	assert.Equal(t, calculator.NeutralRSI, resp.Indicators.RSI14)
}

func TestDeepAnalysis_RequestErrors(t *testing.T) {
	fetcher := &collector.MockFetcher{Series: map[string]model.PriceSeries{"SHORT": wavySeries("SHORT", 10)}}
	a := newTestAnalyzer(fetcher, nil, nil, nil, Options{})
	ctx := context.Background()

	_, err := a.DeepAnalysis(ctx, DeepRequest{Ticker: "SHORT"})
	assert.ErrorIs(t, err, ErrInsufficientHistory)

	_, err = a.DeepAnalysis(ctx, DeepRequest{Ticker: "NOPE"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = a.DeepAnalysis(ctx, DeepRequest{Ticker: "  "})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = a.DeepAnalysis(ctx, DeepRequest{Ticker: "SHORT", Lookback: -1})
	assert.ErrorIs(t, err, ErrInvalidRequest)

	_, err = a.DeepAnalysis(ctx, DeepRequest{
		Ticker: "SHORT",
		Start:  time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		End:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestDeepAnalysis_WindowLimits(t *testing.T) {
	fetcher := &collector.MockFetcher{Series: map[string]model.PriceSeries{"SPY": wavySeries("SPY", 300)}}
	a := newTestAnalyzer(fetcher, nil, nil, nil, Options{Paths: 20, MaxLookback: 500, MaxHorizon: 400})
	ctx := context.Background()

	for _, req := range []DeepRequest{
		{Ticker: "SPY", Horizon: 401},
		{Ticker: "SPY", Horizon: 10_000_000},
		{Ticker: "SPY", Horizon: 1 << 40},
		{Ticker: "SPY", Lookback: 501},
	} {
		_, err := a.DeepAnalysis(ctx, req)
		assert.ErrorIs(t, err, ErrInvalidRequest, "lookback=%d horizon=%d", req.Lookback, req.Horizon)
	}
	assert.Zero(t, fetcher.Calls(), "rejected before fetching")

	resp, err := a.DeepAnalysis(ctx, DeepRequest{Ticker: "SPY", Horizon: 400, Seed: seed(1)})
	require.NoError(t, err)
	assert.Len(t, resp.Simulation.P50, 401)
}

func TestOptions_DefaultWindowLimits(t *testing.T) {
	o := Options{}.withDefaults()
	assert.Equal(t, DefaultMaxWindow, o.MaxLookback)
	assert.Equal(t, DefaultMaxWindow, o.MaxHorizon)
	assert.Equal(t, 2520, DefaultMaxWindow)
}

func TestDeepAnalysis_NonFiniteClosesAreFilled(t *testing.T) {
	s := wavySeries("GAPPY", 300)
	s.Points[0].Close = math.NaN()
	s.Points[100].Close = math.Inf(1)
	s.Points[200].Close = -3
	fetcher := &collector.MockFetcher{Series: map[string]model.PriceSeries{"GAPPY": s}}
	a := newTestAnalyzer(fetcher, nil, nil, nil, Options{Paths: 50})

	resp, err := a.DeepAnalysis(context.Background(), DeepRequest{Ticker: "GAPPY", Seed: seed(3)})
	require.NoError(t, err)

	assert.True(t, allFinite(resp.Trend.Prices))
	assert.True(t, allFinite(resp.Trend.Middle))
	assert.True(t, allFinite(resp.Quant.ZHistory))
	assert.True(t, allFinite(resp.Simulation.P50))
	assert.Equal(t, s.Points[1].Close, resp.Trend.Prices[0], "leading gap takes the first finite close")
	assert.Equal(t, resp.Trend.Prices[99], resp.Trend.Prices[100])
	assert.Equal(t, calculator.PriceFloor, resp.Trend.Prices[200])
}

func TestDeepAnalysis_ResponseCache(t *testing.T) {
	fetcher := &collector.MockFetcher{Series: map[string]model.PriceSeries{"SPY": wavySeries("SPY", 300)}}
	a := newTestAnalyzer(fetcher, cache.NewMemory(), nil, nil, Options{Paths: 50})
	ctx := context.Background()

	first, err := a.DeepAnalysis(ctx, DeepRequest{Ticker: "SPY"})
	require.NoError(t, err)
	calls := fetcher.Calls()

	second, err := a.DeepAnalysis(ctx, DeepRequest{Ticker: "spy"})
	require.NoError(t, err)
	assert.Equal(t, calls, fetcher.Calls(), "second request served from cache")
	assert.Equal(t, first.Simulation.P50, second.Simulation.P50)

	_, err = a.DeepAnalysis(ctx, DeepRequest{Ticker: "SPY", Seed: seed(9)})
	require.NoError(t, err)
	assert.Greater(t, fetcher.Calls(), calls, "seeded requests bypass the cache")
}

func TestRunComponent_RecoversPanic(t *testing.T) {
	res := runComponent("boom", func() (int, error) {
		var s []int
		return s[3], nil
	})
	require.Error(t, res.Err)
	assert.True(t, strings.Contains(res.Err.Error(), "boom panicked"))

	ok := runComponent("fine", func() (int, error) { return 4, nil })
	assert.NoError(t, ok.Err)
	assert.Equal(t, 4, ok.Value)
}

func TestPrepareSeries(t *testing.T) {
	s := model.PriceSeries{Ticker: "X"}
	d := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range []float64{math.NaN(), 10, math.NaN(), 0, math.Inf(-1), 12} {
		s.Points = append(s.Points, model.PricePoint{Date: d.AddDate(0, 0, i), Close: c})
	}

	got := PrepareSeries(s).Closes()
	assert.Equal(t, []float64{10, 10, 10, calculator.PriceFloor, calculator.PriceFloor, 12}, got)
	assert.True(t, math.IsNaN(s.Points[0].Close), "input is not modified")
}

func TestSanitize(t *testing.T) {
	resp := &model.DeepAnalysisResponse{
		CurrentPrice: math.NaN(),
		Trend:        model.TrendBlock{Middle: []float64{1, math.Inf(1)}, Slope: math.Inf(-1)},
		Quant:        model.QuantBlock{CurrentZ: math.NaN(), ZHistory: []float64{math.NaN()}},
		Simulation:   model.SimulationBlock{Samples: [][]float64{{math.Inf(1), 2}}},
		Indicators:   model.IndicatorSnapshot{Position52w: math.NaN()},
	}
	Sanitize(resp)

	assert.Zero(t, resp.CurrentPrice)
	assert.Equal(t, []float64{1, 0}, resp.Trend.Middle)
	assert.Zero(t, resp.Trend.Slope)
	assert.Zero(t, resp.Quant.CurrentZ)
	assert.Equal(t, []float64{0}, resp.Quant.ZHistory)
	assert.Equal(t, []float64{0, 2}, resp.Simulation.Samples[0])
	assert.Zero(t, resp.Indicators.Position52w)
}
