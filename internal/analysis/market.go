package analysis

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"MarketLens/internal/collector"
	"MarketLens/internal/model"
	"MarketLens/internal/recorder"
	"MarketLens/internal/strategy"
)

// DefaultBasket is the mega-cap basket behind the valuation endpoints.
var DefaultBasket = []string{"AAPL", "MSFT", "GOOGL", "AMZN", "NVDA", "META", "TSLA", "AVGO"}

// periods maps a history period to its calendar length; "max" is unbounded.
var periods = map[string]func(time.Time) time.Time{
	"1mo": func(t time.Time) time.Time { return t.AddDate(0, -1, 0) },
	"3mo": func(t time.Time) time.Time { return t.AddDate(0, -3, 0) },
	"6mo": func(t time.Time) time.Time { return t.AddDate(0, -6, 0) },
	"1y":  func(t time.Time) time.Time { return t.AddDate(-1, 0, 0) },
	"2y":  func(t time.Time) time.Time { return t.AddDate(-2, 0, 0) },
	"5y":  func(t time.Time) time.Time { return t.AddDate(-5, 0, 0) },
	"10y": func(t time.Time) time.Time { return t.AddDate(-10, 0, 0) },
	"max": func(time.Time) time.Time { return time.Time{} },
}

const (
	riskReturnMinPoints = 50
	annualization       = 252.0
)

// Market serves the basket and multi-ticker endpoints.
type Market struct {
	collector   *collector.Collector
	recorder    recorder.Recorder
	logger      zerolog.Logger
	basket      []string
	concurrency int
	now         func() time.Time
}

// NewMarket wires a Market. An empty basket uses DefaultBasket.
func NewMarket(col *collector.Collector, rec recorder.Recorder, logger zerolog.Logger, basket []string, concurrency int) *Market {
	if len(basket) == 0 {
		basket = DefaultBasket
	}
	if concurrency <= 0 {
		concurrency = 8
	}
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	return &Market{
		collector:   col,
		recorder:    rec,
		logger:      logger.With().Str("component", "market").Logger(),
		basket:      basket,
		concurrency: concurrency,
		now:         time.Now,
	}
}

// fanOut runs fn for every ticker through a bounded pool. Failed tickers are
// logged and left out; the returned slice keeps ticker order.
func fanOut[T any](ctx context.Context, m *Market, op string, tickers []string, fn func(context.Context, string) (T, error)) []tickerResult[T] {
	results := make([]tickerResult[T], len(tickers))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.concurrency)
	for i, t := range tickers {
		g.Go(func() error {
			v, err := fn(gctx, t)
			if err != nil {
				m.logger.Warn().Err(err).Str("ticker", t).Str("op", op).Msg("skipping ticker")
				return nil
			}
			results[i] = tickerResult[T]{Ticker: t, Value: v, OK: true}
			return nil
		})
	}
	_ = g.Wait()

	out := results[:0]
	for _, r := range results {
		if r.OK {
			out = append(out, r)
		}
	}
	return out
}

type tickerResult[T any] struct {
	Ticker string
	Value  T
	OK     bool
}

// Valuation returns the market-cap weighted PE of the basket, computed as
// total market cap over total earnings. Tickers lacking either figure are skipped.
func (m *Market) Valuation(ctx context.Context) (*model.Valuation, error) {
	funds := fanOut(ctx, m, "fundamentals", m.basket, m.collector.Fundamentals)

	v := &model.Valuation{Details: []model.ValuationDetail{}}
	var totalCap, totalEarnings float64
	for _, r := range funds {
		f := r.Value
		if f.MarketCap <= 0 || f.TrailingPE <= 0 {
			continue
		}
		totalCap += f.MarketCap
		totalEarnings += f.MarketCap / f.TrailingPE
		v.Details = append(v.Details, model.ValuationDetail{Ticker: r.Ticker, PE: f.TrailingPE, MarketCap: f.MarketCap})
	}
	if totalEarnings == 0 {
		return nil, fmt.Errorf("%w: no fundamentals for basket", ErrNotFound)
	}
	v.WeightedPE = totalCap / totalEarnings
	return v, nil
}

// PEHistory approximates the basket's weighted PE over period by holding
// earnings at their current level: a market-cap weighted price index,
// normalized to 1 on the last common date, scaled by today's weighted PE.
func (m *Market) PEHistory(ctx context.Context, period string) (*model.PEHistory, error) {
	if period == "" {
		period = "2y"
	}
	startOf, ok := periods[period]
	if !ok {
		return nil, fmt.Errorf("%w: unknown period %q", ErrInvalidRequest, period)
	}

	valuation, err := m.Valuation(ctx)
	if err != nil {
		return nil, err
	}

	tickers := make([]string, len(valuation.Details))
	caps := make(map[string]float64, len(valuation.Details))
	for i, d := range valuation.Details {
		tickers[i] = d.Ticker
		caps[d.Ticker] = d.MarketCap
	}

	start := startOf(m.now().UTC())
	series := fanOut(ctx, m, "series", tickers, func(ctx context.Context, t string) (model.PriceSeries, error) {
		return m.collector.Series(ctx, t, start, time.Time{})
	})
	if len(series) == 0 {
		return nil, fmt.Errorf("%w: no price history for basket", ErrNotFound)
	}

	// Keep only dates every ticker traded on.
	byDate := make([]map[string]float64, len(series))
	counts := map[string]int{}
	for i, r := range series {
		byDate[i] = make(map[string]float64, r.Value.Len())
		for _, p := range r.Value.Points {
			d := p.Date.Format(model.DateLayout)
			if isFinite(p.Close) && p.Close > 0 {
				byDate[i][d] = p.Close
				counts[d]++
			}
		}
	}
	var common []string
	for _, d := range series[0].Value.DateStrings() {
		if counts[d] == len(series) {
			common = append(common, d)
		}
	}
	if len(common) == 0 {
		return nil, fmt.Errorf("%w: basket histories do not overlap", ErrNotFound)
	}

	var totalCap float64
	for _, r := range series {
		totalCap += caps[r.Ticker]
	}
	last := common[len(common)-1]
	out := &model.PEHistory{Dates: common, Values: make([]float64, len(common))}
	for j, d := range common {
		index := 0.0
		for i, r := range series {
			w := caps[r.Ticker] / totalCap
			index += w * byDate[i][d] / byDate[i][last]
		}
		out.Values[j] = index * valuation.WeightedPE
	}
	return out, nil
}

// ParseTickers splits a comma or space separated ticker list, dropping blanks
// and duplicates.
func ParseTickers(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == ' ' })
	seen := map[string]bool{}
	var out []string
	for _, f := range fields {
		t := collector.NormalizeTicker(f)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// RiskReturn returns the annualized mean daily return and volatility, in
// percent rounded to 0.1, over the last year of each ticker.
func (m *Market) RiskReturn(ctx context.Context, tickers []string) ([]model.RiskReturn, error) {
	if len(tickers) == 0 {
		return nil, fmt.Errorf("%w: no tickers", ErrInvalidRequest)
	}
	start := periods["1y"](m.now().UTC())
	results := fanOut(ctx, m, "risk-return", tickers, func(ctx context.Context, t string) (model.RiskReturn, error) {
		s, err := m.collector.Series(ctx, t, start, time.Time{})
		if err != nil {
			return model.RiskReturn{}, err
		}
		return riskReturn(t, PrepareSeries(s).Closes())
	})

	out := make([]model.RiskReturn, 0, len(results))
	for _, r := range results {
		out = append(out, r.Value)
	}
	return out, nil
}

var errShortHistory = errors.New("fewer than 50 points")

func riskReturn(ticker string, closes []float64) (model.RiskReturn, error) {
	if len(closes) < riskReturnMinPoints {
		return model.RiskReturn{}, errShortHistory
	}
	rets := make([]float64, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		rets[i-1] = closes[i]/closes[i-1] - 1
	}
	var mean float64
	for _, r := range rets {
		mean += r
	}
	mean /= float64(len(rets))
	var ss float64
	for _, r := range rets {
		ss += (r - mean) * (r - mean)
	}
	std := math.Sqrt(ss / float64(len(rets)-1))

	return model.RiskReturn{
		Ticker: ticker,
		Return: round1(mean * annualization * 100),
		Risk:   round1(std * math.Sqrt(annualization) * 100),
	}, nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// DCARequest parameterizes a DCA ledger.
type DCARequest struct {
	Ticker string
	strategy.LedgerRequest
}

// DCA replays a fixed-amount plan over the ticker's history.
func (m *Market) DCA(ctx context.Context, req DCARequest) (*model.DCALedger, error) {
	ticker := collector.NormalizeTicker(req.Ticker)
	if ticker == "" {
		return nil, fmt.Errorf("%w: ticker is required", ErrInvalidRequest)
	}
	if !req.Start.IsZero() && !req.End.IsZero() && req.Start.After(req.End) {
		return nil, fmt.Errorf("%w: start after end", ErrInvalidRequest)
	}

	series, err := m.collector.Series(ctx, ticker, req.Start, req.End)
	if err != nil {
		if errors.Is(err, collector.ErrDataUnavailable) || errors.Is(err, collector.ErrTickerNotFound) {
			return nil, fmt.Errorf("%w: %s: %w", ErrNotFound, ticker, err)
		}
		return nil, err
	}

	ledger, err := strategy.RunLedger(PrepareSeries(series), req.LedgerRequest)
	if err != nil {
		if errors.Is(err, strategy.ErrInvalidAmount) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrNotFound, err)
	}

	evt := &recorder.LedgerEvent{
		Ticker:        ticker,
		Frequency:     string(req.Frequency),
		Amount:        req.Amount.InexactFloat64(),
		Purchases:     ledger.Purchases,
		TotalInvested: ledger.TotalInvested,
		FinalValue:    ledger.FinalValue,
		ReturnPct:     ledger.ReturnPct,
	}
	if err := m.recorder.RecordLedger(evt); err != nil {
		m.logger.Warn().Err(err).Str("ticker", ticker).Msg("record ledger failed")
	}
	return ledger, nil
}
