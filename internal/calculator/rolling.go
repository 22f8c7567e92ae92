package calculator

import (
	"fmt"

	"MarketLens/internal/model"
)

// RollingOptions configures AnalyzeRollingReturns. Zero fields take defaults.
type RollingOptions struct {
	Lookback   int // trading days per window
	Bins       int // histogram bins
	HistoryLen int // trailing z-scores to report
}

// DefaultRollingOptions returns a one-year lookback with a 60-bin histogram.
func DefaultRollingOptions() RollingOptions {
	return RollingOptions{Lookback: TradingDaysPerYear, Bins: 60, HistoryLen: 100}
}

func (o RollingOptions) withDefaults() RollingOptions {
	def := DefaultRollingOptions()
	if o.Lookback <= 0 {
		o.Lookback = def.Lookback
	}
	if o.Bins <= 0 {
		o.Bins = def.Bins
	}
	if o.HistoryLen <= 0 {
		o.HistoryLen = def.HistoryLen
	}
	return o
}

// AnalyzeRollingReturns computes the lookback-period return, in percent, for
// every window start i with i+lookback < n. The n-lookback observations overlap
// and are strongly autocorrelated: they describe the empirical distribution of
// lookback-period outcomes, not independent samples.
func AnalyzeRollingReturns(series model.PriceSeries, opts RollingOptions) (*model.RollingReturnStats, error) {
	opts = opts.withDefaults()
	n := series.Len()
	if n <= opts.Lookback {
		return nil, fmt.Errorf("rolling returns need more than %d points, got %d: %w", opts.Lookback, n, ErrInsufficientData)
	}

	closes := series.Closes()
	returns := make([]float64, n-opts.Lookback)
	for i := range returns {
		returns[i] = (closes[i+opts.Lookback]/closes[i] - 1) * 100
	}

	mean, std := meanStd(returns)
	zscore := func(v float64) float64 {
		if std <= StdEpsilon {
			return 0
		}
		return (v - mean) / std
	}

	last := returns[len(returns)-1]
	stats := &model.RollingReturnStats{
		Mean:         mean,
		Std:          std,
		Current:      last,
		CurrentZ:     zscore(last),
		Observations: len(returns),
	}

	histLen := min(opts.HistoryLen, len(returns))
	start := len(returns) - histLen
	stats.ZHistory = make([]float64, 0, histLen)
	stats.ZDates = make([]string, 0, histLen)
	for j := start; j < len(returns); j++ {
		stats.ZHistory = append(stats.ZHistory, zscore(returns[j]))
		stats.ZDates = append(stats.ZDates, series.Points[j+opts.Lookback].Date.Format(model.DateLayout))
	}

	stats.Bins, stats.Counts = histogram(returns, opts.Bins)
	return stats, nil
}
