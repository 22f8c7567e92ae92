// Package strategy compares accumulation strategies over a price history.
package strategy

import (
	"fmt"

	"MarketLens/internal/calculator"
	"MarketLens/internal/model"
)

// Compare builds normalized lump-sum, DCA and cash curves over the trailing
// windowDays+1 closes, or the whole series when it is shorter.
//
// The DCA curve invests one currency unit at every step and reports the value
// of the accumulated shares as a percentage of the cumulative cost. It is a
// return-on-cost-basis curve and is only comparable to the lump-sum curve in
// normalized terms, not in absolute currency.
func Compare(series model.PriceSeries, windowDays int) (*model.StrategyPerformance, error) {
	if series.Len() == 0 {
		return nil, fmt.Errorf("strategy comparison: %w", calculator.ErrInsufficientData)
	}
	if windowDays <= 0 {
		windowDays = calculator.TradingDaysPerYear
	}

	recent := series.Tail(windowDays + 1)
	prices := recent.Closes()
	n := len(prices)
	perf := &model.StrategyPerformance{
		Dates:   recent.DateStrings(),
		Prices:  prices,
		LumpSum: make([]float64, n),
		DCA:     make([]float64, n),
		Savings: make([]float64, n),
	}

	base := prices[0]
	var shares, cost float64
	for t, p := range prices {
		shares += 1 / p
		cost++
		perf.LumpSum[t] = p / base * calculator.NormalizedBase
		perf.DCA[t] = shares * p / cost * calculator.NormalizedBase
		perf.Savings[t] = calculator.NormalizedBase
	}
	// The first purchase is worth exactly its cost.
	perf.DCA[0] = calculator.NormalizedBase
	return perf, nil
}
