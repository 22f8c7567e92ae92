package analysis

import (
	"math"

	"MarketLens/internal/calculator"
	"MarketLens/internal/model"
)

// PrepareSeries returns a copy of s with non-finite closes forward-filled and
// every close floored at calculator.PriceFloor. Leading non-finite closes take
// the first finite close.
func PrepareSeries(s model.PriceSeries) model.PriceSeries {
	out := model.PriceSeries{Ticker: s.Ticker, Points: make([]model.PricePoint, len(s.Points))}
	copy(out.Points, s.Points)

	last := math.NaN()
	for _, p := range out.Points {
		if isFinite(p.Close) {
			last = p.Close
			break
		}
	}
	for i := range out.Points {
		c := out.Points[i].Close
		if isFinite(c) {
			last = c
		} else {
			c = last
		}
		if !(c > calculator.PriceFloor) {
			c = calculator.PriceFloor
		}
		out.Points[i].Close = c
	}
	return out
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func finite(v float64) float64 {
	if isFinite(v) {
		return v
	}
	return 0
}

func sanitizeSlice(vs []float64) {
	for i, v := range vs {
		vs[i] = finite(v)
	}
}

// Sanitize replaces every NaN or infinite number in resp with 0.
func Sanitize(resp *model.DeepAnalysisResponse) {
	resp.CurrentPrice = finite(resp.CurrentPrice)
	resp.AvgLookbackReturn = finite(resp.AvgLookbackReturn)
	resp.CurrentLookbackReturn = finite(resp.CurrentLookbackReturn)

	t := &resp.Trend
	for _, vs := range [][]float64{t.Prices, t.Middle, t.Upper, t.Lower} {
		sanitizeSlice(vs)
	}
	t.Slope, t.Intercept, t.ResidualStd = finite(t.Slope), finite(t.Intercept), finite(t.ResidualStd)

	q := &resp.Quant
	q.Mean, q.Std, q.CurrentZ = finite(q.Mean), finite(q.Std), finite(q.CurrentZ)
	sanitizeSlice(q.ZHistory)
	sanitizeSlice(q.Bins)

	sim := &resp.Simulation
	for _, vs := range [][]float64{sim.P50, sim.Upper, sim.Lower, sim.ActualPast, sim.LumpSumPerf, sim.DCAPerf, sim.SavingsPerf} {
		sanitizeSlice(vs)
	}
	for _, path := range sim.Samples {
		sanitizeSlice(path)
	}

	ind := &resp.Indicators
	ind.MA200, ind.RSI14 = finite(ind.MA200), finite(ind.RSI14)
	ind.High52w, ind.Low52w, ind.Position52w = finite(ind.High52w), finite(ind.Low52w), finite(ind.Position52w)
}

func emptyTrend(s model.PriceSeries) model.TrendBlock {
	return model.TrendBlock{
		Dates:  s.DateStrings(),
		Prices: s.Closes(),
		Middle: []float64{},
		Upper:  []float64{},
		Lower:  []float64{},
	}
}

func emptyQuant() model.QuantBlock {
	return model.QuantBlock{
		ZHistory: []float64{},
		ZDates:   []string{},
		Bins:     []float64{},
		Counts:   []int{},
	}
}

func emptySimulation() model.SimulationBlock {
	return model.SimulationBlock{
		P50:         []float64{},
		Upper:       []float64{},
		Lower:       []float64{},
		ActualPast:  []float64{},
		LumpSumPerf: []float64{},
		DCAPerf:     []float64{},
		SavingsPerf: []float64{},
		Samples:     [][]float64{},
	}
}
