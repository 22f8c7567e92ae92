package calculator

import (
	"math"
	"time"

	"MarketLens/internal/model"
)

var testStart = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

func seriesOf(closes ...float64) model.PriceSeries {
	s := model.PriceSeries{Ticker: "TEST", Points: make([]model.PricePoint, len(closes))}
	for i, c := range closes {
		s.Points[i] = model.PricePoint{Date: testStart.AddDate(0, 0, i), Close: c}
	}
	return s
}

// noisySeries is a deterministic wavy uptrend.
func noisySeries(n int) model.PriceSeries {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = 100 * math.Exp(0.0004*float64(i)+0.05*math.Sin(float64(i)/7)+0.02*math.Cos(float64(i)*1.3))
	}
	return seriesOf(closes...)
}

func allFinite(values []float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
