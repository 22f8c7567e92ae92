package calculator

import (
	"fmt"
	"math"

	"MarketLens/internal/model"
)

// TrendBandWidth is the channel half-width in residual standard deviations.
const TrendBandWidth = 2.0

// FitTrend fits ln(price) = slope*i + intercept by ordinary least squares over
// the point index and returns the exponential trend line with bands at ±2
// residual standard deviations. The bands describe a log-normal channel around
// the fit; they are not a confidence interval for the regression itself.
func FitTrend(series model.PriceSeries) (*model.TrendResult, error) {
	n := series.Len()
	if n < 2 {
		return nil, fmt.Errorf("trend needs at least 2 points, got %d: %w", n, ErrInsufficientData)
	}

	logs := make([]float64, n)
	positive := 0
	for i, p := range series.Points {
		if p.Close > 0 {
			positive++
		}
		logs[i] = math.Log(floorPrice(p.Close))
	}
	if positive == 0 {
		return nil, fmt.Errorf("trend: no positive prices: %w", ErrInsufficientData)
	}

	slope, intercept := linearFit(logs)

	residuals := make([]float64, n)
	for i, y := range logs {
		residuals[i] = y - (slope*float64(i) + intercept)
	}
	_, residualStd := meanStd(residuals)

	band := math.Exp(TrendBandWidth * residualStd)
	res := &model.TrendResult{
		Middle:      make([]float64, n),
		Upper:       make([]float64, n),
		Lower:       make([]float64, n),
		Slope:       slope,
		Intercept:   intercept,
		ResidualStd: residualStd,
	}
	for i := 0; i < n; i++ {
		mid := capFinite(math.Exp(slope*float64(i) + intercept))
		res.Middle[i] = mid
		res.Upper[i] = math.Max(capFinite(mid*band), mid)
		res.Lower[i] = math.Min(mid/band, mid)
	}
	return res, nil
}

// capFinite saturates overflowed products at the largest float64 so that
// extreme channels keep lower <= middle <= upper after sanitizing.
func capFinite(v float64) float64 {
	if math.IsNaN(v) || v > math.MaxFloat64 {
		return math.MaxFloat64
	}
	return v
}

// linearFit regresses ys on 0..len(ys)-1. Requires at least two values.
func linearFit(ys []float64) (slope, intercept float64) {
	n := float64(len(ys))
	xMean := (n - 1) / 2
	var yMean float64
	for _, y := range ys {
		yMean += y
	}
	yMean /= n

	var sxx, sxy float64
	for i, y := range ys {
		dx := float64(i) - xMean
		sxx += dx * dx
		sxy += dx * (y - yMean)
	}
	slope = sxy / sxx
	intercept = yMean - slope*xMean
	return slope, intercept
}
