// Package calculator implements the numerical building blocks of a deep
// analysis: the log-linear trend channel, rolling-return statistics, the GBM
// Monte Carlo simulator and the classic technical indicators. Every function
// is pure; callers own the input series and receive freshly allocated results.
package calculator

import (
	"errors"
	"math"
	"sort"
)

// ErrInsufficientData is returned when a series is too short for a calculation.
var ErrInsufficientData = errors.New("insufficient data")

const (
	// PriceFloor bounds prices away from zero before logs and ratios.
	PriceFloor = 1e-4

	// StdEpsilon is the smallest standard deviation treated as non-degenerate.
	StdEpsilon = 1e-6

	// TradingDaysPerYear is the conventional one-year lookback.
	TradingDaysPerYear = 252
)

// floorPrice maps NaN and values below PriceFloor onto PriceFloor.
func floorPrice(v float64) float64 {
	if !(v > PriceFloor) {
		return PriceFloor
	}
	return v
}

// meanStd returns the mean and the population standard deviation.
func meanStd(values []float64) (mean, std float64) {
	if len(values) == 0 {
		return 0, 0
	}
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	var ss float64
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / float64(len(values)))
}

// percentileSorted returns the q-th percentile (0-100) of an ascending slice
// using linear interpolation between closest ranks.
func percentileSorted(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	rank := q / 100 * float64(n-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo < 0 {
		lo = 0
	}
	if hi >= n {
		hi = n - 1
	}
	frac := rank - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}

// Percentiles sorts values in place and returns the requested percentiles.
func Percentiles(values []float64, qs ...float64) []float64 {
	sort.Float64s(values)
	out := make([]float64, len(qs))
	for i, q := range qs {
		out[i] = percentileSorted(values, q)
	}
	return out
}

// histogram buckets values into bins equal-width bins spanning [min, max] and
// reports each bin by its left edge. The maximum lands in the last bin; a
// zero-width range collapses into a single bin.
func histogram(values []float64, bins int) (edges []float64, counts []int) {
	if len(values) == 0 {
		return []float64{}, []int{}
	}
	if bins < 1 {
		bins = 1
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	if math.IsInf(lo, 1) {
		lo, hi = 0, 0
	}
	width := (hi - lo) / float64(bins)
	if width <= 0 {
		return []float64{lo}, []int{len(values)}
	}

	edges = make([]float64, bins)
	for i := range edges {
		edges[i] = lo + float64(i)*width
	}
	counts = make([]int, bins)
	for _, v := range values {
		pos := (v - lo) / width
		idx := 0
		switch {
		case pos >= float64(bins):
			idx = bins - 1
		case pos > 0:
			idx = int(pos)
		}
		if idx >= bins {
			idx = bins - 1
		}
		counts[idx]++
	}
	return edges, counts
}
