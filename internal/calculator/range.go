package calculator

import (
	"errors"
	"math"
)

// TrailingRange returns the highest and lowest close over the last window closes.
// Shorter histories use every close available.
func TrailingRange(closes []float64, window int) (high, low float64, err error) {
	if len(closes) == 0 {
		return 0, 0, ErrInsufficientData
	}
	start := max(len(closes)-window, 0)
	high = math.Inf(-1)
	low = math.Inf(1)
	for _, c := range closes[start:] {
		high = math.Max(high, c)
		low = math.Min(low, c)
	}
	return high, low, nil
}

// RangePosition returns where current sits within [low, high], clamped to 0.0~1.0.
func RangePosition(current, high, low float64) (float64, error) {
	if high == low {
		return 0.5, nil
	}
	if high < low {
		return 0, errors.New("high must be >= low")
	}
	pos := (current - low) / (high - low)
	return math.Min(math.Max(pos, 0), 1), nil
}
