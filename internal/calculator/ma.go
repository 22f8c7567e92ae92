package calculator

import (
	"errors"
	"fmt"
)

// SMA computes the simple moving average of the last period values.
func SMA(values []float64, period int) (float64, error) {
	if period <= 0 {
		return 0, errors.New("period must be positive")
	}
	if len(values) < period {
		return 0, fmt.Errorf("SMA(%d) over %d values: %w", period, len(values), ErrInsufficientData)
	}
	sum := 0.0
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return sum / float64(period), nil
}

// MA200 returns the 200-day simple moving average of daily closes.
func MA200(closes []float64) (float64, error) {
	return SMA(closes, 200)
}
