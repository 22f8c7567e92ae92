package model

import (
	"errors"
	"fmt"
	"time"
)

// DateLayout is the calendar-date format used at every response boundary.
const DateLayout = "2006-01-02"

// PricePoint is a single trading-day close.
type PricePoint struct {
	Date  time.Time `json:"date"`
	Close float64   `json:"close"`
}

// PriceSeries holds an ascending daily close history for one ticker.
type PriceSeries struct {
	Ticker string       `json:"ticker"`
	Points []PricePoint `json:"points"`
}

// Len returns the number of points.
func (s PriceSeries) Len() int { return len(s.Points) }

// Closes returns the closing prices in date order.
func (s PriceSeries) Closes() []float64 {
	closes := make([]float64, len(s.Points))
	for i, p := range s.Points {
		closes[i] = p.Close
	}
	return closes
}

// DateStrings returns the point dates formatted with DateLayout.
func (s PriceSeries) DateStrings() []string {
	dates := make([]string, len(s.Points))
	for i, p := range s.Points {
		dates[i] = p.Date.Format(DateLayout)
	}
	return dates
}

// Last returns the most recent point. It panics on an empty series.
func (s PriceSeries) Last() PricePoint { return s.Points[len(s.Points)-1] }

// Tail returns a series sharing the last n points.
func (s PriceSeries) Tail(n int) PriceSeries {
	if n >= len(s.Points) {
		return s
	}
	if n < 0 {
		n = 0
	}
	return PriceSeries{Ticker: s.Ticker, Points: s.Points[len(s.Points)-n:]}
}

// Between returns the points with start <= date <= end. Zero bounds are open.
func (s PriceSeries) Between(start, end time.Time) PriceSeries {
	out := PriceSeries{Ticker: s.Ticker}
	for _, p := range s.Points {
		if !start.IsZero() && p.Date.Before(start) {
			continue
		}
		if !end.IsZero() && p.Date.After(end) {
			continue
		}
		out.Points = append(out.Points, p)
	}
	return out
}

// Validate checks that dates are strictly increasing.
func (s PriceSeries) Validate() error {
	if len(s.Points) == 0 {
		return errors.New("empty price series")
	}
	for i := 1; i < len(s.Points); i++ {
		if !s.Points[i].Date.After(s.Points[i-1].Date) {
			return fmt.Errorf("price series %s: date %s not after %s", s.Ticker,
				s.Points[i].Date.Format(DateLayout), s.Points[i-1].Date.Format(DateLayout))
		}
	}
	return nil
}

// Fundamentals carries the per-ticker metadata used by valuation endpoints.
type Fundamentals struct {
	Ticker     string  `json:"ticker"`
	MarketCap  float64 `json:"market_cap"`
	TrailingPE float64 `json:"trailing_pe"`
}
