package collector

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"MarketLens/internal/model"
)

// MockFetcher returns controllable fixed data for development and testing.
// Tickers without a fixed series get a generated one when Price is set.
type MockFetcher struct {
	Price        float64
	Days         int
	Series       map[string]model.PriceSeries
	Fundamentals map[string]model.Fundamentals
	Err          error

	mu    sync.Mutex
	calls int
}

func (m *MockFetcher) Name() string { return "mock" }

// Calls reports how many fetches were served.
func (m *MockFetcher) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func (m *MockFetcher) hit() error {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	return m.Err
}

func (m *MockFetcher) FetchSeries(_ context.Context, ticker string, start, end time.Time) (model.PriceSeries, error) {
	if err := m.hit(); err != nil {
		return model.PriceSeries{}, err
	}
	s, ok := m.Series[ticker]
	if !ok {
		if m.Price <= 0 {
			return model.PriceSeries{}, fmt.Errorf("mock %s: %w", ticker, ErrTickerNotFound)
		}
		days := m.Days
		if days <= 0 {
			days = 1500
		}
		s = MockSeries(ticker, m.Price, days, time.Now())
	}
	return s.Between(dayBound(start), dayBound(end)), nil
}

func (m *MockFetcher) FetchListingDate(ctx context.Context, ticker string) (time.Time, error) {
	s, err := m.FetchSeries(ctx, ticker, time.Time{}, time.Time{})
	if err != nil {
		return time.Time{}, err
	}
	if s.Len() == 0 {
		return time.Time{}, ErrTickerNotFound
	}
	return s.Points[0].Date, nil
}

func (m *MockFetcher) FetchFundamentals(_ context.Context, ticker string) (model.Fundamentals, error) {
	if err := m.hit(); err != nil {
		return model.Fundamentals{}, err
	}
	f, ok := m.Fundamentals[ticker]
	if !ok {
		return model.Fundamentals{}, fmt.Errorf("mock %s: %w", ticker, ErrTickerNotFound)
	}
	return f, nil
}

// MockSeries builds count weekday closes ending at end, drifting
// upwards with a slow oscillation around basePrice.
func MockSeries(ticker string, basePrice float64, count int, end time.Time) model.PriceSeries {
	points := make([]model.PricePoint, 0, count)
	d := dayOf(end)
	for len(points) < count {
		if d.Weekday() != time.Saturday && d.Weekday() != time.Sunday {
			points = append(points, model.PricePoint{Date: d})
		}
		d = d.AddDate(0, 0, -1)
	}
	for i, j := 0, len(points)-1; i < j; i, j = i+1, j-1 {
		points[i], points[j] = points[j], points[i]
	}
	for i := range points {
		x := float64(i - count/2)
		points[i].Close = basePrice * math.Exp(0.0003*x) * (1 + 0.05*math.Sin(x/40))
	}
	return model.PriceSeries{Ticker: ticker, Points: points}
}
